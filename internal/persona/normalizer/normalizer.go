// Package normalizer maps opaque provider proofs into normalized
// verification records. Extraction is table-driven: each provider key
// registers one extractor, so adding a provider is a data addition and never
// touches another provider's branch.
//
// Only the facts relevant to scoring are extracted; the rest of the proof is
// discarded and never persisted.
package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"persona-gateway/internal/persona/models"
	"persona-gateway/internal/proof"
	id "persona-gateway/pkg/domain"
)

// ErrorKind is the normalization failure taxonomy.
type ErrorKind string

const (
	// KindMissingField: a required nested field is absent or malformed in
	// the raw payload. Numeric fields are parsed strictly: a missing count
	// is an error, never a silent zero, because zero-defaulting masks proof
	// failures.
	KindMissingField ErrorKind = "missing_field"

	// KindUnknownProvider: no extractor is registered for the key.
	KindUnknownProvider ErrorKind = "unknown_provider"
)

// Error wraps normalization failures with the provider and field involved.
type Error struct {
	Kind     ErrorKind
	Provider id.ProviderKey
	Field    string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("normalize %s proof [%s]: field %q", e.Provider, e.Kind, e.Field)
	}
	return fmt.Sprintf("normalize %s proof [%s]", e.Provider, e.Kind)
}

// IsKind reports whether err is a normalization error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Kind == kind
	}
	return false
}

// extractor pulls scoring facts out of the proof's extracted parameters.
type extractor func(params gjson.Result, key id.ProviderKey) (map[string]any, error)

// registry maps provider keys to their extraction rules. Fact names are the
// vocabulary the scoring prompt is written against; extend both together.
var registry = map[id.ProviderKey]extractor{
	id.ProviderTwitter: func(p gjson.Result, key id.ProviderKey) (map[string]any, error) {
		followers, err := requireCount(p, key, "followers_count")
		if err != nil {
			return nil, err
		}
		screenName, err := requireString(p, key, "screen_name")
		if err != nil {
			return nil, err
		}
		createdAt, err := requireString(p, key, "created_at")
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"followers":  followers,
			"screenName": screenName,
			"createdAt":  createdAt,
		}, nil
	},
	id.ProviderGithub: func(p gjson.Result, key id.ProviderKey) (map[string]any, error) {
		username, err := requireString(p, key, "username")
		if err != nil {
			return nil, err
		}
		followers, err := requireCount(p, key, "followers")
		if err != nil {
			return nil, err
		}
		contributions, err := requireCount(p, key, "contributions_last_year")
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"username":              username,
			"followers":             followers,
			"contributionsLastYear": contributions,
		}, nil
	},
	id.ProviderBinance: func(p gjson.Result, key id.ProviderKey) (map[string]any, error) {
		kycStatus, err := requireString(p, key, "kyc_status")
		if err != nil {
			return nil, err
		}
		return map[string]any{"kycStatus": kycStatus}, nil
	},
	id.ProviderLinkedin: func(p gjson.Result, key id.ProviderKey) (map[string]any, error) {
		headline, err := requireString(p, key, "headline")
		if err != nil {
			return nil, err
		}
		connections, err := requireCount(p, key, "connections")
		if err != nil {
			return nil, err
		}
		fullName, err := requireString(p, key, "full_name")
		if err != nil {
			return nil, err
		}
		location, err := requireString(p, key, "location")
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"headline":    headline,
			"connections": connections,
			"fullName":    fullName,
			"location":    location,
		}, nil
	},
	id.ProviderTwitterTweets: func(p gjson.Result, key id.ProviderKey) (map[string]any, error) {
		tweetCount, err := requireCount(p, key, "tweet_count")
		if err != nil {
			return nil, err
		}
		facts := map[string]any{"tweetCount": tweetCount}
		// Last post date only exists when the account posted at all.
		if tweetCount > 0 {
			lastTweet, err := requireString(p, key, "last_tweet_date")
			if err != nil {
				return nil, err
			}
			facts["lastTweetDate"] = lastTweet
		}
		return facts, nil
	},
}

// Normalize extracts a verification record from a raw proof for the given
// provider key. Pure apart from the verifiedAt stamp taken from now; no side
// effects, and the raw proof is not retained.
func Normalize(key id.ProviderKey, raw proof.Proof, now time.Time) (models.VerificationRecord, error) {
	extract, ok := registry[key]
	if !ok {
		return models.VerificationRecord{}, &Error{Kind: KindUnknownProvider, Provider: key}
	}

	facts, err := extract(extractedParameters(raw), key)
	if err != nil {
		return models.VerificationRecord{}, err
	}
	return models.VerificationRecord{Facts: facts, VerifiedAt: now}, nil
}

// extractedParameters digs the parameter bag out of the proof envelope. The
// collaborator nests it as a JSON string under claimData.context; some
// bridge deployments inline it instead, so both shapes are accepted.
func extractedParameters(raw proof.Proof) gjson.Result {
	context := gjson.GetBytes(raw, "claimData.context")
	if context.Type == gjson.String {
		return gjson.Get(context.String(), "extractedParameters")
	}
	return context.Get("extractedParameters")
}

// requireString returns the named field as a non-empty string.
func requireString(params gjson.Result, key id.ProviderKey, field string) (string, error) {
	v := params.Get(field)
	if !v.Exists() || v.String() == "" {
		return "", &Error{Kind: KindMissingField, Provider: key, Field: field}
	}
	return v.String(), nil
}

// requireCount returns the named field as a non-negative number. Providers
// deliver counts as either JSON numbers or numeric strings; anything else is
// a missing-field failure, never a defaulted zero.
func requireCount(params gjson.Result, key id.ProviderKey, field string) (float64, error) {
	v := params.Get(field)
	if !v.Exists() {
		return 0, &Error{Kind: KindMissingField, Provider: key, Field: field}
	}
	switch v.Type {
	case gjson.Number:
		if v.Float() < 0 {
			return 0, &Error{Kind: KindMissingField, Provider: key, Field: field}
		}
		return v.Float(), nil
	case gjson.String:
		n, err := strconv.ParseFloat(v.String(), 64)
		if err != nil || n < 0 {
			return 0, &Error{Kind: KindMissingField, Provider: key, Field: field}
		}
		return n, nil
	default:
		return 0, &Error{Kind: KindMissingField, Provider: key, Field: field}
	}
}
