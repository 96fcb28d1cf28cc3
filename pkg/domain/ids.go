// Package domain holds typed identifiers shared across the gateway.
//
// Identifiers are distinct string types rather than bare strings so that an
// account address can never be passed where a provider key is expected. Parse
// functions validate at the boundary; the rest of the code trusts the types.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// AccountID is a bech32 wallet address. It identifies the owner of a persona
// document and the parties of a reward purchase.
type AccountID string

// ParseAccountID validates the bech32 shape of an address: a lowercase
// human-readable prefix, the '1' separator, and a data part of at least 38
// characters. Checksum verification is left to the chain; the gateway only
// needs to reject garbage before it becomes a document key.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	sep := strings.LastIndex(s, "1")
	if sep < 1 {
		return "", fmt.Errorf("account address %q: missing bech32 separator", s)
	}
	prefix, data := s[:sep], s[sep+1:]
	if len(data) < 38 {
		return "", fmt.Errorf("account address %q: data part too short", s)
	}
	for _, r := range prefix {
		if !unicode.IsLower(r) {
			return "", fmt.Errorf("account address %q: invalid prefix", s)
		}
	}
	for _, r := range data {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) {
			return "", fmt.Errorf("account address %q: invalid character %q", s, r)
		}
	}
	return AccountID(s), nil
}

func (a AccountID) String() string { return string(a) }

// IsNil reports whether the account ID is unset.
func (a AccountID) IsNil() bool { return a == "" }

// ProviderKey names an external platform a verification record can come from.
// The set is closed here but extending it is a data change: add a constant,
// list it in KnownProviders, and register an extractor.
type ProviderKey string

const (
	ProviderTwitter       ProviderKey = "twitter"
	ProviderGithub        ProviderKey = "github"
	ProviderBinance       ProviderKey = "binance"
	ProviderLinkedin      ProviderKey = "linkedin"
	ProviderTwitterTweets ProviderKey = "twitterTweets"
)

// KnownProviders lists every provider key the gateway accepts, in catalog order.
var KnownProviders = []ProviderKey{
	ProviderTwitter,
	ProviderGithub,
	ProviderBinance,
	ProviderLinkedin,
	ProviderTwitterTweets,
}

// ParseProviderKey validates a provider key against the known set.
func ParseProviderKey(s string) (ProviderKey, error) {
	k := ProviderKey(s)
	for _, known := range KnownProviders {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider key: %s", s)
}

func (k ProviderKey) String() string { return string(k) }

// RewardID identifies a reward document. IDs are derived from the creation
// time in unix milliseconds, which is also how the browse view tells reward
// documents apart from persona documents in a shared listing.
type RewardID string

// NewRewardID derives a reward ID from the creation instant.
func NewRewardID(now time.Time) RewardID {
	return RewardID(fmt.Sprintf("%d", now.UnixMilli()))
}

// ParseRewardID accepts only all-digit identifiers.
func ParseRewardID(s string) (RewardID, error) {
	if s == "" {
		return "", fmt.Errorf("reward id is empty")
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return "", fmt.Errorf("reward id %q: must be numeric", s)
		}
	}
	return RewardID(s), nil
}

func (r RewardID) String() string { return string(r) }
