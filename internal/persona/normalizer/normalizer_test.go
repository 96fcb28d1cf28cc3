package normalizer

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-gateway/internal/proof"
	id "persona-gateway/pkg/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// envelope builds a proof the way the bridge delivers it: the parameter bag
// serialized as a JSON string inside claimData.context.
func envelope(t *testing.T, params map[string]any) proof.Proof {
	t.Helper()
	context, err := json.Marshal(map[string]any{"extractedParameters": params})
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]any{
		"claimData": map[string]any{"context": string(context)},
	})
	require.NoError(t, err)
	return raw
}

func TestNormalizeTwitter(t *testing.T) {
	rec, err := Normalize(id.ProviderTwitter, envelope(t, map[string]any{
		"followers_count": "1500",
		"screen_name":     "builder",
		"created_at":      "2015-03-01",
	}), testNow)
	require.NoError(t, err)

	assert.Equal(t, float64(1500), rec.Facts["followers"])
	assert.Equal(t, "builder", rec.Facts["screenName"])
	assert.Equal(t, "2015-03-01", rec.Facts["createdAt"])
	assert.Equal(t, testNow, rec.VerifiedAt)
}

func TestNormalizeGithub(t *testing.T) {
	t.Run("accepts numeric counts as JSON numbers", func(t *testing.T) {
		rec, err := Normalize(id.ProviderGithub, envelope(t, map[string]any{
			"username":                "octocat",
			"followers":               120,
			"contributions_last_year": 900,
		}), testNow)
		require.NoError(t, err)

		assert.Equal(t, "octocat", rec.Facts["username"])
		assert.Equal(t, float64(120), rec.Facts["followers"])
		assert.Equal(t, float64(900), rec.Facts["contributionsLastYear"])
	})

	t.Run("a missing count is an error, never a silent zero", func(t *testing.T) {
		_, err := Normalize(id.ProviderGithub, envelope(t, map[string]any{
			"username":                "octocat",
			"contributions_last_year": 900,
		}), testNow)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindMissingField))
	})

	t.Run("a non-numeric count is a missing field", func(t *testing.T) {
		_, err := Normalize(id.ProviderGithub, envelope(t, map[string]any{
			"username":                "octocat",
			"followers":               "lots",
			"contributions_last_year": 900,
		}), testNow)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindMissingField))
	})
}

func TestNormalizeBinance(t *testing.T) {
	rec, err := Normalize(id.ProviderBinance, envelope(t, map[string]any{
		"kyc_status": "verified",
	}), testNow)
	require.NoError(t, err)
	assert.Equal(t, "verified", rec.Facts["kycStatus"])
}

func TestNormalizeLinkedin(t *testing.T) {
	rec, err := Normalize(id.ProviderLinkedin, envelope(t, map[string]any{
		"headline":    "Platform Engineer",
		"connections": "500",
		"full_name":   "Sam Doe",
		"location":    "Berlin",
	}), testNow)
	require.NoError(t, err)

	assert.Equal(t, "Platform Engineer", rec.Facts["headline"])
	assert.Equal(t, float64(500), rec.Facts["connections"])
}

func TestNormalizeTwitterTweets(t *testing.T) {
	t.Run("includes the last tweet date for active accounts", func(t *testing.T) {
		rec, err := Normalize(id.ProviderTwitterTweets, envelope(t, map[string]any{
			"tweet_count":     42,
			"last_tweet_date": "2025-05-30",
		}), testNow)
		require.NoError(t, err)

		assert.Equal(t, float64(42), rec.Facts["tweetCount"])
		assert.Equal(t, "2025-05-30", rec.Facts["lastTweetDate"])
	})

	t.Run("omits the last tweet date for accounts that never posted", func(t *testing.T) {
		rec, err := Normalize(id.ProviderTwitterTweets, envelope(t, map[string]any{
			"tweet_count": 0,
		}), testNow)
		require.NoError(t, err)

		assert.Equal(t, float64(0), rec.Facts["tweetCount"])
		_, present := rec.Facts["lastTweetDate"]
		assert.False(t, present)
	})
}

func TestNormalizeUnknownProvider(t *testing.T) {
	_, err := Normalize(id.ProviderKey("myspace"), envelope(t, nil), testNow)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnknownProvider))
}

func TestNormalizeInlineContext(t *testing.T) {
	// Some bridge deployments inline the context object instead of nesting
	// it as a string.
	raw := []byte(fmt.Sprintf(`{"claimData":{"context":{"extractedParameters":{"kyc_status":%q}}}}`, "verified"))
	rec, err := Normalize(id.ProviderBinance, raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, "verified", rec.Facts["kycStatus"])
}
