package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "persona-gateway/pkg/domain"
)

const testAddress = id.AccountID("xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu")

func record(fact string, at time.Time) VerificationRecord {
	return VerificationRecord{
		Facts:      map[string]any{"value": fact},
		VerifiedAt: at,
	}
}

func TestWithVerification(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("adds a record under its provider key", func(t *testing.T) {
		p := NewPersona(testAddress)
		next := p.WithVerification(id.ProviderGithub, record("a", now))

		require.Len(t, next.Verifications, 1)
		assert.Equal(t, "a", next.Verifications[id.ProviderGithub].Facts["value"])
	})

	t.Run("replaces the record for the same key and keeps the rest", func(t *testing.T) {
		p := NewPersona(testAddress).
			WithVerification(id.ProviderGithub, record("old", now)).
			WithVerification(id.ProviderTwitter, record("tw", now))

		next := p.WithVerification(id.ProviderGithub, record("new", now.Add(time.Hour)))

		require.Len(t, next.Verifications, 2)
		assert.Equal(t, "new", next.Verifications[id.ProviderGithub].Facts["value"])
		assert.Equal(t, "tw", next.Verifications[id.ProviderTwitter].Facts["value"])
	})

	t.Run("does not mutate the receiver", func(t *testing.T) {
		p := NewPersona(testAddress).WithVerification(id.ProviderGithub, record("old", now))

		_ = p.WithVerification(id.ProviderGithub, record("new", now))

		assert.Equal(t, "old", p.Verifications[id.ProviderGithub].Facts["value"])
	})
}

func TestScoreTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := ScoreBreakdown{
		Score:       42,
		Breakdown:   map[string]float64{CategoryDeveloperReputation: 80, CategorySocialInfluence: 55, CategoryFinancialTrust: 0, CategoryProfessionalism: 33},
		Explanation: "solid developer profile",
	}
	fallback := ScoreBreakdown{Score: 0, Breakdown: map[string]float64{}, Explanation: "Could not calculate score."}

	t.Run("WithScore attaches the score and clears staleness", func(t *testing.T) {
		p := NewPersona(testAddress)
		p.ScoreStale = true

		next := p.WithScore(fresh, now)

		require.NotNil(t, next.PersonaScore)
		assert.Equal(t, 42, next.Score())
		assert.False(t, next.ScoreStale)
		assert.Equal(t, now, next.LastUpdatedAt)
	})

	t.Run("WithStaleScore keeps a previous score", func(t *testing.T) {
		p := NewPersona(testAddress).WithScore(fresh, now)

		next := p.WithStaleScore(fallback, now.Add(time.Hour))

		assert.Equal(t, 42, next.Score())
		assert.True(t, next.ScoreStale)
	})

	t.Run("WithStaleScore attaches the fallback for a never-scored persona", func(t *testing.T) {
		p := NewPersona(testAddress)

		next := p.WithStaleScore(fallback, now)

		require.NotNil(t, next.PersonaScore)
		assert.Equal(t, 0, next.Score())
		assert.Empty(t, next.PersonaScore.Breakdown)
		assert.True(t, next.ScoreStale)
	})

	t.Run("Score is zero for an unscored persona", func(t *testing.T) {
		assert.Equal(t, 0, NewPersona(testAddress).Score())
	})
}

func TestBreakdownCompleteness(t *testing.T) {
	t.Run("complete with all four categories", func(t *testing.T) {
		s := ScoreBreakdown{Breakdown: map[string]float64{
			CategoryDeveloperReputation: 10,
			CategorySocialInfluence:     20,
			CategoryFinancialTrust:      30,
			CategoryProfessionalism:     40,
		}}
		assert.True(t, s.Complete())
		assert.InDelta(t, 25.0, s.Mean(), 0.001)
	})

	t.Run("incomplete with a missing category", func(t *testing.T) {
		s := ScoreBreakdown{Breakdown: map[string]float64{CategorySocialInfluence: 20}}
		assert.False(t, s.Complete())
	})

	t.Run("empty breakdown is incomplete", func(t *testing.T) {
		assert.False(t, ScoreBreakdown{Breakdown: map[string]float64{}}.Complete())
	})
}

// The persisted document must survive a serialization cycle without losing
// the fields access decisions depend on.
func TestDocumentRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewPersona(testAddress).
		WithVerification(id.ProviderGithub, VerificationRecord{
			Facts:      map[string]any{"username": "octocat", "followers": float64(120)},
			VerifiedAt: now,
		}).
		WithScore(ScoreBreakdown{
			Score:            61,
			Breakdown:        map[string]float64{CategoryDeveloperReputation: 90, CategorySocialInfluence: 70, CategoryFinancialTrust: 30, CategoryProfessionalism: 54},
			Explanation:      "active developer",
			LastCalculatedAt: now,
		}, now)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded PersonaDocument
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, p.Address, decoded.Address)
	assert.Equal(t, p.Verifications, decoded.Verifications)
	require.NotNil(t, decoded.PersonaScore)
	assert.Equal(t, p.PersonaScore.Score, decoded.PersonaScore.Score)
	assert.Equal(t, p.PersonaScore.Breakdown, decoded.PersonaScore.Breakdown)
	assert.False(t, decoded.ScoreStale)
}

// The staleness marker must survive persistence: a reader of a re-loaded
// document can always tell a stale score from a fresh one.
func TestStaleMarkerRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewPersona(testAddress).WithStaleScore(ScoreBreakdown{Score: 0, Breakdown: map[string]float64{}}, now)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded PersonaDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.ScoreStale)
}
