package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
)

const (
	creator = id.AccountID("xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu")
	visitor = id.AccountID("xion1visitor00000000000000000000000000000000")
	buyer   = id.AccountID("xion1buyer0000000000000000000000000000000000")
)

var createdAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func validReward(t *testing.T, requiredScore int) *RewardDocument {
	t.Helper()
	r, err := NewReward(creator, "Gated guide", "A guide for established personas", "", "secret-content", "5", requiredScore, createdAt)
	require.NoError(t, err)
	return r
}

func TestNewReward(t *testing.T) {
	t.Run("trims and keeps the supplied fields", func(t *testing.T) {
		r, err := NewReward(creator, "  Gated guide  ", " desc ", " https://img ", "v", "2.5", 60, createdAt)
		require.NoError(t, err)

		assert.Equal(t, "Gated guide", r.Title)
		assert.Equal(t, "desc", r.Description)
		assert.Equal(t, "https://img", r.ImageURL)
		assert.Equal(t, "2.5", r.Price)
		assert.Equal(t, 60, r.RequiredScore)
		assert.Equal(t, creator, r.CreatorAddress)
		assert.Equal(t, createdAt, r.CreatedAt)
		assert.Empty(t, r.PaidUsers)
	})

	cases := []struct {
		name          string
		title         string
		description   string
		requiredScore int
		creator       id.AccountID
	}{
		{"empty title", "", "desc", 50, creator},
		{"blank title", "   ", "desc", 50, creator},
		{"title too long", strings.Repeat("x", 129), "desc", 50, creator},
		{"empty description", "title", "", 50, creator},
		{"score below range", "title", "desc", -1, creator},
		{"score above range", "title", "desc", 101, creator},
		{"missing creator", "title", "desc", 50, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReward(tc.creator, tc.title, tc.description, "", "v", "5", tc.requiredScore, createdAt)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}

	t.Run("boundary scores are valid", func(t *testing.T) {
		_, err := NewReward(creator, "title", "desc", "", "v", "5", 0, createdAt)
		assert.NoError(t, err)
		_, err = NewReward(creator, "title", "desc", "", "v", "5", 100, createdAt)
		assert.NoError(t, err)
	})
}

func TestAccessibleBy(t *testing.T) {
	r := validReward(t, 60)
	require.NoError(t, r.RecordPayment(buyer))

	cases := []struct {
		name    string
		account id.AccountID
		score   int
		want    bool
	}{
		{"creator regardless of score", creator, 0, true},
		{"visitor below threshold", visitor, 59, false},
		{"visitor exactly at threshold", visitor, 60, true},
		{"visitor above threshold", visitor, 100, true},
		{"paid buyer below threshold", buyer, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.AccessibleBy(tc.account, tc.score))
		})
	}

	t.Run("zero-score reward is open to everyone", func(t *testing.T) {
		open := validReward(t, 0)
		assert.True(t, open.AccessibleBy(visitor, 0))
	})
}

func TestRecordPayment(t *testing.T) {
	r := validReward(t, 60)

	require.NoError(t, r.RecordPayment(buyer))
	assert.True(t, r.HasPaid(buyer))
	assert.False(t, r.HasPaid(visitor))

	t.Run("double append is rejected", func(t *testing.T) {
		err := r.RecordPayment(buyer)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.Len(t, r.PaidUsers, 1)
	})
}
