package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountID(t *testing.T) {
	t.Run("accepts a bech32 address", func(t *testing.T) {
		got, err := ParseAccountID("xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu")
		require.NoError(t, err)
		assert.Equal(t, AccountID("xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu"), got)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		got, err := ParseAccountID("  xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu ")
		require.NoError(t, err)
		assert.Equal(t, "xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu", got.String())
	})

	invalid := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no separator", "xionqypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu"},
		{"data part too short", "xion1abc"},
		{"uppercase prefix", "XION1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu"},
		{"invalid character in data", "xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7-u"},
		{"missing prefix", "1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu"},
	}
	for _, tc := range invalid {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			_, err := ParseAccountID(tc.in)
			assert.Error(t, err)
		})
	}
}

func TestParseProviderKey(t *testing.T) {
	for _, known := range KnownProviders {
		got, err := ParseProviderKey(known.String())
		require.NoError(t, err)
		assert.Equal(t, known, got)
	}

	_, err := ParseProviderKey("myspace")
	assert.Error(t, err)
	_, err = ParseProviderKey("")
	assert.Error(t, err)
	// Keys are case sensitive.
	_, err = ParseProviderKey("GitHub")
	assert.Error(t, err)
}

func TestRewardID(t *testing.T) {
	t.Run("derived from the creation instant", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, RewardID("1748779200000"), NewRewardID(now))
	})

	t.Run("parse accepts only digits", func(t *testing.T) {
		got, err := ParseRewardID("1748779200000")
		require.NoError(t, err)
		assert.Equal(t, "1748779200000", got.String())

		for _, in := range []string{"", "abc", "174877-9200000", "1748779200000x"} {
			_, err := ParseRewardID(in)
			assert.Error(t, err, in)
		}
	})
}
