package utils

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenPair(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	pair, err := NewTokenPair(60, 7)
	require.NoError(t, err)
	after := time.Now().UTC()

	t.Run("tokens are opaque 32-byte hex strings", func(t *testing.T) {
		for _, tok := range []string{pair.AccessToken, pair.RefreshToken} {
			raw, err := hex.DecodeString(tok)
			require.NoError(t, err)
			assert.Len(t, raw, 32)
		}
		assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	})

	t.Run("expiry horizons are independent", func(t *testing.T) {
		assert.WithinRange(t, pair.AccessTokenExpiry,
			before.Add(time.Hour), after.Add(time.Hour))
		assert.WithinRange(t, pair.RefreshTokenExpiry,
			before.Add(7*24*time.Hour), after.Add(7*24*time.Hour))
	})

	t.Run("successive pairs never repeat", func(t *testing.T) {
		other, err := NewTokenPair(60, 7)
		require.NoError(t, err)
		assert.NotEqual(t, pair.AccessToken, other.AccessToken)
		assert.NotEqual(t, pair.RefreshToken, other.RefreshToken)
	})
}
