// Package utils provides the credential helpers shared by the repositories
// and handlers: password hashing/verification and opaque token generation.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/localgov/asset-tracker-auth/internal/model"
)

// tokenBytes is the entropy per token: 32 random bytes, hex-encoded to a
// 64-character string.
const tokenBytes = 32

// NewTokenPair mints a fresh access/refresh pair with independent expiry
// horizons. Tokens are opaque random strings with no embedded claims; the
// store row they are written to is the single source of truth about them.
func NewTokenPair(accessTTLMin, refreshTTLDays int) (model.TokenPair, error) {
	access, err := randomHex(tokenBytes)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := randomHex(tokenBytes)
	if err != nil {
		return model.TokenPair{}, err
	}
	now := time.Now().UTC()
	return model.TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  now.Add(time.Duration(accessTTLMin) * time.Minute),
		RefreshToken:       refresh,
		RefreshTokenExpiry: now.Add(time.Duration(refreshTTLDays) * 24 * time.Hour),
	}, nil
}

// randomHex returns a hex-encoded string built from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
