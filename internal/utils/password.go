package utils

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash using the given cost. This is the only
// hash constructor in the codebase: registration and password changes can
// produce nothing but the modern scheme.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword checks plain against a stored hash under whichever scheme
// produced it. A 32-hex-character value is the legacy unsalted MD5 digest
// carried over from the seeded data; anything else is delegated to bcrypt.
// Callers cannot tell the schemes apart — login behaves identically.
//
// TODO: remove the MD5 branch once every pre-migration row has been rehashed
// through the change-password flow.
func VerifyPassword(storedHash, plain string) bool {
	if digest, ok := legacyDigest(storedHash); ok {
		sum := md5.Sum([]byte(plain))
		return subtle.ConstantTimeCompare(sum[:], digest) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}

// legacyDigest decodes storedHash as a raw MD5 digest when it has the legacy
// shape (exactly 32 hex characters). Decoding also normalises hex case, so
// the comparison does not depend on how the digest was stored.
func legacyDigest(storedHash string) ([]byte, bool) {
	if len(storedHash) != 32 {
		return nil, false
	}
	raw, err := hex.DecodeString(storedHash)
	if err != nil {
		return nil, false
	}
	return raw, true
}
