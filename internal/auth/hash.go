package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// HashToken returns the base64-encoded SHA-256 digest of a raw refresh token.
// Only this digest is ever persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// TokenMatches reports whether raw hashes to stored, in constant time.
func TokenMatches(raw, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(raw)), []byte(stored)) == 1
}
