package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPrefix marks stored token hashes.
const HashPrefix = "utrh_"

// Hash computes the storable hash of a token.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return HashPrefix + hex.EncodeToString(h[:])
}

// Verify verifies a token against an expected hash in constant time.
func Verify(token, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(token)), []byte(expectedHash)) == 1
}
