package token

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// DefaultLength is the default token length in bytes.
const DefaultLength = 32

// Prefix marks refresh tokens.
const Prefix = "utrt_"

// bodyLength is the encoded length of DefaultLength random bytes.
var bodyLength = base64.RawURLEncoding.EncodedLen(DefaultLength)

// Generate returns a new refresh token.
func Generate() (string, error) {
	body, err := GenerateWithLength(DefaultLength)
	if err != nil {
		return "", err
	}
	return Prefix + body, nil
}

// GenerateWithLength returns length random bytes, Base64 RawURL encoded.
func GenerateWithLength(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Valid reports whether s has the refresh token format.
func Valid(s string) bool {
	body, ok := strings.CutPrefix(s, Prefix)
	if !ok || len(body) != bodyLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil
}
