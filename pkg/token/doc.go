// Package token generates and hashes opaque refresh tokens.
//
// Token format:
//
//   - Prefix: utrt_ (5 characters)
//   - Body: 43 characters of Base64 RawURL encoded random bytes
//   - Total: 48 characters
//
// Hash format:
//
//   - Prefix: utrh_ (5 characters)
//   - Body: 64 characters of hex-encoded SHA-256
//   - Total: 69 characters
//
// Servers keep only the hash; comparison is constant time.
package token
