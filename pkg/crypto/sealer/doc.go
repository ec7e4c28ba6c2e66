// Package sealer provides authenticated encryption for small records at rest.
//
// A sealed blob is self-describing:
//
//	version (1 byte) | algorithm (1 byte) | nonce | ciphertext+tag
//
// so a record written with one algorithm can still be opened after the
// preferred algorithm changes, as long as the key is the same.
//
// AES-GCM is preferred on amd64 and arm64, where Go's implementation is
// hardware accelerated; ChaCha20-Poly1305 is used everywhere else.
package sealer
