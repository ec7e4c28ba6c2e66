package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Algorithm identifies the AEAD construction.
type Algorithm string

const (
	AESGCM           Algorithm = "aes-gcm"
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

const (
	formatVersion = 1

	// KeySize is the key length accepted by both algorithms.
	KeySize = 32

	// MinSecretLength is the shortest secret DeriveKey accepts.
	MinSecretLength = 16
)

var algIDs = map[Algorithm]byte{
	AESGCM:           1,
	ChaCha20Poly1305: 2,
}

// Errors returned by the sealer.
var (
	ErrKeySize          = errors.New("sealer: key must be 32 bytes")
	ErrSecretTooShort   = errors.New("sealer: secret too short (minimum 16 bytes)")
	ErrUnknownAlgorithm = errors.New("sealer: unknown algorithm")
	ErrMalformed        = errors.New("sealer: malformed sealed data")
	ErrOpen             = errors.New("sealer: open failed - wrong key or corrupted data")
)

// Sealer seals and opens byte slices with a fixed key.
// It is safe for concurrent use.
type Sealer struct {
	key   []byte
	alg   Algorithm
	aeads map[Algorithm]cipher.AEAD
}

// Preferred returns the algorithm best suited to the running architecture.
func Preferred() Algorithm {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return AESGCM
	default:
		return ChaCha20Poly1305
	}
}

// New creates a Sealer. An empty alg selects Preferred().
func New(key []byte, alg Algorithm) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	if alg == "" {
		alg = Preferred()
	}
	if _, ok := algIDs[alg]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, alg)
	}

	s := &Sealer{
		key:   append([]byte(nil), key...),
		alg:   alg,
		aeads: make(map[Algorithm]cipher.AEAD, len(algIDs)),
	}
	for a := range algIDs {
		aead, err := newAEAD(a, s.key)
		if err != nil {
			return nil, err
		}
		s.aeads[a] = aead
	}
	return s, nil
}

// NewFromSecret derives a key from secret for the given purpose and
// returns a Sealer using it.
func NewFromSecret(secret []byte, purpose string, alg Algorithm) (*Sealer, error) {
	key, err := DeriveKey(secret, purpose)
	if err != nil {
		return nil, err
	}
	return New(key, alg)
}

// DeriveKey expands secret into a KeySize key bound to purpose (HKDF-SHA256).
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("sealer: derive key: %w", err)
	}
	return key, nil
}

// Algorithm returns the algorithm used for new seals.
func (s *Sealer) Algorithm() Algorithm {
	return s.alg
}

// Seal encrypts plaintext; aad is authenticated but not stored.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	aead := s.aeads[s.alg]
	header := []byte{formatVersion, algIDs[s.alg]}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealer: nonce: %w", err)
	}

	out := make([]byte, 0, len(header)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Open decrypts data produced by Seal with the same key and aad.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) < 2 || sealed[0] != formatVersion {
		return nil, ErrMalformed
	}

	var aead cipher.AEAD
	for a, id := range algIDs {
		if id == sealed[1] {
			aead = s.aeads[a]
			break
		}
	}
	if aead == nil {
		return nil, ErrUnknownAlgorithm
	}

	body := sealed[2:]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ct := body[:aead.NonceSize()], body[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrOpen
	}
	return plain, nil
}

// IsSealed reports whether data looks like output of Seal.
func IsSealed(data []byte) bool {
	if len(data) < 2 || data[0] != formatVersion {
		return false
	}
	for _, id := range algIDs {
		if data[1] == id {
			return true
		}
	}
	return false
}

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, ErrUnknownAlgorithm
	}
}
