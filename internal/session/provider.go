package session

import (
	"context"

	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// Tokens is a snapshot of the credential pair.
type Tokens struct {
	Access  string
	Refresh string
}

// IsZero reports whether neither token is set.
func (t Tokens) IsZero() bool {
	return t.Access == "" && t.Refresh == ""
}

// Provider is the session contract consumed by the API client.
type Provider interface {
	// Tokens returns the credentials current at the moment of the call.
	Tokens() Tokens

	// SetTokens replaces the access token, keeping the user. An empty
	// Refresh keeps the stored refresh token. The change is persisted
	// before SetTokens returns.
	SetTokens(ctx context.Context, t Tokens) error

	// Clear drops user and tokens and erases the persisted record.
	Clear(ctx context.Context) error
}

// Store persists the single session record.
type Store interface {
	// Load returns the stored record, or nil, nil when none exists.
	Load(ctx context.Context) (*domain.PersistedRecord, error)
	// Save replaces the stored record.
	Save(ctx context.Context, rec *domain.PersistedRecord) error
	// Delete removes the stored record. Deleting nothing is not an error.
	Delete(ctx context.Context) error
}

// StaticProvider is a Provider over fixed in-memory tokens with no
// persistence. Useful for scripts holding a token from elsewhere and in tests.
type StaticProvider struct {
	m *Manager
}

// NewStaticProvider returns a provider seeded with t.
func NewStaticProvider(t Tokens) (*StaticProvider, error) {
	m := NewManager(NewMemoryStore())
	if err := domain.ValidateTokenPair(t.Access, t.Refresh); err != nil {
		return nil, err
	}
	m.sess = domain.Session{AccessToken: t.Access, RefreshToken: t.Refresh, Hydrated: true}
	return &StaticProvider{m: m}, nil
}

// Tokens implements Provider.
func (p *StaticProvider) Tokens() Tokens { return p.m.Tokens() }

// SetTokens implements Provider.
func (p *StaticProvider) SetTokens(ctx context.Context, t Tokens) error {
	return p.m.SetTokens(ctx, t)
}

// Clear implements Provider.
func (p *StaticProvider) Clear(ctx context.Context) error { return p.m.Clear(ctx) }
