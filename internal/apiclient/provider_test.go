package apiclient

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/session"
)

// fakeProvider is a session.Provider with scripted failures.
type fakeProvider struct {
	mu     sync.Mutex
	tokens session.Tokens
	setErr error
	sets   int
	clears int
}

func (p *fakeProvider) Tokens() session.Tokens {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens
}

func (p *fakeProvider) SetTokens(_ context.Context, t session.Tokens) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sets++
	p.tokens.Access = t.Access
	if t.Refresh != "" {
		p.tokens.Refresh = t.Refresh
	}
	return p.setErr
}

func (p *fakeProvider) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	p.tokens = session.Tokens{}
	return nil
}

func TestClient_StoreFailureStillRetries(t *testing.T) {
	b, srv := newFakeBackend(t, "access-2")
	p := &fakeProvider{
		tokens: session.Tokens{Access: "access-1", Refresh: "refresh-1"},
		setErr: domain.ErrStoreUnavailable.WithDetails("disk full"),
	}
	c := newClient(t, srv.URL, p)

	if _, err := c.Do(context.Background(), NewRequest(http.MethodGet, "/courses")); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if n := b.calls.Load(); n != 2 {
		t.Errorf("resource calls = %d, want 2", n)
	}
	if p.clears != 0 {
		t.Errorf("clears = %d, want 0", p.clears)
	}
}

func TestClient_SetTokensRejectedEndsSession(t *testing.T) {
	b, srv := newFakeBackend(t, "access-2")
	p := &fakeProvider{
		tokens: session.Tokens{Access: "access-1", Refresh: "refresh-1"},
		setErr: domain.ErrPartialSession,
	}
	c := newClient(t, srv.URL, p)

	if _, err := c.Do(context.Background(), NewRequest(http.MethodGet, "/courses")); err == nil {
		t.Fatal("Do() error = nil")
	}
	if n := b.calls.Load(); n != 1 {
		t.Errorf("resource calls = %d, want 1", n)
	}
	if p.clears != 1 {
		t.Errorf("clears = %d, want 1", p.clears)
	}
}

func TestClient_NoRefreshTokenClears(t *testing.T) {
	b, srv := newFakeBackend(t, "access-2")
	p := &fakeProvider{}
	c := newClient(t, srv.URL, p)

	if _, err := c.Do(context.Background(), NewRequest(http.MethodGet, "/courses")); err == nil {
		t.Fatal("Do() error = nil")
	}
	if n := b.refreshCalls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
	if p.clears != 1 {
		t.Errorf("clears = %d, want 1", p.clears)
	}
}

func TestClient_StaticProvider(t *testing.T) {
	_, srv := newFakeBackend(t, "access-2")
	p, err := session.NewStaticProvider(session.Tokens{Access: "access-1", Refresh: "refresh-1"})
	if err != nil {
		t.Fatalf("NewStaticProvider() error = %v", err)
	}
	c := newClient(t, srv.URL, p)

	if err := c.Get(context.Background(), "/courses", nil, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := p.Tokens().Access; got != "access-2" {
		t.Errorf("access token = %q, want access-2", got)
	}
}
