package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/infra/filewatch"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

// Manager is the production Provider.
type Manager struct {
	store  Store
	logger logger.Logger

	// persistMu orders store writes; mu guards sess. persistMu is always
	// taken first so readers are never blocked behind store I/O.
	persistMu sync.Mutex
	mu        sync.RWMutex
	sess      domain.Session

	listenerMu sync.RWMutex
	listeners  []func(domain.Session)
}

var _ Provider = (*Manager)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager over store. The session starts empty and not
// hydrated; call Hydrate before the first authenticated request.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}

// Hydrate loads the persisted record once. Later calls are no-ops.
func (m *Manager) Hydrate(ctx context.Context) error {
	m.mu.RLock()
	done := m.sess.Hydrated
	m.mu.RUnlock()
	if done {
		return nil
	}
	return m.Reload(ctx)
}

// Reload re-reads the persisted record unconditionally. A corrupt or
// half-populated record is erased and the session becomes empty.
func (m *Manager) Reload(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	rec, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrCorruptRecord):
		m.logger.Warn("discarding corrupt session record", "error", err)
		rec = nil
		if derr := m.store.Delete(ctx); derr != nil {
			return storeErr("delete", derr)
		}
	case err != nil:
		return storeErr("load", err)
	}

	if verr := rec.Validate(); verr != nil {
		m.logger.Warn("discarding half-populated session record",
			"has_access_token", rec.AccessToken != "",
			"has_refresh_token", rec.RefreshToken != "")
		rec = nil
		if derr := m.store.Delete(ctx); derr != nil {
			return storeErr("delete", derr)
		}
	}

	next := rec.Session()
	m.mu.Lock()
	changed := !sameSession(m.sess, next)
	m.sess = next
	m.mu.Unlock()

	if changed {
		m.logger.Debug("session hydrated", "authenticated", next.IsAuthenticated(), "role", next.Role().String())
		m.notify(next)
	}
	return nil
}

// Begin starts a session after a successful login exchange.
func (m *Manager) Begin(ctx context.Context, user *domain.User, access, refresh string) error {
	access = strings.TrimSpace(access)
	refresh = strings.TrimSpace(refresh)
	if access == "" || refresh == "" {
		return domain.ErrPartialSession.WithDetails("login must yield both tokens")
	}
	return m.mutate(ctx, func(s *domain.Session) error {
		*s = domain.Session{
			User:         user.Clone(),
			AccessToken:  access,
			RefreshToken: refresh,
			Hydrated:     true,
		}
		return nil
	})
}

// UpdateUser replaces the profile of the current user, keeping tokens.
func (m *Manager) UpdateUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrMissingArgument.WithDetails("user")
	}
	return m.mutate(ctx, func(s *domain.Session) error {
		if !s.IsAuthenticated() {
			return domain.ErrNotAuthenticated
		}
		s.User = user.Clone()
		return nil
	})
}

// Tokens implements Provider.
func (m *Manager) Tokens() Tokens {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Tokens{Access: m.sess.AccessToken, Refresh: m.sess.RefreshToken}
}

// SetTokens implements Provider.
func (m *Manager) SetTokens(ctx context.Context, t Tokens) error {
	access := strings.TrimSpace(t.Access)
	if access == "" {
		return domain.ErrPartialSession.WithDetails("empty access token")
	}
	return m.mutate(ctx, func(s *domain.Session) error {
		refresh := s.RefreshToken
		if t.Refresh != "" {
			refresh = strings.TrimSpace(t.Refresh)
		}
		// A concurrent Clear leaves no refresh token; do not resurrect a
		// half session from a refresh that finished after logout.
		if err := domain.ValidateTokenPair(access, refresh); err != nil {
			return err
		}
		s.AccessToken = access
		s.RefreshToken = refresh
		s.Hydrated = true
		return nil
	})
}

// Clear implements Provider.
func (m *Manager) Clear(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.sess = domain.Session{Hydrated: true}
	m.mu.Unlock()

	m.notify(domain.Session{Hydrated: true})

	if err := m.store.Delete(ctx); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sess
	s.User = s.User.Clone()
	return s
}

// Role returns the resolved role of the current user.
func (m *Manager) Role() domain.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.Role()
}

// Require returns ErrPermissionDenied unless the current role has c.
func (m *Manager) Require(c domain.Capability) error {
	role := m.Role()
	if !role.Can(c) {
		return domain.ErrPermissionDenied.WithDetails(fmt.Sprintf("role %s", role))
	}
	return nil
}

// OnChange registers fn to be called with a snapshot after every change.
// Callbacks run synchronously on the mutating goroutine.
func (m *Manager) OnChange(fn func(domain.Session)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Watch reloads the session whenever another process rewrites or removes
// the session file. The store must be file-backed.
func (m *Manager) Watch(w *filewatch.Watcher) error {
	fs, ok := m.store.(interface{ Path() string })
	if !ok {
		return domain.ErrInvalidArgument.WithDetails("session store is not file-backed")
	}
	return w.Add(fs.Path(), func(ev filewatch.Event) {
		if err := m.Reload(context.Background()); err != nil {
			m.logger.Warn("session reload after file change failed", "op", ev.Op.String(), "error", err)
		}
	})
}

// mutate applies fn to a copy of the session, commits it, then persists.
func (m *Manager) mutate(ctx context.Context, fn func(*domain.Session) error) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	next := m.sess
	next.User = next.User.Clone()
	if err := fn(&next); err != nil {
		m.mu.Unlock()
		return err
	}
	m.sess = next
	m.mu.Unlock()

	snapshot := next
	snapshot.User = next.User.Clone()
	m.notify(snapshot)

	if err := m.store.Save(ctx, next.Record()); err != nil {
		return storeErr("save", err)
	}
	return nil
}

func (m *Manager) notify(s domain.Session) {
	m.listenerMu.RLock()
	listeners := append([]func(domain.Session){}, m.listeners...)
	m.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return domain.ErrStoreUnavailable.WithDetails(op).WithCause(err)
}

func sameSession(a, b domain.Session) bool {
	if a.AccessToken != b.AccessToken || a.RefreshToken != b.RefreshToken || a.Hydrated != b.Hydrated {
		return false
	}
	if (a.User == nil) != (b.User == nil) {
		return false
	}
	return a.User == nil || a.User.ID == b.User.ID && a.User.Name == b.User.Name &&
		a.User.Email == b.User.Email && a.User.Role == b.User.Role
}
