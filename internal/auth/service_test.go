package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/session"
)

// fakeAccounts is a minimal account backend with one user.
type fakeAccounts struct {
	mu           sync.Mutex
	user         map[string]any
	logoutStatus int
	omitRefresh  bool
	calls        map[string]int
	lastBody     map[string]any
	logoutBody   map[string]any

	// validAccess is the only accepted access token. With refreshOK the
	// refresh endpoint rotates it to access-2.
	validAccess string
	refreshOK   bool
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		user: map[string]any{
			"_id": "t-17", "name": "Asha Rao", "email": "asha@unitrack.test",
			"role": "teacher", "designation": "Assistant Professor",
		},
		logoutStatus: http.StatusOK,
		calls:        make(map[string]int),
		validAccess:  "access-1",
	}
}

func (f *fakeAccounts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[r.URL.Path]++
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.lastBody = body
	authed := r.Header.Get("Authorization") == "Bearer "+f.validAccess

	switch r.URL.Path {
	case LoginPath:
		if body["email"] != "asha@unitrack.test" || body["password"] != "s3cret" {
			envelope(w, http.StatusUnauthorized, nil, "Invalid user credentials")
			return
		}
		data := map[string]any{"user": f.user, "accessToken": "access-1", "refreshToken": "refresh-1"}
		if f.omitRefresh {
			delete(data, "refreshToken")
		}
		envelope(w, http.StatusOK, data, "User logged in successfully")
	case LogoutPath:
		if !authed {
			envelope(w, http.StatusUnauthorized, nil, "jwt expired")
			return
		}
		f.logoutBody = body
		envelope(w, f.logoutStatus, map[string]any{}, "logged out")
	case CurrentUserPath:
		if !authed {
			envelope(w, http.StatusUnauthorized, nil, "jwt expired")
			return
		}
		envelope(w, http.StatusOK, f.user, "current user")
	case UpdateAccountPath:
		if !authed {
			envelope(w, http.StatusUnauthorized, nil, "jwt expired")
			return
		}
		for k, v := range body {
			f.user[k] = v
		}
		envelope(w, http.StatusOK, f.user, "updated")
	case ChangePasswordPath:
		if body["oldPassword"] != "s3cret" {
			envelope(w, http.StatusBadRequest, nil, "Invalid old password")
			return
		}
		envelope(w, http.StatusOK, map[string]any{}, "Password changed successfully")
	case apiclient.DefaultRefreshPath:
		if !f.refreshOK || body["refreshToken"] != "refresh-1" {
			envelope(w, http.StatusUnauthorized, nil, "refresh token expired")
			return
		}
		f.validAccess = "access-2"
		envelope(w, http.StatusOK, map[string]any{"accessToken": "access-2"}, "Access token refreshed")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAccounts) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func envelope(w http.ResponseWriter, status int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": status,
		"data":       data,
		"message":    msg,
		"success":    status < 400,
	})
}

func setup(t *testing.T) (*Service, *session.Manager, *session.MemoryStore, *fakeAccounts) {
	t.Helper()

	backend := newFakeAccounts()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	m := session.NewManager(store)
	if err := m.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	c, err := apiclient.New(apiclient.DefaultConfig(srv.URL), m)
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}
	return NewService(c, m), m, store, backend
}

func login(t *testing.T, s *Service) {
	t.Helper()

	if _, err := s.Login(context.Background(), Credentials{Email: "asha@unitrack.test", Password: "s3cret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestLogin(t *testing.T) {
	s, m, store, _ := setup(t)

	user, err := s.Login(context.Background(), Credentials{Email: " asha@unitrack.test ", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != "t-17" || user.ParsedRole() != domain.RoleTeacher {
		t.Errorf("Login() user = %+v", user)
	}

	snap := m.Snapshot()
	if snap.AccessToken != "access-1" || snap.RefreshToken != "refresh-1" || snap.User == nil {
		t.Errorf("session = %+v", snap)
	}

	rec, err := store.Load(context.Background())
	if err != nil || rec == nil {
		t.Fatalf("store.Load() = %v, %v", rec, err)
	}
	if rec.AccessToken != "access-1" || rec.RefreshToken != "refresh-1" || rec.Data.ID != "t-17" {
		t.Errorf("persisted record = %+v", rec)
	}
	if rec.Data.Extra["designation"] != "Assistant Professor" {
		t.Errorf("role-specific field lost: %v", rec.Data.Extra)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		omit    bool
		wantErr error
	}{
		{"missing email", Credentials{Password: "x"}, false, domain.ErrMissingArgument},
		{"missing password", Credentials{Email: "asha@unitrack.test"}, false, domain.ErrMissingArgument},
		{"wrong password", Credentials{Email: "asha@unitrack.test", Password: "nope"}, false, domain.ErrInvalidCredentials},
		{"half token pair", Credentials{Email: "asha@unitrack.test", Password: "s3cret"}, true, domain.ErrLoginResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m, store, backend := setup(t)
			backend.mu.Lock()
			backend.omitRefresh = tt.omit
			backend.mu.Unlock()

			_, err := s.Login(context.Background(), tt.creds)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if !m.Snapshot().IsEmpty() || store.Raw() != nil {
				t.Error("failed login touched the session")
			}
			if n := backend.count(apiclient.DefaultRefreshPath); n != 0 {
				t.Errorf("refresh calls = %d, want 0", n)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			s, m, store, backend := setup(t)
			backend.mu.Lock()
			backend.logoutStatus = status
			backend.mu.Unlock()
			login(t, s)

			if err := s.Logout(context.Background()); err != nil {
				t.Fatalf("Logout() error = %v", err)
			}
			if !m.Snapshot().IsEmpty() {
				t.Errorf("session = %+v, want empty", m.Snapshot())
			}
			if store.Raw() != nil {
				t.Error("persisted record survived logout")
			}
			if n := backend.count(LogoutPath); n != 1 {
				t.Errorf("logout calls = %d, want 1", n)
			}
		})
	}
}

func TestLogout_NotLoggedIn(t *testing.T) {
	s, _, _, backend := setup(t)

	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if n := backend.count(LogoutPath); n != 0 {
		t.Errorf("logout calls = %d, want 0", n)
	}
}

func TestLogout_RevokesOwnRefreshToken(t *testing.T) {
	s, _, _, backend := setup(t)
	login(t, s)

	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	backend.mu.Lock()
	body := backend.logoutBody
	backend.mu.Unlock()
	if body["refreshToken"] != "refresh-1" {
		t.Errorf("logout body = %v, want refreshToken refresh-1", body)
	}
}

func TestLogout_ExpiredAccessToken(t *testing.T) {
	tests := []struct {
		name        string
		refreshOK   bool
		wantLogouts int
		wantRevoked bool
	}{
		{name: "refresh succeeds", refreshOK: true, wantLogouts: 2, wantRevoked: true},
		{name: "refresh rejected", refreshOK: false, wantLogouts: 1, wantRevoked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m, store, backend := setup(t)
			login(t, s)
			backend.mu.Lock()
			backend.validAccess = "access-expired"
			backend.refreshOK = tt.refreshOK
			backend.mu.Unlock()

			if err := s.Logout(context.Background()); err != nil {
				t.Fatalf("Logout() error = %v", err)
			}
			if n := backend.count(apiclient.DefaultRefreshPath); n != 1 {
				t.Errorf("refresh calls = %d, want 1", n)
			}
			if n := backend.count(LogoutPath); n != tt.wantLogouts {
				t.Errorf("logout calls = %d, want %d", n, tt.wantLogouts)
			}
			backend.mu.Lock()
			revoked := backend.logoutBody["refreshToken"] == "refresh-1"
			backend.mu.Unlock()
			if revoked != tt.wantRevoked {
				t.Errorf("backend revoked refresh-1 = %v, want %v", revoked, tt.wantRevoked)
			}
			if !m.Snapshot().IsEmpty() || store.Raw() != nil {
				t.Errorf("session survived logout: %+v", m.Snapshot())
			}
		})
	}
}

func TestMe(t *testing.T) {
	s, m, _, backend := setup(t)

	if _, err := s.Me(context.Background()); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("Me() before login error = %v", err)
	}

	login(t, s)
	backend.mu.Lock()
	backend.user["name"] = "Asha R."
	backend.mu.Unlock()

	user, err := s.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if user.Name != "Asha R." || m.Snapshot().User.Name != "Asha R." {
		t.Errorf("Me() = %q, session user = %q", user.Name, m.Snapshot().User.Name)
	}
}

func TestUpdateProfile(t *testing.T) {
	s, m, store, _ := setup(t)
	login(t, s)

	if _, err := s.UpdateProfile(context.Background(), nil); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("UpdateProfile(nil) error = %v", err)
	}

	user, err := s.UpdateProfile(context.Background(), map[string]any{"name": "Dr. Asha Rao"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if user.Name != "Dr. Asha Rao" {
		t.Errorf("UpdateProfile() name = %q", user.Name)
	}
	if m.Snapshot().AccessToken != "access-1" {
		t.Error("profile update changed tokens")
	}
	rec, _ := store.Load(context.Background())
	if rec == nil || rec.Data.Name != "Dr. Asha Rao" {
		t.Errorf("persisted user = %+v", rec)
	}
}

func TestChangePassword(t *testing.T) {
	s, m, _, _ := setup(t)

	if err := s.ChangePassword(context.Background(), "s3cret", "n3w"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("ChangePassword() before login error = %v", err)
	}
	login(t, s)

	tests := []struct {
		name         string
		oldPw, newPw string
		check        func(error) bool
	}{
		{"ok", "s3cret", "n3w-s3cret", func(err error) bool { return err == nil }},
		{"missing", "", "x", func(err error) bool { return errors.Is(err, domain.ErrMissingArgument) }},
		{"same", "s3cret", "s3cret", func(err error) bool { return errors.Is(err, domain.ErrInvalidArgument) }},
		{"wrong old", "guess", "x", func(err error) bool { return apiclient.StatusCode(err) == http.StatusBadRequest }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.ChangePassword(context.Background(), tt.oldPw, tt.newPw); !tt.check(err) {
				t.Errorf("ChangePassword() error = %v", err)
			}
		})
	}
	if !m.Snapshot().IsAuthenticated() {
		t.Error("ChangePassword ended the session")
	}
}
