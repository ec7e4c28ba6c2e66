package devapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "devapi-test-secret-0123456789"

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() *Config {
	cfg := Default()
	cfg.Auth.Secret = testSecret
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return cfg
}

type testAPI struct {
	t      *testing.T
	srv    *Server
	http   *httptest.Server
	clock  *fakeClock
	prefix string
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()
	clock := newFakeClock()
	cfg := testConfig()
	srv, err := New(cfg, append([]Option{WithClock(clock.Now)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &testAPI{t: t, srv: srv, http: hs, clock: clock, prefix: cfg.BasePath}
}

type result struct {
	status int
	header http.Header
	env    Envelope
}

// data re-decodes the envelope data into v.
func (r result) data(t *testing.T, v any) {
	t.Helper()
	raw, err := json.Marshal(r.env.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
}

// call sends a JSON request to an API path (below the base path).
func (a *testAPI) call(method, path, bearer string, body any) result {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	return a.raw(method, a.prefix+path, bearer, "application/json", rd)
}

func (a *testAPI) raw(method, fullPath, bearer, contentType string, body io.Reader) result {
	a.t.Helper()
	req, err := http.NewRequest(method, a.http.URL+fullPath, body)
	if err != nil {
		a.t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := a.http.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, fullPath, err)
	}
	defer resp.Body.Close()

	out := result{status: resp.StatusCode, header: resp.Header}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(raw, &out.env); err != nil {
			a.t.Fatalf("decode envelope %s: %v", raw, err)
		}
	}
	return out
}

type session struct {
	access  string
	refresh string
	userID  string
}

func (a *testAPI) login(email string) session {
	a.t.Helper()
	res := a.call(http.MethodPost, "/users/login", "", map[string]string{
		"email": email, "password": DefaultSeedPassword,
	})
	if res.status != http.StatusOK {
		a.t.Fatalf("login %s: status %d: %s", email, res.status, res.env.Message)
	}
	var payload struct {
		User struct {
			ID string `json:"_id"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	res.data(a.t, &payload)
	return session{access: payload.AccessToken, refresh: payload.RefreshToken, userID: payload.User.ID}
}
