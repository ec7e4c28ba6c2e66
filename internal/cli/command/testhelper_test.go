package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v2"
)

// mockServer is a small UniTrack backend: login, refresh, current user and
// an in-memory course list.
type mockServer struct {
	*httptest.Server

	mu           sync.Mutex
	role         string
	access       string
	refresh      string
	issued       int
	refreshCalls int
	hits         map[string]int
	courses      []map[string]any
	lastQuery    string
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{
		role: "admin",
		hits: make(map[string]int),
		courses: []map[string]any{
			{"_id": "c-1", "name": "B.Tech CSE", "duration": float64(4)},
			{"_id": "c-2", "name": "MBA", "duration": float64(2)},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/login", m.login)
	mux.HandleFunc("POST /users/refresh-token", m.refreshToken)
	mux.HandleFunc("POST /users/logout", m.authed(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, nil)
	}))
	mux.HandleFunc("GET /users/current-user", m.authed(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		u := m.user()
		m.mu.Unlock()
		envelope(w, http.StatusOK, u)
	}))
	mux.HandleFunc("GET /courses", m.authed(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.lastQuery = r.URL.RawQuery
		courses := m.courses
		m.mu.Unlock()
		envelope(w, http.StatusOK, courses)
	}))
	mux.HandleFunc("POST /courses", m.authed(func(w http.ResponseWriter, r *http.Request) {
		var rec map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			envelope(w, http.StatusBadRequest, nil)
			return
		}
		rec["_id"] = "c-new"
		m.mu.Lock()
		m.courses = append(m.courses, rec)
		m.mu.Unlock()
		envelope(w, http.StatusCreated, rec)
	}))

	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.hits[r.Method+" "+r.URL.Path]++
		m.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) user() map[string]any {
	return map[string]any{"_id": "u-1", "name": "Asha Rao", "email": "asha@uni.edu", "role": m.role}
}

func (m *mockServer) mint() string {
	m.issued++
	claims := jwt.MapClaims{
		"sub": "u-1",
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"n":   m.issued,
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	return tok
}

func (m *mockServer) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&creds)
	if creds.Email != "asha@uni.edu" || creds.Password != "pw" {
		envelope(w, http.StatusUnauthorized, nil)
		return
	}

	m.mu.Lock()
	m.access, m.refresh = m.mint(), "rt-1"
	payload := map[string]any{"user": m.user(), "accessToken": m.access, "refreshToken": m.refresh}
	m.mu.Unlock()
	envelope(w, http.StatusOK, payload)
}

func (m *mockServer) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	if body.RefreshToken == "" || body.RefreshToken != m.refresh {
		envelope(w, http.StatusUnauthorized, nil)
		return
	}
	m.access = m.mint()
	envelope(w, http.StatusOK, map[string]any{"accessToken": m.access})
}

func (m *mockServer) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		ok := m.access != "" && r.Header.Get("Authorization") == "Bearer "+m.access
		m.mu.Unlock()
		if !ok {
			envelope(w, http.StatusUnauthorized, nil)
			return
		}
		next(w, r)
	}
}

// expireAccess makes the server reject the current access token.
func (m *mockServer) expireAccess() {
	m.mu.Lock()
	m.access = m.mint()
	m.mu.Unlock()
}

func (m *mockServer) setRole(role string) {
	m.mu.Lock()
	m.role = role
	m.mu.Unlock()
}

func (m *mockServer) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

func (m *mockServer) query() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

func (m *mockServer) hitCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[key]
}

func envelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	msg := http.StatusText(status)
	json.NewEncoder(w).Encode(map[string]any{
		"statusCode": status,
		"data":       data,
		"message":    msg,
		"success":    status < 300,
	})
}

// harness runs the real app against a mock server with an isolated
// config and session file.
type harness struct {
	t      *testing.T
	server *mockServer
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, k := range []string{"UNITRACK_SERVER", "UNITRACK_CONFIG", "UNITRACK_OUTPUT", "UNITRACK_PASSWORD"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return &harness{t: t, server: newMockServer(t), dir: t.TempDir()}
}

func (h *harness) sessionFile() string {
	return filepath.Join(h.dir, "session.json")
}

func (h *harness) configFile() string {
	return filepath.Join(h.dir, "cli.yaml")
}

// run executes one CLI invocation and returns stdout and stderr.
func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := []string{
		"unitrack-cli",
		"--config", h.configFile(),
		"--server", h.server.URL,
		"--session-file", h.sessionFile(),
	}
	err := app.Run(append(full, args...))
	return stdout.String(), stderr.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%s: %v\nstderr: %s", strings.Join(args, " "), err, errOut)
	}
	return out
}

func (h *harness) login() {
	h.t.Helper()
	h.mustRun("login", "--email", "asha@uni.edu", "--password", "pw")
}
