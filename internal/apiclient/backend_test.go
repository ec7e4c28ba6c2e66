package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeBackend accepts exactly one access token at a time and mints a new
// one on refresh.
type fakeBackend struct {
	mu         sync.Mutex
	valid      string
	nextAccess string
	refreshOK  bool
	always401  bool

	refreshDelay time.Duration
	// refreshGate holds every refresh until gateSize of them arrived.
	refreshGate chan struct{}
	gateSize    int32

	calls        atomic.Int32
	refreshCalls atomic.Int32
	authHeaders  []string
	requestIDs   []string
	refreshAuth  []string
	refreshBody  []string
}

func newFakeBackend(t *testing.T, valid string) (*fakeBackend, *httptest.Server) {
	t.Helper()

	b := &fakeBackend{valid: valid, nextAccess: "access-2", refreshOK: true}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == DefaultRefreshPath {
		b.serveRefresh(w, r)
		return
	}

	b.calls.Add(1)
	auth := r.Header.Get(HeaderAuthorization)
	b.mu.Lock()
	b.authHeaders = append(b.authHeaders, auth)
	b.requestIDs = append(b.requestIDs, r.Header.Get(HeaderRequestID))
	valid, always401 := b.valid, b.always401
	b.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/public") {
		writeJSON(w, http.StatusOK, map[string]any{"statusCode": 200, "success": true, "data": map[string]any{"path": r.URL.Path}})
		return
	}
	if r.URL.Path == "/missing" {
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "success": false, "message": "no such thing"})
		return
	}
	if always401 || auth != "Bearer "+valid {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"statusCode": 401, "success": false, "message": "jwt expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statusCode": 200, "success": true, "data": map[string]any{"path": r.URL.Path}})
}

func (b *fakeBackend) serveRefresh(w http.ResponseWriter, r *http.Request) {
	n := b.refreshCalls.Add(1)

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.refreshAuth = append(b.refreshAuth, r.Header.Get(HeaderAuthorization))
	b.refreshBody = append(b.refreshBody, body.RefreshToken)
	ok, next, delay, gate, gateSize := b.refreshOK, b.nextAccess, b.refreshDelay, b.refreshGate, b.gateSize
	b.mu.Unlock()

	if gate != nil {
		if n == gateSize {
			close(gate)
		}
		select {
		case <-gate:
		case <-time.After(5 * time.Second):
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"statusCode": 401, "success": false, "message": "refresh token revoked"})
		return
	}
	b.mu.Lock()
	b.valid = next
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"statusCode": 200, "success": true, "data": map[string]any{"accessToken": next}})
}

func (b *fakeBackend) set(fn func(*fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) headers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

func (b *fakeBackend) ids() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

func (b *fakeBackend) refreshRequests() (auth, body []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.refreshAuth...), append([]string(nil), b.refreshBody...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
