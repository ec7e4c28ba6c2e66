package devapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

// lockedBuffer lets handler goroutines log while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// entry returns the first log entry with message msg.
func (b *lockedBuffer) entry(t *testing.T, msg string) map[string]any {
	t.Helper()
	b.mu.Lock()
	text := b.buf.String()
	b.mu.Unlock()

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		var e map[string]any
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("log line %q: %v", sc.Text(), err)
		}
		if e["msg"] == msg {
			return e
		}
	}
	t.Fatalf("no %q entry in %s", msg, text)
	return nil
}

func TestHandlerLogsCarryRequestScope(t *testing.T) {
	var out lockedBuffer
	l, err := logger.New(logger.Config{Level: "info", Format: "json", Output: &out})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	api := newTestAPI(t, WithLogger(l), WithTracing(tp))
	s := api.login("teacher@unitrack.dev")

	in := out.entry(t, "user logged in")
	if in["user_id"] != s.userID {
		t.Errorf("login user_id = %v, want %s", in["user_id"], s.userID)
	}

	res := api.call(http.MethodPost, "/users/logout", s.access, map[string]string{"refreshToken": s.refresh})
	if res.status != http.StatusOK {
		t.Fatalf("logout status = %d", res.status)
	}
	e := out.entry(t, "user logged out")
	if got := res.header.Get(HeaderRequestID); got == "" || e["request_id"] != got {
		t.Errorf("request_id = %v, want response header %q", e["request_id"], got)
	}
	if e["user_id"] != s.userID {
		t.Errorf("user_id = %v, want %s", e["user_id"], s.userID)
	}
	if traceID, _ := e["trace_id"].(string); len(traceID) != 32 {
		t.Errorf("trace_id = %v, want a 32-digit hex trace ID", e["trace_id"])
	}
}

func TestHandlerLogs_ClientRequestID(t *testing.T) {
	var out lockedBuffer
	l, err := logger.New(logger.Config{Level: "info", Format: "json", Output: &out})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	api := newTestAPI(t, WithLogger(l))

	req, err := http.NewRequest(http.MethodPost, api.http.URL+api.prefix+"/users/login",
		strings.NewReader(`{"email":"student@unitrack.dev","password":"wrong"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, "01JCLIENTCHOSENREQUESTID00")
	resp, err := api.http.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	e := out.entry(t, "login rejected")
	if e["request_id"] != "01JCLIENTCHOSENREQUESTID00" {
		t.Errorf("request_id = %v, want the client's X-Request-ID", e["request_id"])
	}
	if _, ok := e["user_id"]; ok {
		t.Error("unauthenticated request logged a user_id")
	}
	if _, ok := e["trace_id"]; ok {
		t.Error("trace_id logged without tracing")
	}
}
