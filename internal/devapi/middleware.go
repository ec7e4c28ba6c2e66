package devapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/tracer"
)

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-ID"

type contextKey string

const contextKeyAccount contextKey = "account"

// echoRequestID copies the request ID chosen by middleware.RequestID onto
// the response.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(HeaderRequestID, id)
		}
		next.ServeHTTP(w, r)
	})
}

// observe scopes the request context for logger.L, then logs the request
// and counts it by route pattern and status.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithLogger(r.Context(), s.logger)
		ctx = logger.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = logger.WithTraceID(ctx, tracer.TraceID(ctx))
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.ObserveServerRequest(route, status)
		}

		attrs := []any{
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", r.RemoteAddr,
		}
		log := logger.L(ctx)
		switch {
		case status >= 500:
			log.Error("request completed with error", attrs...)
		case status >= 400:
			log.Warn("request completed with client error", attrs...)
		default:
			log.Debug("request completed", attrs...)
		}
	})
}

// authenticate requires a valid bearer access token and loads its account.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, domain.ErrNotAuthenticated.WithDetails("bearer token required"))
			return
		}
		claims, err := s.tokens.ParseAccess(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		acct, err := s.accounts.Get(claims.Subject)
		if err != nil {
			s.writeError(w, r, domain.ErrNotAuthenticated.WithDetails("account no longer exists"))
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyAccount, acct)
		ctx = logger.WithUserID(ctx, acct.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountFrom returns the authenticated account of a request context.
func AccountFrom(ctx context.Context) (Account, bool) {
	acct, ok := ctx.Value(contextKeyAccount).(Account)
	return acct, ok
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
