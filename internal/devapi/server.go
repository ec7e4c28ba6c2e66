package devapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/infra/buildinfo"
	"github.com/yndnr/unitrack-go/internal/infra/tlsroots"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/metric"
	"github.com/yndnr/unitrack-go/pkg/token"
)

// PurgeInterval is how often expired refresh tokens are dropped.
const PurgeInterval = time.Minute

// Server is the development backend.
type Server struct {
	cfg      *Config
	logger   logger.Logger
	metrics  *metric.Registry
	tracing  trace.TracerProvider
	now      func() time.Time
	accounts *Accounts
	tokens   *Tokens
	records  *Records
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	reloader   *tlsroots.Reloader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics records request and token metrics and serves GET /metrics.
func WithMetrics(reg *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = reg
	}
}

// WithTracing wraps the handler with otelhttp.
func WithTracing(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracing = tp
	}
}

// WithClock replaces time.Now for token issuance and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a server from cfg, seeding demo accounts when enabled.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, logger: logger.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	accessTTL, _ := cfg.AccessTTL()
	refreshTTL, _ := cfg.RefreshTTL()
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		generated, err := token.Generate()
		if err != nil {
			return nil, domain.ErrInternal.WithCause(err)
		}
		secret = []byte(generated)
		s.logger.Warn("auth.secret not set, using a per-process signing secret")
	}
	tokens, err := NewTokens(secret, accessTTL, refreshTTL, s.now)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens
	s.accounts = NewAccounts(cfg.Auth.BcryptCost, s.now)
	s.records = NewRecords(s.now)

	if cfg.Seed.Enabled {
		seeded, err := s.accounts.Seed(cfg.Seed.Domain, cfg.Seed.Password)
		if err != nil {
			return nil, err
		}
		for _, a := range seeded {
			s.logger.Info("seeded account", "email", a.Email, "role", a.Role.String())
		}
	}
	if s.metrics != nil {
		s.registerCollectors()
	}

	s.handler = s.routes()
	return s, nil
}

// Accounts returns the user directory.
func (s *Server) Accounts() *Accounts {
	return s.accounts
}

// Tokens returns the token issuer.
func (s *Server) Tokens() *Tokens {
	return s.tokens
}

// Records returns the record collections.
func (s *Server) Records() *Records {
	return s.records
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(echoRequestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, domain.ErrRecordNotFound.WithDetails("no route for "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderErrorCode, domain.ErrInvalidArgument.Code)
		s.writeJSON(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	if base := s.cfg.BasePath; base != "" && base != "/" {
		r.Route(base, s.mountAPI)
	} else {
		s.mountAPI(r)
	}

	var h http.Handler = cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderRequestID},
		ExposedHeaders:   []string{HeaderRequestID, HeaderErrorCode},
		AllowCredentials: true,
	}).Handler(r)
	if s.tracing != nil {
		h = otelhttp.NewHandler(h, "unitrack-devapi", otelhttp.WithTracerProvider(s.tracing))
	}
	return h
}

func (s *Server) mountAPI(r chi.Router) {
	r.Post("/users/login", s.handleLogin)
	r.Post("/users/refresh-token", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/users/logout", s.handleLogout)
		r.Get("/users/current-user", s.handleCurrentUser)
		r.Patch("/users/update-account", s.handleUpdateAccount)
		r.Post("/users/change-password", s.handleChangePassword)
		for _, c := range s.records.Collections() {
			s.routeCollection(r, c)
		}
	})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, "healthy", map[string]any{
		"status":   "ok",
		"version":  buildinfo.Get().Version,
		"time":     s.now().UTC().Format(time.RFC3339),
		"accounts": s.accounts.Count(),
		"records":  s.records.Total(),
	})
}

func (s *Server) registerCollectors() {
	collectors := []*metric.Collector{
		metric.NewCollector("devapi", "refresh_tokens_active", "Refresh tokens currently valid.",
			func() float64 { return float64(s.tokens.ActiveGrants()) }),
		metric.NewCollector("devapi", "accounts", "Accounts in the directory.",
			func() float64 { return float64(s.accounts.Count()) }),
		metric.NewCollector("devapi", "records", "Records across all collections.",
			func() float64 { return float64(s.records.Total()) }),
	}
	for _, c := range collectors {
		if err := s.metrics.Registerer().Register(c); err != nil {
			s.logger.Warn("register collector", "error", err)
		}
	}
}

// ListenAndServe listens on cfg.Addr and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown, over TLS when a key pair is
// configured. It returns nil after a graceful shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	if s.cfg.TLS.Enabled() {
		reloader, err := tlsroots.NewReloader(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile,
			tlsroots.WithLogger(s.logger.Slog()))
		if err != nil {
			ln.Close()
			return err
		}
		if err := reloader.Start(ctx); err != nil {
			ln.Close()
			return err
		}
		srv.TLSConfig = tlsroots.ServerTLSConfig(reloader)
		s.mu.Lock()
		s.reloader = reloader
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	go s.purgeLoop(ctx)

	s.logger.Info("dev api listening", "addr", ln.Addr().String(),
		"tls", s.cfg.TLS.Enabled(), "base_path", s.cfg.BasePath)
	var err error
	if srv.TLSConfig != nil {
		err = srv.ServeTLS(ln, "", "")
	} else {
		err = srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, reloader := s.httpServer, s.reloader
	s.mu.Unlock()

	var errs []error
	if srv != nil {
		errs = append(errs, srv.Shutdown(ctx))
	}
	if reloader != nil {
		errs = append(errs, reloader.Stop())
	}
	return errors.Join(errs...)
}

func (s *Server) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.tokens.PurgeExpired(); n > 0 {
				s.logger.Debug("purged expired refresh tokens", "count", n)
			}
		}
	}
}
