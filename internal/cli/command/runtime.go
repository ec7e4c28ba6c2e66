package command

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/auth"
	"github.com/yndnr/unitrack-go/internal/cli/config"
	"github.com/yndnr/unitrack-go/internal/cli/output"
	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/infra/buildinfo"
	"github.com/yndnr/unitrack-go/internal/infra/filewatch"
	"github.com/yndnr/unitrack-go/internal/infra/tlsroots"
	"github.com/yndnr/unitrack-go/internal/resource"
	"github.com/yndnr/unitrack-go/internal/session"
	"github.com/yndnr/unitrack-go/internal/storage"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/tracer"
	"github.com/yndnr/unitrack-go/pkg/crypto/sealer"
)

// sealPurpose binds the derived session key to its use.
const sealPurpose = "unitrack-cli session file"

// Runtime holds the process-wide state shared by all commands. Components
// are built on first use, so commands that never touch the backend (config,
// version) do not open the session store.
type Runtime struct {
	Config     *config.CLIConfig
	ConfigPath string
	Format     output.Format
	Wide       bool
	Logger     logger.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	store    session.Store
	manager  *session.Manager
	client   *apiclient.Client
	auth     *auth.Service
	catalog  *resource.Catalog
	location string
	closers  []func() error
}

// NewRuntime creates a Runtime for cfg. Logs go to stderr.
func NewRuntime(cfg *config.CLIConfig, configPath string, stdin io.Reader, stdout, stderr io.Writer) (*Runtime, error) {
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return nil, domain.ErrConfig.WithCause(err)
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: stderr,
	})
	if err != nil {
		return nil, domain.ErrConfig.WithCause(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		Config:     cfg,
		ConfigPath: configPath,
		Format:     format,
		Logger:     log,
		Stdin:      stdin,
		Stdout:     stdout,
		Stderr:     stderr,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// WithStore makes the Runtime use store instead of the configured one.
func (r *Runtime) WithStore(store session.Store, location string) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
	r.location = location
	return r
}

// Sessions returns the hydrated session manager.
func (r *Runtime) Sessions() (*session.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionsLocked()
}

func (r *Runtime) sessionsLocked() (*session.Manager, error) {
	if r.manager != nil {
		return r.manager, nil
	}
	if r.store == nil {
		store, location, err := r.openStore()
		if err != nil {
			return nil, err
		}
		r.store, r.location = store, location
	}

	m := session.NewManager(r.store, session.WithLogger(r.Logger))
	if err := m.Hydrate(r.ctx); err != nil {
		return nil, err
	}
	if r.Config.Session.Watch {
		if err := r.watchSession(m); err != nil {
			return nil, err
		}
	}
	r.manager = m
	return m, nil
}

func (r *Runtime) openStore() (session.Store, string, error) {
	cfg := r.Config.Session
	switch cfg.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(), "memory", nil

	case config.StoreBadger:
		dir := r.Config.BadgerDir()
		kv, err := storage.NewBadgerEngine(storage.DefaultKVConfig(dir), r.Logger.Slog())
		if err != nil {
			return nil, "", domain.ErrStoreUnavailable.WithCause(err)
		}
		r.closers = append(r.closers, kv.Close)
		return session.NewBadgerStore(kv, cfg.StorageKey), dir, nil

	case config.StoreRedis:
		ttl, err := r.Config.RedisTTL()
		if err != nil {
			return nil, "", err
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r.closers = append(r.closers, client.Close)
		store := session.NewRedisStore(client, cfg.Redis.Prefix, cfg.StorageKey, session.WithTTL(ttl))
		return store, "redis://" + cfg.Redis.Addr + "/" + store.Key(), nil

	default:
		opts := []session.FileStoreOption{session.WithStorageKey(cfg.StorageKey)}
		if cfg.Secret != "" {
			s, err := sealer.NewFromSecret([]byte(cfg.Secret), sealPurpose, sealer.Preferred())
			if err != nil {
				return nil, "", domain.ErrConfig.WithCause(err)
			}
			opts = append(opts, session.WithSealer(s))
		}
		path := r.Config.SessionFile()
		return session.NewFileStore(path, opts...), path, nil
	}
}

func (r *Runtime) watchSession(m *session.Manager) error {
	if fs, ok := m.Store().(*session.FileStore); ok {
		if err := os.MkdirAll(filepath.Dir(fs.Path()), 0o700); err != nil {
			return domain.ErrStoreUnavailable.WithCause(err)
		}
	}
	w, err := filewatch.New(filewatch.WithLogger(r.Logger.Slog()))
	if err != nil {
		return err
	}
	if err := m.Watch(w); err != nil {
		w.Close()
		return err
	}
	w.Start(r.ctx)
	r.closers = append(r.closers, w.Close)
	return nil
}

// Client returns the authenticated API client.
func (r *Runtime) Client() (*apiclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clientLocked()
}

func (r *Runtime) clientLocked() (*apiclient.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	m, err := r.sessionsLocked()
	if err != nil {
		return nil, err
	}
	cfg, err := r.Config.ClientConfig()
	if err != nil {
		return nil, err
	}

	opts := []apiclient.Option{
		apiclient.WithLogger(r.Logger),
		apiclient.WithUserAgent(buildinfo.UserAgent("unitrack-cli")),
	}
	if !r.Config.TLS.IsZero() {
		tlsCfg, reloader, err := tlsroots.ClientTLSConfig(r.Config.TLS)
		if err != nil {
			return nil, domain.ErrConfig.WithCause(err)
		}
		if reloader != nil {
			if err := reloader.Start(r.ctx); err != nil {
				return nil, err
			}
			r.closers = append(r.closers, reloader.Stop)
		}
		opts = append(opts, apiclient.WithTLSConfig(tlsCfg))
	}
	if r.Config.RateLimit > 0 {
		opts = append(opts, apiclient.WithRateLimit(rate.Limit(r.Config.RateLimit), r.Config.RateBurst))
	}
	if ep := r.Config.Telemetry.OTLPEndpoint; ep != "" {
		tp, err := tracer.New(r.ctx, tracer.Config{
			ServiceName: "unitrack-cli",
			Endpoint:    ep,
			SampleRatio: r.Config.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, domain.ErrConfig.WithCause(err)
		}
		r.closers = append(r.closers, func() error {
			return tp.Shutdown(context.Background())
		})
		opts = append(opts, apiclient.WithTracing(tp.TracerProvider()))
	}

	c, err := apiclient.New(cfg, m, opts...)
	if err != nil {
		return nil, err
	}
	r.client = c
	return c, nil
}

// Auth returns the auth service.
func (r *Runtime) Auth() (*auth.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auth != nil {
		return r.auth, nil
	}
	c, err := r.clientLocked()
	if err != nil {
		return nil, err
	}
	r.auth = auth.NewService(c, r.manager, auth.WithLogger(r.Logger))
	return r.auth, nil
}

// Catalog returns the resource catalog. Writes are checked against the
// capabilities of the logged-in role before any request is sent.
func (r *Runtime) Catalog() (*resource.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.catalog != nil {
		return r.catalog, nil
	}
	c, err := r.clientLocked()
	if err != nil {
		return nil, err
	}
	r.catalog = resource.NewCatalog(c, resource.WithGuard(r.manager.Require))
	return r.catalog, nil
}

// StoreLocation describes where the session is persisted.
func (r *Runtime) StoreLocation() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.location != "" {
		return r.location
	}
	switch r.Config.Session.Store {
	case config.StoreMemory:
		return "memory"
	case config.StoreBadger:
		return r.Config.BadgerDir()
	case config.StoreRedis:
		prefix := r.Config.Session.Redis.Prefix
		if prefix == "" {
			prefix = session.DefaultRedisPrefix
		}
		return "redis://" + r.Config.Session.Redis.Addr + "/" + prefix + ":" + r.Config.Session.StorageKey
	default:
		return r.Config.SessionFile()
	}
}

// Close releases the store, watchers and exporters.
func (r *Runtime) Close() error {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	r.cancel()
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
