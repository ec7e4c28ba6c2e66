package tlsroots

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/unitrack-go/internal/infra/filewatch"
)

// Reloader holds a key pair and reloads it when either file changes.
type Reloader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger
	debounce time.Duration

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher *filewatch.Watcher
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithLogger sets the logger for the reloader.
func WithLogger(logger *slog.Logger) ReloaderOption {
	return func(r *Reloader) {
		r.logger = logger
	}
}

// WithDebounce sets the debounce applied to file events.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// NewReloader loads the key pair once; Start enables hot reload.
func NewReloader(certFile, keyFile string, opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return r, nil
}

// Start watches both files until ctx is cancelled or Stop is called.
func (r *Reloader) Start(ctx context.Context) error {
	w, err := filewatch.New(filewatch.WithLogger(r.logger), filewatch.WithDebounce(r.debounce))
	if err != nil {
		return fmt.Errorf("tlsroots: %w", err)
	}

	onChange := func(ev filewatch.Event) {
		if ev.Op != filewatch.Changed {
			return
		}
		if err := r.reload(); err != nil {
			r.logger.Error("certificate reload failed",
				"error", err,
				"cert_file", r.certFile,
				"key_file", r.keyFile,
			)
		}
	}
	for _, f := range []string{r.certFile, r.keyFile} {
		if err := w.Add(f, onChange); err != nil {
			w.Close()
			return fmt.Errorf("tlsroots: %w", err)
		}
	}

	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()

	w.Start(ctx)
	r.logger.Info("certificate watcher started", "cert_file", r.certFile, "key_file", r.keyFile)
	return nil
}

// Stop stops watching. Safe to call without Start.
func (r *Reloader) Stop() error {
	r.mu.Lock()
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

// Certificate returns the current key pair.
func (r *Reloader) Certificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.Certificate(), nil
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (r *Reloader) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return r.Certificate(), nil
}

func (r *Reloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, perr := x509.ParseCertificate(cert.Certificate[0]); perr == nil {
			cert.Leaf = leaf
		}
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	if cert.Leaf != nil {
		r.logger.Info("certificate loaded",
			"cert_file", r.certFile,
			"not_after", cert.Leaf.NotAfter,
		)
	}
	return nil
}
