package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoCertsFound is returned when no certificates are found in a PEM file.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM file")

	// ErrIncompleteKeyPair is returned when only one of cert/key is set.
	ErrIncompleteKeyPair = errors.New("tlsroots: cert_file and key_file must be set together")
)

// Pool manages a pool of trusted root certificates.
type Pool struct {
	certPool *x509.CertPool
}

// NewPool creates a new certificate pool with system roots.
// If system roots cannot be loaded, it creates an empty pool.
func NewPool() (*Pool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		// Fall back to empty pool on systems where system certs aren't available
		pool = x509.NewCertPool()
	}
	return &Pool{certPool: pool}, nil
}

// NewEmptyPool creates a new empty certificate pool without system roots.
func NewEmptyPool() *Pool {
	return &Pool{certPool: x509.NewCertPool()}
}

// AddCertFile adds certificates from a PEM file.
// Multiple certificates in the same file are supported.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read cert file %s: %w", path, err)
	}

	return p.AddCertPEM(data)
}

// AddCertPEM adds certificates from PEM-encoded data.
func (p *Pool) AddCertPEM(pemData []byte) error {
	var certsAdded int

	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}

		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("tlsroots: parse certificate: %w", err)
		}

		p.certPool.AddCert(cert)
		certsAdded++
	}

	if certsAdded == 0 {
		return ErrNoCertsFound
	}

	return nil
}

// AddCert adds a certificate directly.
func (p *Pool) AddCert(cert *x509.Certificate) {
	p.certPool.AddCert(cert)
}

// AddCertDir adds all PEM files (.pem, .crt, .cer) from a directory.
// Unreadable or certificate-free files are skipped; the number of files that
// contributed at least one certificate is returned.
func (p *Pool) AddCertDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}

	added := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pem", ".crt", ".cer":
			if err := p.AddCertFile(filepath.Join(dir, entry.Name())); err == nil {
				added++
			}
		}
	}
	return added, nil
}

// Pool returns the underlying x509.CertPool.
func (p *Pool) Pool() *x509.CertPool {
	return p.certPool
}

// Config describes the client-side TLS settings for reaching the API.
type Config struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `koanf:"ca_file" json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	// CADir is a directory of PEM files trusted in addition to the system roots.
	CADir string `koanf:"ca_dir" json:"ca_dir,omitempty" yaml:"ca_dir,omitempty"`
	// CertFile and KeyFile enable mutual TLS.
	CertFile string `koanf:"cert_file" json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `koanf:"key_file" json:"key_file,omitempty" yaml:"key_file,omitempty"`
	// ServerName overrides SNI and certificate verification host.
	ServerName string `koanf:"server_name" json:"server_name,omitempty" yaml:"server_name,omitempty"`
	// InsecureSkipVerify disables certificate verification (development only).
	InsecureSkipVerify bool `koanf:"insecure_skip_verify" json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// IsZero reports whether no TLS customisation was requested.
func (c Config) IsZero() bool {
	return c == Config{}
}

// ClientTLSConfig builds a tls.Config from cfg. The returned reloader is
// non-nil when a client key pair was configured; callers that live long
// enough may Start it to pick up rotated certificates.
func ClientTLSConfig(cfg Config) (*tls.Config, *Reloader, error) {
	pool, err := NewPool()
	if err != nil {
		return nil, nil, err
	}
	if cfg.CAFile != "" {
		if err := pool.AddCertFile(cfg.CAFile); err != nil {
			return nil, nil, err
		}
	}
	if cfg.CADir != "" {
		if _, err := pool.AddCertDir(cfg.CADir); err != nil {
			return nil, nil, err
		}
	}

	tlsCfg := &tls.Config{
		RootCAs:            pool.Pool(),
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for local development
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CertFile == "" && cfg.KeyFile == "" {
		return tlsCfg, nil, nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, nil, ErrIncompleteKeyPair
	}
	reloader, err := NewReloader(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, nil, err
	}
	tlsCfg.GetClientCertificate = reloader.GetClientCertificate
	return tlsCfg, reloader, nil
}

// ServerTLSConfig builds a server-side tls.Config that serves the key pair
// held by reloader.
func ServerTLSConfig(reloader *Reloader) *tls.Config {
	return &tls.Config{
		GetCertificate: reloader.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
