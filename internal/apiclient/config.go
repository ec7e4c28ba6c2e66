package apiclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/unitrack-go/internal/core/domain"
)

const (
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second
	// DefaultRefreshPath is the refresh-token exchange endpoint.
	DefaultRefreshPath = "/users/refresh-token"
	// DefaultRefreshTimeout bounds a shared refresh exchange.
	DefaultRefreshTimeout = 15 * time.Second
)

// Config fixes the origin and timeouts of a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://api.example.edu/api/v1".
	// "http://" is assumed when no scheme is given.
	BaseURL string `koanf:"base_url" yaml:"base_url"`

	// Timeout bounds each round trip. Zero means DefaultTimeout.
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`

	// RefreshPath overrides DefaultRefreshPath.
	RefreshPath string `koanf:"refresh_path" yaml:"refresh_path"`

	// RefreshTimeout bounds a refresh exchange. Zero means DefaultRefreshTimeout.
	RefreshTimeout time.Duration `koanf:"refresh_timeout" yaml:"refresh_timeout"`
}

// DefaultConfig returns a Config pointing at baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Timeout:        DefaultTimeout,
		RefreshPath:    DefaultRefreshPath,
		RefreshTimeout: DefaultRefreshTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	_, err := ParseBaseURL(c.BaseURL)
	return err
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RefreshPath == "" {
		c.RefreshPath = DefaultRefreshPath
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = DefaultRefreshTimeout
	}
	return c
}

// ParseBaseURL normalizes a backend origin. Query strings and fragments are
// not allowed on an origin.
func ParseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ErrInvalidBaseURL.WithDetails("empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, domain.ErrInvalidBaseURL.WithDetails(raw).WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.ErrInvalidBaseURL.WithDetails(fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, domain.ErrInvalidBaseURL.WithDetails(fmt.Sprintf("%q has no host", raw))
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, domain.ErrInvalidBaseURL.WithDetails(fmt.Sprintf("%q must not carry a query or fragment", raw))
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u, nil
}
