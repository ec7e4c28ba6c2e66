package apiclient

import (
	"crypto/tls"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/metric"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is kept
// when non-zero.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTLSConfig sets the TLS configuration of the default transport.
// Ignored when WithHTTPClient supplied a client.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		c.tlsConfig = cfg
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request and refresh metrics on reg.
func WithMetrics(reg *metric.Registry) Option {
	return func(c *Client) {
		c.metrics = reg
	}
}

// WithRateLimit waits on a token bucket before every dispatch, replays and
// refresh exchanges included.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithRefreshPath overrides the refresh endpoint.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.cfg.RefreshPath = path
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithoutRefreshCoalescing makes every failing request run its own refresh
// exchange, even when others are in flight.
func WithoutRefreshCoalescing() Option {
	return func(c *Client) {
		c.coalesce = false
	}
}

// WithTracing instruments the transport with otelhttp and traces refresh
// exchanges on tp.
func WithTracing(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}
