package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/infra/buildinfo"
	"github.com/yndnr/unitrack-go/internal/session"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/metric"
	"github.com/yndnr/unitrack-go/internal/telemetry/tracer"
)

// Header names set on every request.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// maxResponseBody caps how much of a response is buffered.
const maxResponseBody = 32 << 20

// Client issues requests against one fixed origin on behalf of a session.
// It is safe for concurrent use.
type Client struct {
	cfg      Config
	base     *url.URL
	provider session.Provider

	httpClient     *http.Client
	tlsConfig      *tls.Config
	logger         logger.Logger
	metrics        *metric.Registry
	limiter        *rate.Limiter
	userAgent      string
	coalesce       bool
	tracerProvider trace.TracerProvider
	spans          trace.Tracer

	flight singleflight.Group
}

// New creates a client for cfg.BaseURL that takes its credentials from
// provider.
func New(cfg Config, provider session.Provider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, domain.ErrMissingArgument.WithDetails("session provider")
	}
	base, err := ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg.withDefaults(),
		base:      base,
		provider:  provider,
		logger:    logger.Discard(),
		userAgent: buildinfo.UserAgent("unitrack-cli"),
		coalesce:  true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.tlsConfig != nil {
			transport.TLSClientConfig = c.tlsConfig
		}
		c.httpClient = &http.Client{Timeout: c.cfg.Timeout, Transport: transport}
	}

	if c.tracerProvider != nil {
		hc := *c.httpClient
		rt := hc.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		hc.Transport = otelhttp.NewTransport(rt, otelhttp.WithTracerProvider(c.tracerProvider))
		c.httpClient = &hc
		c.spans = c.tracerProvider.Tracer(tracer.InstrumentationName)
	} else {
		c.spans = noop.NewTracerProvider().Tracer(tracer.InstrumentationName)
	}

	return c, nil
}

// BaseURL returns the normalized origin.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Provider returns the session provider.
func (c *Client) Provider() session.Provider {
	return c.provider
}

// Do sends req and returns the 2xx response. Non-2xx responses come back as
// *APIError. A 401 on a first attempt triggers one refresh and one replay;
// see the package documentation. Each call to Do is a new exchange, so a
// Request may be sent again after it returns.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, domain.ErrMissingArgument.WithDetails("request")
	}
	req.retried = false
	req.sentWith = ""
	req.id = ulid.Make().String()

	ctx = logger.WithLogger(ctx, c.logger)
	ctx = logger.WithRequestID(ctx, req.id)
	if traceID := tracer.TraceID(ctx); traceID != "" {
		ctx = logger.WithTraceID(ctx, traceID)
	}
	return c.do(ctx, req)
}

// do dispatches req once and, for a first-attempt 401, hands over to the
// refresh cycle. The replay comes back through do with the guard set.
func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	u, err := req.resolve(c.base)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, req, u, true)
	if err != nil {
		return nil, err
	}
	resp.Retried = req.retried
	if resp.ok() {
		return resp, nil
	}

	apiErr := newAPIError(req, resp)
	if resp.StatusCode != http.StatusUnauthorized || req.retried || req.NoRefresh {
		return nil, apiErr
	}
	return c.recoverUnauthorized(ctx, req, apiErr)
}

// recoverUnauthorized runs the refresh cycle for a first-attempt 401.
func (c *Client) recoverUnauthorized(ctx context.Context, req *Request, orig *APIError) (*Response, error) {
	req.retried = true

	if err := c.refresh(ctx, req.sentWith); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("apiclient: %s %s: %w", req.Method, req.Path, ctxErr)
		}
		logger.L(ctx).Debug("request not retried", "method", req.Method, "path", req.Path, "error", err)
		return nil, orig
	}

	c.metrics.ObserveRetry()
	logger.L(ctx).Debug("replaying request", "method", req.Method, "path", req.Path)
	return c.do(ctx, req)
}

// send runs the outbound interceptor when authorize is set, performs the
// round trip and buffers the body.
func (c *Client) send(ctx context.Context, req *Request, u *url.URL, authorize bool) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, domain.ErrTransport.WithDetails("rate limit").WithCause(err)
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("%s %s", req.Method, req.Path)).WithCause(err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	httpReq.Header.Set(HeaderRequestID, req.id)

	if authorize {
		c.authorize(httpReq, req)
	} else {
		httpReq.Header.Del(HeaderAuthorization)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(req.Method, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("apiclient: %s %s: %w", req.Method, req.Path, ctxErr)
		}
		return nil, domain.ErrTransport.WithDetails(fmt.Sprintf("%s %s", req.Method, req.Path)).WithCause(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(req.Method, httpResp.StatusCode, elapsed)
	if err != nil {
		return nil, domain.ErrTransport.WithDetails("read response body").WithCause(err)
	}

	requestID := httpResp.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = req.id
	}
	logger.L(ctx).Debug("api request",
		"method", req.Method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"retried", req.retried,
		"duration", elapsed,
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		RequestID:  requestID,
	}, nil
}

// authorize is the outbound interceptor. The token is read at dispatch
// time and never cached on the client.
func (c *Client) authorize(httpReq *http.Request, req *Request) {
	token := c.provider.Tokens().Access
	req.sentWith = token
	if token == "" {
		httpReq.Header.Del(HeaderAuthorization)
		return
	}
	httpReq.Header.Set(HeaderAuthorization, "Bearer "+token)
}
