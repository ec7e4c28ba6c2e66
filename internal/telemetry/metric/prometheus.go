package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "unitrack"

// Refresh outcomes recorded on RefreshTotal.
const (
	RefreshSuccess   = "success"
	RefreshFailure   = "failure"
	RefreshCoalesced = "coalesced"
)

// Registry holds all application metrics on a private prometheus.Registry.
type Registry struct {
	reg *prometheus.Registry

	// Client metrics
	RequestsTotal   *prometheus.CounterVec   // method, code
	RequestDuration *prometheus.HistogramVec // method
	RefreshTotal    *prometheus.CounterVec   // outcome
	RetriesTotal    prometheus.Counter
	SessionClears   prometheus.Counter

	// Dev backend metrics
	ServerRequests *prometheus.CounterVec // route, code
	TokensIssued   *prometheus.CounterVec // kind
}

// NewRegistry creates and registers all metrics. withRuntime adds the Go and
// process collectors, which only make sense for long-running processes.
func NewRegistry(withRuntime bool) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API requests sent, by method and response status code.",
		}, []string{"method", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Round-trip latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "token_refresh_total",
			Help:      "Access-token refresh attempts, by outcome.",
		}, []string{"outcome"}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Requests replayed after a successful token refresh.",
		}),
		SessionClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "session_clears_total",
			Help:      "Sessions discarded after a failed refresh.",
		}),
		ServerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devapi",
			Name:      "requests_total",
			Help:      "Requests served by the development backend.",
		}, []string{"route", "code"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devapi",
			Name:      "tokens_issued_total",
			Help:      "Tokens issued by the development backend, by kind.",
		}, []string{"kind"}),
	}

	r.reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.RefreshTotal,
		r.RetriesTotal,
		r.SessionClears,
		r.ServerRequests,
		r.TokensIssued,
	)
	if withRuntime {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registerer exposes the underlying registry for components that register
// their own collectors (storage engine, store collectors).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveRequest records one API round trip. Safe on a nil Registry.
func (r *Registry) ObserveRequest(method string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	r.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveRefresh records a refresh outcome. Safe on a nil Registry.
func (r *Registry) ObserveRefresh(outcome string) {
	if r == nil {
		return
	}
	r.RefreshTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry records a replayed request. Safe on a nil Registry.
func (r *Registry) ObserveRetry() {
	if r == nil {
		return
	}
	r.RetriesTotal.Inc()
}

// ObserveSessionClear records a forced logout. Safe on a nil Registry.
func (r *Registry) ObserveSessionClear() {
	if r == nil {
		return
	}
	r.SessionClears.Inc()
}

// ObserveServerRequest records a request served by the dev backend.
func (r *Registry) ObserveServerRequest(route string, code int) {
	if r == nil {
		return
	}
	r.ServerRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveTokenIssued records an issued token of the given kind.
func (r *Registry) ObserveTokenIssued(kind string) {
	if r == nil {
		return
	}
	r.TokensIssued.WithLabelValues(kind).Inc()
}
