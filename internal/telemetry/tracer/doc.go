// Package tracer configures OpenTelemetry tracing for UniTrack.
//
// Spans are exported over OTLP/HTTP when an endpoint is configured; without
// one, the provider still creates spans (so trace IDs reach the logs) but
// drops them on end.
package tracer
