// Package metric provides Prometheus metrics for UniTrack.
//
//   - prometheus.go: the Registry holding client and dev-backend metrics
//   - collector.go: a gauge collector backed by a callback, used for
//     values that live in someone else's data structure
//
// Every component takes an optional *Registry; a nil registry disables
// instrumentation without nil checks at call sites (see the Observe helpers).
package metric
