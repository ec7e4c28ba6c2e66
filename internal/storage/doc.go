// Package storage provides embedded key-value storage for UniTrack clients.
//
// The only engine is Badger (LSM + value log). It backs the badger session
// store, which keeps the persisted session record of one or more origins in a
// single local database directory instead of loose files:
//
//   - kv.go: the KVEngine interface and its configuration
//   - badger.go: the Badger implementation, GC loop and Prometheus gauges
package storage
