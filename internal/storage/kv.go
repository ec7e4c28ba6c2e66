package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrKeyNotFound = errors.New("storage: key not found")
	ErrClosed      = errors.New("storage: kv engine closed")
)

// KVEngine is the embedded key-value contract the session stores rely on.
//
// Implementations must be safe for concurrent use and durable across
// process restarts (unless configured in-memory).
type KVEngine interface {
	// Get retrieves a value by key. Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores a key-value pair.
	Set(ctx context.Context, key, value []byte) error

	// SetWithTTL stores a key-value pair that expires after ttl.
	SetWithTTL(ctx context.Context, key, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan iterates over keys with a given prefix.
	// The callback returns false to stop iteration.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// GC reclaims space held by stale values; returns an estimate of bytes freed.
	GC(ctx context.Context) (uint64, error)

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*KVStats, error)

	// Close gracefully shuts down the engine.
	Close() error
}

// KVStats contains storage engine statistics.
type KVStats struct {
	TotalSize        uint64
	LSMSize          uint64
	ValueLogSize     uint64
	LastGCTime       int64 // Unix milliseconds
	GCBytesReclaimed uint64
}

// KVConfig configures an embedded KV engine.
type KVConfig struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in memory (tests, --ephemeral).
	InMemory bool

	// GCInterval is the interval between automatic value-log GC runs.
	// Zero disables the background loop.
	GCInterval time.Duration

	// GCThreshold is the discard ratio that triggers a value-log rewrite.
	GCThreshold float64

	// SyncWrites fsyncs every write. Session records are tiny and rare,
	// so durability wins over throughput here.
	SyncWrites bool
}

// DefaultKVConfig returns the default KV configuration for dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:         dir,
		GCInterval:  30 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}
