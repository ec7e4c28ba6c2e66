// Package session owns the process-wide session state: the current user and
// the access/refresh token pair.
//
// The API client never reads a global; it receives a Provider at construction
// and asks it for tokens at dispatch time. Manager is the production Provider.
// It keeps the state in memory behind a RWMutex and mirrors every mutation
// synchronously into a Store before returning:
//
//   - MemoryStore: nothing survives the process (tests, --store memory)
//   - FileStore: one JSON file, written atomically, optionally sealed
//   - BadgerStore: one key in an embedded Badger database
//   - RedisStore: one key in Redis, shared by several hosts
//
// The token pair is validated at this boundary: a write that would leave
// exactly one token set is rejected with domain.ErrPartialSession, and a
// half-populated persisted record is discarded on hydration.
package session
