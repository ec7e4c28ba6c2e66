// Package cmap provides a generic sharded map.
//
// Keys are spread over a power-of-two number of shards, each guarded by its
// own RWMutex. Read-modify-write helpers (Update, SetIfAbsent, Pop,
// DeleteFunc) run under the shard lock so callers never observe a torn
// update of a single key.
//
//	grants := cmap.New[string, Grant]()
//	grants.Set(token.Hash(rt), grant)
//	g, ok := grants.Get(token.Hash(rt))
package cmap
