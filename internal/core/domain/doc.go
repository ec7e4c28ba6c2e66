// Package domain defines the core domain models for UniTrack clients.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Session: the authenticated user plus the access/refresh token pair
//   - PersistedRecord: the durable layout of a session under one storage key
//   - Role: tagged role variants with their fixed menu and capability sets
//   - Errors: structured error codes shared by every layer
package domain
