// Package devapi is an in-memory stand-in for the UniTrack backend, used for
// local runs of the CLI and for end-to-end tests of the client.
//
// It serves the account endpoints under the configured base path
// (/users/login, /users/refresh-token, /users/logout, /users/current-user,
// /users/update-account, /users/change-password) and generic CRUD for every
// path of the resource catalog. Every JSON response uses the
// {statusCode, data, message, success} envelope.
//
// Access tokens are HS256 JWTs carrying sub, role, iat, exp and jti. Refresh
// tokens are opaque, stored only as hashes, never rotated, and revoked by
// logout. Writes to a collection require the role capability recorded in
// the catalog entry.
package devapi
