// Package apiclient is the authenticated HTTP client for the UniTrack REST
// API.
//
// Every request passes through an outbound and an inbound interceptor:
//
//   - outbound: reads the access token from the session Provider at the
//     moment of dispatch and sets "Authorization: Bearer <token>", or sends
//     no credentials when the session has none.
//   - inbound: on a 401 for a request that has not been retried yet, marks
//     the request as retried, exchanges the refresh token at the refresh
//     endpoint (without credentials), stores the new access token and
//     replays the request through the same interceptors. If the exchange
//     fails the session is cleared and the caller receives the original 401.
//     Every other failure is returned unchanged.
//
// Concurrent 401s share a single refresh call by default, and a request that
// failed with a token another goroutine has since replaced is replayed with
// the new token without a second exchange. WithoutRefreshCoalescing turns
// both off, so each failing request refreshes independently.
package apiclient
