// Package tlsroots builds TLS configuration for UniTrack.
//
//   - roots.go: trusted CA pools (system roots plus custom bundles) and the
//     client-side tls.Config used by the API client
//   - watcher.go: key-pair reload on file change, used by the dev backend
//     when serving TLS and by the client for mutual TLS
package tlsroots
