// Package main provides the entry point for unitrack-devapi.
//
// unitrack-devapi is an in-memory UniTrack backend for local development
// and client testing. It seeds one account per role and serves the login,
// refresh and record endpoints the client expects.
//
// Usage:
//
//	unitrack-devapi [--config devapi.yaml]
//	UNITRACK_DEVAPI_AUTH__SECRET=... unitrack-devapi --addr 0.0.0.0:8000
//
// The log level is re-read whenever the configuration file changes.
package main
