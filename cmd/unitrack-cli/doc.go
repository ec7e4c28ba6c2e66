// Package main provides the entry point for unitrack-cli.
//
// unitrack-cli is a command-line client for a UniTrack backend. It keeps a
// session on disk, refreshes access tokens transparently and exposes the
// record catalog:
//
//	unitrack-cli login --email admin@unitrack.dev
//	unitrack-cli resource list courses --format table
//	unitrack-cli request get /users/current-user
//	unitrack-cli shell
package main
