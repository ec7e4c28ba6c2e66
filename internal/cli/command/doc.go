// Package command defines the unitrack-cli command tree.
//
// Commands are built with urfave/cli/v2 and share one Runtime per process:
// the configuration, the session manager and its store, the authenticated
// API client, the auth service and the resource catalog. The interactive
// shell reuses the same Runtime for every line it executes, so a token
// refreshed by one command is seen by the next.
package command
