// Package shutdown coordinates graceful termination.
//
// Long-running processes (the dev backend, watchers in the CLI shell)
// register cleanup hooks on a Handler and block in Wait. Short-lived CLI
// commands use WithSignals so that Ctrl-C cancels in-flight requests:
//
//	ctx, cancel := shutdown.WithSignals(context.Background())
//	defer cancel()
package shutdown
