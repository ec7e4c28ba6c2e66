// Package filewatch notifies callbacks when individual files change.
//
// It watches the parent directory rather than the file itself so that
// editors and atomic writers that replace files via rename are still seen,
// then filters events down to the registered file names. Bursts of events
// for the same file are collapsed into one callback after a debounce delay.
//
// Used for session-file synchronisation between processes, dev-backend
// config reload and TLS certificate rotation.
package filewatch
