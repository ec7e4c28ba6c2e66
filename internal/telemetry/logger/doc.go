// Package logger provides structured logging for UniTrack clients and the
// development backend.
//
// It wraps the standard library log/slog:
//
//   - logger.go: logger construction, levels and the process-wide default
//   - context.go: per-request scope (logger, request, trace and user IDs) read by L
//   - redact.go: token and credential redaction
//
// Access tokens, refresh tokens, passwords and Authorization headers never
// reach the output in clear text; JWT-shaped values are masked wherever they
// appear.
package logger
