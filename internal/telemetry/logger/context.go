package logger

import "context"

// scope is what a context contributes to its log lines.
type scope struct {
	base      Logger
	requestID string
	traceID   string
	userID    string
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	sc, _ := ctx.Value(scopeKey{}).(scope)
	return sc
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	sc := scopeOf(ctx)
	edit(&sc)
	return context.WithValue(ctx, scopeKey{}, sc)
}

// WithLogger makes l the logger that L returns for ctx. IDs already on ctx
// are kept.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return withScope(ctx, func(sc *scope) { sc.base = l })
}

// WithRequestID tags log lines for ctx with request_id. The API client uses
// the X-Request-ID it sends; the dev backend the one it received.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(sc *scope) { sc.requestID = id })
}

// WithTraceID tags log lines for ctx with trace_id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(sc *scope) { sc.traceID = id })
}

// WithUserID tags log lines for ctx with user_id.
func WithUserID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(sc *scope) { sc.userID = id })
}

// L returns the logger of ctx, or Default, with the request, trace and user
// IDs of ctx attached. Empty IDs are omitted.
func L(ctx context.Context) Logger {
	sc := scopeOf(ctx)
	l := sc.base
	if l == nil {
		l = Default()
	}

	var args []any
	for _, f := range [...]struct{ key, val string }{
		{"request_id", sc.requestID},
		{"trace_id", sc.traceID},
		{"user_id", sc.userID},
	} {
		if f.val != "" {
			args = append(args, f.key, f.val)
		}
	}
	if len(args) == 0 {
		return l
	}
	return l.With(args...)
}
