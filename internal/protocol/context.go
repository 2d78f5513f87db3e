package protocol

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader carries the originating request id across hops.
const RequestIDHeader = "X-Request-ID"

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
