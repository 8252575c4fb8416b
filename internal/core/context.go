package core

import "context"

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID attaches the request's correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation ID from the context, or "".
func CorrelationID(ctx context.Context) string {
	id, ok := ctx.Value(correlationIDKey).(string)
	if !ok {
		return ""
	}
	return id
}
