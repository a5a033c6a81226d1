// Package requestctx carries request-scoped identity and correlation values.
package requestctx

import "context"

// operationIDContextKey is the context key for the request correlation id.
type operationIDContextKey struct{}

// WithOperationID stores the request correlation id in context.
func WithOperationID(ctx context.Context, operationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operationIDContextKey{}, operationID)
}

// OperationIDFromContext returns the request correlation id stored in context.
func OperationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(operationIDContextKey{}).(string)
	return value
}
