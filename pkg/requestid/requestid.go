// Package requestid carries the per-request correlation ID through contexts.
package requestid

import "context"

const Header = "X-Request-ID"

type ctxKey struct{}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
