package server

import (
	"context"

	"tenant-auth-engine/internal/auth"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the authenticated principal and its
// tenant binding. Handlers behind the auth middleware read it via GetIdentity.
func WithIdentity(ctx context.Context, id *auth.Result) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the authenticated identity from ctx and true if set.
func GetIdentity(ctx context.Context) (*auth.Result, bool) {
	v, ok := ctx.Value(identityKey).(*auth.Result)
	return v, ok
}
