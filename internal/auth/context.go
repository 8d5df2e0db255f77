// ABOUTME: Request-context plumbing for authentication results and server ids
// ABOUTME: Provides WithAuth/FromContext and WithServerID/ServerIDFromContext

package auth

import (
	"context"
)

// authContextKey is the key type for storing the authentication result in
// context.Context.
type authContextKey struct{}

// serverIDKey is the key type for the resolved server identifier.
type serverIDKey struct{}

// WithAuth returns a new context with the authentication result attached.
func WithAuth(ctx context.Context, result *Result) context.Context {
	return context.WithValue(ctx, authContextKey{}, result)
}

// FromContext retrieves the authentication result from the context,
// returning nil if not present.
func FromContext(ctx context.Context) *Result {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	result, ok := val.(*Result)
	if !ok {
		return nil
	}
	return result
}

// MustFromContext retrieves the authentication result from the context,
// panicking if not present. Use only behind RequireAuth.
func MustFromContext(ctx context.Context) *Result {
	result := FromContext(ctx)
	if result == nil {
		panic("auth: Result not found in context")
	}
	return result
}

// WithServerID returns a new context carrying the resolved server identifier.
func WithServerID(ctx context.Context, serverID string) context.Context {
	return context.WithValue(ctx, serverIDKey{}, serverID)
}

// ServerIDFromContext retrieves the resolved server identifier, returning
// the empty string if none was attached.
func ServerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(serverIDKey{}).(string)
	return id
}
