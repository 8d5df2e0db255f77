// ABOUTME: Authentication result types shared by all strategies
// ABOUTME: Results are data, not errors; expected failures never propagate as Go errors

package auth

import "time"

// AuthType identifies a server's configured authentication scheme.
type AuthType string

const (
	// AuthTypeBase authenticates a bearer token bound to a pre-registered
	// end user, with authorization delegated to the access validator.
	AuthTypeBase AuthType = "BASE"

	// AuthTypeJWT authenticates a third-party JWT verified against the
	// server's enabled provider JWKS.
	AuthTypeJWT AuthType = "JWT"
)

// UserContext is the identity attached to a request after successful
// authentication.
type UserContext struct {
	UserID   string
	TenantID string
	Email    string
	AuthType AuthType

	// RawToken carries the original credential for JWT-authenticated
	// requests so downstream tool execution can forward it. Empty for BASE.
	RawToken string
}

// Result is the outcome of one authentication attempt. It is created once
// per request and discarded when the request completes; it is never cached.
type Result struct {
	Success     bool
	UserContext *UserContext

	// Error is the human-readable failure reason. Set only when Success
	// is false.
	Error string

	// ProviderID identifies the JWT provider that verified the token,
	// when applicable.
	ProviderID string

	// ValidatedAt records when the result was produced.
	ValidatedAt time.Time
}

// Failure builds a failed Result with the given reason.
func Failure(reason string) Result {
	return Result{Error: reason, ValidatedAt: time.Now()}
}

// Succeeded builds a successful Result carrying the given user context.
func Succeeded(uc *UserContext) Result {
	return Result{Success: true, UserContext: uc, ValidatedAt: time.Now()}
}
