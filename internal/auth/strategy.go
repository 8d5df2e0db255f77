// ABOUTME: Strategy contract and resolver mapping auth types to implementations
// ABOUTME: The strategy set is closed; unknown types are a hard failure

package auth

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// ErrUnsupportedStrategy is returned by Resolver.Resolve for an auth type
// with no registered strategy. An unknown type is a deployment bug, never a
// silent fallback: an unauthenticated pass-through would be a security hole.
var ErrUnsupportedStrategy = fmt.Errorf("unsupported authentication strategy")

// Strategy authenticates one request against one server. Expected failures
// (missing token, bad signature, disabled user) are reported in the Result;
// the error return is reserved for infrastructure failures such as an
// unavailable data store, which the middleware maps to a 500.
type Strategy interface {
	Type() AuthType
	Authenticate(ctx context.Context, r *http.Request, serverID string) (Result, error)
}

// Resolver maps a server's configured authentication type to the strategy
// instance handling it. The registration map is fixed at construction.
type Resolver struct {
	strategies map[AuthType]Strategy
}

// NewResolver builds a resolver over the given strategies.
func NewResolver(strategies ...Strategy) *Resolver {
	m := make(map[AuthType]Strategy, len(strategies))
	for _, s := range strategies {
		m[s.Type()] = s
	}
	return &Resolver{strategies: m}
}

// Resolve returns the strategy registered for the auth type, or
// ErrUnsupportedStrategy when none is.
func (r *Resolver) Resolve(authType AuthType) (Strategy, error) {
	s, ok := r.strategies[authType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, authType)
	}
	return s, nil
}

// IsSupported reports whether a strategy is registered for the auth type.
func (r *Resolver) IsSupported(authType AuthType) bool {
	_, ok := r.strategies[authType]
	return ok
}

// SupportedTypes returns the registered auth types in stable order.
func (r *Resolver) SupportedTypes() []AuthType {
	types := make([]AuthType, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
