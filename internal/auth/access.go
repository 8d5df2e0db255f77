// ABOUTME: Cache-backed access validation for BASE-authenticated servers
// ABOUTME: Checks server and end-user records through the TTL cache

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/relayforge/mcp-gateway/internal/cache"
	"github.com/relayforge/mcp-gateway/internal/store"
)

// AccessResult is the outcome of an access check. Absence of both fields
// signals that the caller may use the server.
type AccessResult struct {
	// UserNotFound reports that no end user with the given email is
	// registered for the server's tenant.
	UserNotFound bool

	// Err is the denial reason for any other failure. Empty on success.
	Err string
}

// Denied reports whether the result denies access.
func (r AccessResult) Denied() bool {
	return r.UserNotFound || r.Err != ""
}

// AccessValidator determines whether a caller identified by email may use a
// server. Server records and overall access results are cached; concurrent
// misses for the same key each hit the store, which is acceptable for the
// low key cardinality involved.
type AccessValidator struct {
	store  store.Store
	cache  *cache.Cache
	logger *slog.Logger
}

// NewAccessValidator creates an access validator backed by the given store
// and cache.
func NewAccessValidator(st store.Store, c *cache.Cache, logger *slog.Logger) *AccessValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessValidator{
		store:  st,
		cache:  c,
		logger: logger.With("component", "access_validator"),
	}
}

// Server looks up a server record through the cache. Returns
// store.ErrNotFound when no such server exists.
func (v *AccessValidator) Server(ctx context.Context, serverID string) (*store.Server, error) {
	if cached, ok := v.cache.Get(cache.CategoryServer, serverID); ok {
		return cached.(*store.Server), nil
	}

	srv, err := v.store.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	v.cache.Set(cache.CategoryServer, srv, serverID)
	return srv, nil
}

// ValidateAccess checks whether the caller with the given email may use the
// server. The overall result is cached per (serverID, email) so repeated
// checks within the TTL window skip both underlying lookups. The returned
// error is reserved for data-store failures; expected denials are reported
// in the AccessResult.
func (v *AccessValidator) ValidateAccess(ctx context.Context, serverID, email string) (AccessResult, error) {
	if cached, ok := v.cache.Get(cache.CategoryServerAccess, serverID, email); ok {
		return cached.(AccessResult), nil
	}

	result, err := v.validate(ctx, serverID, email)
	if err != nil {
		return AccessResult{}, err
	}

	v.cache.Set(cache.CategoryServerAccess, result, serverID, email)
	return result, nil
}

// validate performs the uncached server and user lookups.
func (v *AccessValidator) validate(ctx context.Context, serverID, email string) (AccessResult, error) {
	srv, err := v.Server(ctx, serverID)
	if errors.Is(err, store.ErrNotFound) {
		// The server itself is invalid; skip the user lookup entirely.
		return AccessResult{Err: fmt.Sprintf("invalid or disabled server: %s", serverID)}, nil
	}
	if err != nil {
		return AccessResult{}, fmt.Errorf("looking up server %s: %w", serverID, err)
	}
	if !srv.Enabled {
		return AccessResult{Err: fmt.Sprintf("invalid or disabled server: %s", serverID)}, nil
	}

	user, err := v.store.GetEndUserByEmail(ctx, srv.TenantID, email)
	if errors.Is(err, store.ErrNotFound) {
		return AccessResult{UserNotFound: true}, nil
	}
	if err != nil {
		return AccessResult{}, fmt.Errorf("looking up end user: %w", err)
	}
	if !user.Enabled {
		return AccessResult{Err: "insufficient permissions to access this server"}, nil
	}

	return AccessResult{}, nil
}

// InvalidateServer drops the cached server record and every cached access
// result for the server. Intended for the admin console after configuration
// changes.
func (v *AccessValidator) InvalidateServer(serverID string) {
	v.cache.Invalidate(cache.CategoryServer, serverID)
	v.cache.InvalidatePrefix(cache.CategoryServerAccess, serverID)
	v.logger.Debug("invalidated cached access state", "server_id", serverID)
}
