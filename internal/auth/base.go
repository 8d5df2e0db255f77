// ABOUTME: BASE strategy: bearer session token bound to a registered end user
// ABOUTME: Authorization is delegated to the cache-backed access validator

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/relayforge/mcp-gateway/internal/store"
)

// BaseStrategy authenticates requests carrying an end-user session token in
// the Authorization header. The token identifies a pre-registered end user;
// whether that user may use the target server is decided by the access
// validator.
type BaseStrategy struct {
	verifier  SessionTokenVerifier
	validator *AccessValidator
	store     store.Store
	logger    *slog.Logger
}

// NewBaseStrategy creates the BASE strategy.
func NewBaseStrategy(verifier SessionTokenVerifier, validator *AccessValidator, st store.Store, logger *slog.Logger) *BaseStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseStrategy{
		verifier:  verifier,
		validator: validator,
		store:     st,
		logger:    logger.With("strategy", "base"),
	}
}

// Type returns AuthTypeBase.
func (s *BaseStrategy) Type() AuthType { return AuthTypeBase }

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Authenticate verifies the session token and checks access to the server.
func (s *BaseStrategy) Authenticate(ctx context.Context, r *http.Request, serverID string) (Result, error) {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		// No usable credential; skip all lookups.
		return Failure(errMsg), nil
	}

	claims, err := s.verifier.Verify(token)
	if err != nil || claims == nil {
		return Failure("invalid or expired session token"), nil
	}

	access, err := s.validator.ValidateAccess(ctx, serverID, claims.Email)
	if err != nil {
		return Result{}, err
	}
	if access.UserNotFound {
		return Failure("no access to this server"), nil
	}
	if access.Err != "" {
		return Failure(access.Err), nil
	}

	// Access granted; fetch the user record for the identity context.
	srv, err := s.validator.Server(ctx, serverID)
	if err != nil {
		return Result{}, err
	}
	user, err := s.store.GetEndUserByEmail(ctx, srv.TenantID, claims.Email)
	if err != nil {
		return Result{}, err
	}

	return Succeeded(&UserContext{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		AuthType: AuthTypeBase,
	}), nil
}
