// ABOUTME: JWT strategy: third-party tokens verified against a provider JWKS
// ABOUTME: Token extraction spans header, query, custom header, and body

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/MicahParks/jwkset"

	"github.com/relayforge/mcp-gateway/internal/store"
)

// Alternative credential locations accepted by the JWT strategy.
const (
	jwtQueryParam   = "access_token"
	jwtCustomHeader = "X-MCP-Auth"
	jwtBodyField    = "access_token"
)

// maxTokenBodyBytes bounds how much of a request body is inspected when
// looking for a body-carried token.
const maxTokenBodyBytes = 1 << 20

// JWTStrategy authenticates requests carrying a third-party JWT. The
// server's enabled JwtProvider supplies the JWKS URL; a valid signature
// implies authorization.
type JWTStrategy struct {
	store  store.Store
	keys   *KeySetVerifier
	logger *slog.Logger
}

// NewJWTStrategy creates the JWT strategy.
func NewJWTStrategy(st store.Store, keys *KeySetVerifier, logger *slog.Logger) *JWTStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTStrategy{
		store:  st,
		keys:   keys,
		logger: logger.With("strategy", "jwt"),
	}
}

// Type returns AuthTypeJWT.
func (s *JWTStrategy) Type() AuthType { return AuthTypeJWT }

// extractToken finds a bearer token in, in order of precedence, the
// Authorization header, the access_token query parameter, the X-MCP-Auth
// header, or a JSON body field on body-bearing verbs. First match wins.
// When the body is consumed it is restored so downstream handlers can still
// read it.
func (s *JWTStrategy) extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimPrefix(header, "Bearer "); token != "" {
			return token
		}
	}

	if token := r.URL.Query().Get(jwtQueryParam); token != "" {
		return token
	}

	if token := strings.TrimPrefix(r.Header.Get(jwtCustomHeader), "Bearer "); token != "" {
		return token
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}
	if r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBodyBytes))
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	token, _ := payload[jwtBodyField].(string)
	return token
}

// Authenticate verifies the request's JWT against the server's enabled
// provider.
func (s *JWTStrategy) Authenticate(ctx context.Context, r *http.Request, serverID string) (Result, error) {
	token := s.extractToken(r)
	if token == "" {
		return Failure("missing bearer token"), nil
	}

	provider, err := s.store.GetEnabledJwtProvider(ctx, serverID)
	if errors.Is(err, store.ErrNotFound) {
		// Configuration problem, reported before any network call and
		// distinct from a bad token so operators can tell them apart.
		return Failure(fmt.Sprintf("no enabled JWT provider configured for server %s", serverID)), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("looking up JWT provider for server %s: %w", serverID, err)
	}

	verification := s.keys.Verify(ctx, token, provider.JwksURL)
	if !verification.Valid {
		return Failure(verification.Error), nil
	}

	uc := &UserContext{
		AuthType: AuthTypeJWT,
		RawToken: token,
	}
	if id, ok := verification.Claims["id"].(string); ok && id != "" {
		uc.UserID = id
	} else if sub, ok := verification.Claims["sub"].(string); ok {
		uc.UserID = sub
	}
	if uc.UserID == "" {
		return Failure("token missing id/sub claim"), nil
	}
	if tenant, ok := verification.Claims["tenantId"].(string); ok {
		uc.TenantID = tenant
	}
	if email, ok := verification.Claims["email"].(string); ok {
		uc.Email = email
	}

	result := Succeeded(uc)
	result.ProviderID = provider.ID
	return result, nil
}

// ValidateConfiguration independently checks a provider's JWKS URL for
// well-formedness and reachability. It returns one string per distinct
// problem found; an empty slice means the configuration is usable. Backs
// the admin console's "test JWKS URL" affordance.
func (s *JWTStrategy) ValidateConfiguration(ctx context.Context, provider *store.JwtProvider) []string {
	var problems []string

	if provider == nil {
		return []string{"provider is not configured"}
	}
	if provider.JwksURL == "" {
		return []string{"JWKS URL is empty"}
	}

	parsed, err := url.Parse(provider.JwksURL)
	if err != nil || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("JWKS URL is malformed: %s", provider.JwksURL))
		return problems
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		problems = append(problems, fmt.Sprintf("JWKS URL scheme must be http or https, got %q", parsed.Scheme))
		return problems
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.keys.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, provider.JwksURL, nil)
	if err != nil {
		problems = append(problems, fmt.Sprintf("building JWKS request failed: %v", err))
		return problems
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		problems = append(problems, fmt.Sprintf("JWKS endpoint unreachable: %v", err))
		return problems
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		problems = append(problems, fmt.Sprintf("JWKS endpoint returned status %d", resp.StatusCode))
		return problems
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBodyBytes))
	if err != nil {
		problems = append(problems, fmt.Sprintf("reading JWKS response failed: %v", err))
		return problems
	}

	var jwks jwkset.JWKSMarshal
	if err := json.Unmarshal(body, &jwks); err != nil {
		problems = append(problems, "JWKS endpoint did not return a valid key set")
		return problems
	}
	if len(jwks.Keys) == 0 {
		problems = append(problems, "JWKS endpoint returned no keys")
	}

	return problems
}
