// ABOUTME: JWKS-backed signature verification for third-party JWTs
// ABOUTME: Caches key sets per URL and converts every failure mode into data

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/relayforge/mcp-gateway/internal/cache"
)

// DefaultJWKSFetchTimeout bounds a single JWKS fetch so an unresponsive
// provider endpoint cannot stall every request authenticating against it.
const DefaultJWKSFetchTimeout = 10 * time.Second

// Verification is the outcome of verifying one token against a key set.
// Failures are reported as data with a specific reason string; this boundary
// never returns an error or panics into the request pipeline.
type Verification struct {
	Valid  bool
	Claims jwt.MapClaims
	Error  string
}

// KeySetVerifier verifies JWT signatures and temporal claims against a JWKS
// fetched from a provider-configured URL. Fetched key sets are cached per
// URL so an unchanging provider does not cost a network round trip on every
// request; rotation is picked up when the cache entry expires.
type KeySetVerifier struct {
	cache        *cache.Cache
	fetchTimeout time.Duration
	leeway       time.Duration
	allowedAlgs  []string
	logger       *slog.Logger
}

// NewKeySetVerifier creates a verifier backed by the given cache. A zero
// fetchTimeout falls back to DefaultJWKSFetchTimeout.
func NewKeySetVerifier(c *cache.Cache, fetchTimeout time.Duration, logger *slog.Logger) *KeySetVerifier {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultJWKSFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeySetVerifier{
		cache:        c,
		fetchTimeout: fetchTimeout,
		leeway:       30 * time.Second,
		allowedAlgs:  []string{"RS256", "ES256"},
		logger:       logger.With("component", "keyset_verifier"),
	}
}

// keyfuncFor returns the cached key function for a JWKS URL, fetching the
// key set when no live cache entry exists.
func (v *KeySetVerifier) keyfuncFor(ctx context.Context, jwksURL string) (jwt.Keyfunc, error) {
	if cached, ok := v.cache.Get(cache.CategoryJWKS, jwksURL); ok {
		return cached.(keyfunc.Keyfunc).Keyfunc, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	defer cancel()

	kf, err := keyfunc.NewDefaultCtx(fetchCtx, []string{jwksURL})
	if err != nil {
		return nil, err
	}

	v.cache.Set(cache.CategoryJWKS, kf, jwksURL)
	return kf.Keyfunc, nil
}

// Verify checks the token's signature and temporal claims against the key
// set at jwksURL. Network failures, unknown key ids, signature mismatches,
// and expired or not-yet-valid tokens each yield a distinct reason so
// operators can tell configuration problems from hostile input.
func (v *KeySetVerifier) Verify(ctx context.Context, token, jwksURL string) Verification {
	if token == "" {
		return Verification{Error: "empty token"}
	}
	if jwksURL == "" {
		return Verification{Error: "no JWKS URL configured"}
	}

	kf, err := v.keyfuncFor(ctx, jwksURL)
	if err != nil {
		v.logger.Warn("JWKS fetch failed", "jwks_url", jwksURL, "error", err)
		return Verification{Error: "failed to fetch JWKS: " + err.Error()}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.allowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)

	parsed, err := parser.Parse(token, kf)
	if err != nil {
		return Verification{Error: verifyFailureReason(err)}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Verification{Error: "unexpected claims type"}
	}

	return Verification{Valid: true, Claims: claims}
}

// verifyFailureReason maps parse errors to stable, specific reason strings.
func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "token not yet valid"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature does not match key set"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	default:
		return "token verification failed: " + err.Error()
	}
}
