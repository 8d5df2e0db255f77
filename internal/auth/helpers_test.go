// ABOUTME: Shared test helpers for the auth package
// ABOUTME: JWKS serving, RSA token signing, and store seeding

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/mcp-gateway/internal/cache"
	"github.com/relayforge/mcp-gateway/internal/store"
)

const testSessionSecret = "test-session-secret-32-bytes-long"

// testLogger returns a logger that stays quiet during tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCache returns a cache with production TTLs.
func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := cache.New(cache.DefaultTTLs(), time.Minute)
	t.Cleanup(c.Close)
	return c
}

// generateRSAKey generates a 2048-bit RSA key pair for JWKS tests.
func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key pair")
	return key
}

// signRSAToken creates an RS256-signed JWT with the given claims and kid.
func signRSAToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign RSA token")
	return signed
}

// serveJWKS starts an httptest.Server that serves a JWKS document containing
// the given RSA public keys, keyed by kid.
func serveJWKS(t *testing.T, keys map[string]*rsa.PublicKey) *httptest.Server {
	t.Helper()

	type jwkEntry struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Alg string `json:"alg,omitempty"`
		Use string `json:"use,omitempty"`
		N   string `json:"n,omitempty"`
		E   string `json:"e,omitempty"`
	}

	var entries []jwkEntry
	for kid, pub := range keys {
		entries = append(entries, jwkEntry{
			Kty: "RSA",
			Kid: kid,
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}

	doc, err := json.Marshal(map[string]any{"keys": entries})
	require.NoError(t, err, "failed to marshal JWKS")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// seedBaseServer creates an enabled BASE server and an enabled end user.
func seedBaseServer(t *testing.T, st *store.MockStore, serverID, tenantID, email string) {
	t.Helper()
	require.NoError(t, st.CreateServer(context.Background(), &store.Server{
		ID: serverID, TenantID: tenantID, Name: serverID, AuthType: store.AuthTypeBase, Enabled: true,
	}))
	require.NoError(t, st.CreateEndUser(context.Background(), &store.EndUser{
		ID: "u-" + email, TenantID: tenantID, Email: email, Enabled: true,
	}))
}

// sessionToken mints a valid session token for the given identity.
func sessionToken(t *testing.T, userID, tenantID, email string) string {
	t.Helper()
	v := NewHS256Verifier([]byte(testSessionSecret))
	token, err := v.Generate(userID, tenantID, email, "jti-1", time.Hour)
	require.NoError(t, err)
	return token
}
