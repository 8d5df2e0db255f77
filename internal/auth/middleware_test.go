// ABOUTME: Tests for the auth middleware chain
// ABOUTME: Covers server-id resolution, status mapping, and the optional/lazy variants

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/mcp-gateway/internal/store"
)

// newMiddlewareDeps wires a full middleware dependency set over a mock store
// seeded with one BASE server.
func newMiddlewareDeps(t *testing.T) (*store.MockStore, Deps) {
	t.Helper()

	st := store.NewMockStore()
	seedBaseServer(t, st, "s1", "t1", "alice@example.com")

	c := newTestCache(t)
	validator := NewAccessValidator(st, c, testLogger())
	base := NewBaseStrategy(NewHS256Verifier([]byte(testSessionSecret)), validator, st, testLogger())
	keys := NewKeySetVerifier(c, time.Second, testLogger())
	jwtStrat := NewJWTStrategy(st, keys, testLogger())

	return st, Deps{
		Validator: validator,
		Resolver:  NewResolver(base, jwtStrat),
		Logger:    testLogger(),
	}
}

// okHandler records whether it ran and echoes the auth result it sees.
func okHandler(called *bool, result **Result) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if result != nil {
			*result = FromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var body struct {
		JSONRPC string `json:"jsonrpc"`
		Error   struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2.0", body.JSONRPC)
	return body.Error.Code, body.Error.Message
}

func TestResolveServerID_QueryParam(t *testing.T) {
	var got string
	h := ResolveServerID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ServerIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil)
	r.Host = "s9.gateway.example"
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "s1", got, "query parameter beats the host subdomain")
}

func TestResolveServerID_EnvOverride(t *testing.T) {
	t.Setenv(ServerIDEnvVar, "s-env")

	var got string
	h := ResolveServerID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ServerIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp", nil)
	r.Host = "s9.gateway.example"
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "s-env", got, "environment override beats the host subdomain")
}

func TestResolveServerID_Subdomain(t *testing.T) {
	var got string
	h := ResolveServerID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ServerIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp", nil)
	r.Host = "s7.gateway.example:8443"
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "s7", got, "first subdomain label, port stripped")
}

func TestResolveServerID_BareHost(t *testing.T) {
	var got string
	h := ResolveServerID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ServerIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp", nil)
	r.Host = "localhost:8080"
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Empty(t, got, "a host with no subdomain resolves nothing")
}

func TestRequireAuth_MissingServerID(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	var called bool
	h := RequireAuth(deps)(okHandler(&called, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, msg := decodeError(t, rec)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "missing server identifier", msg)
}

func TestRequireAuth_FailureReturns401WithStrategyError(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	var called bool
	h := ResolveServerID(RequireAuth(deps)(okHandler(&called, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, msg := decodeError(t, rec)
	assert.Equal(t, "missing authorization header", msg)
}

func TestRequireAuth_Success(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	var called bool
	var result *Result
	h := ResolveServerID(RequireAuth(deps)(okHandler(&called, &result)))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil)
	r.Header.Set("Authorization", "Bearer "+sessionToken(t, "u-alice@example.com", "t1", "alice@example.com"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, result)
	require.True(t, result.Success)
	assert.Equal(t, "alice@example.com", result.UserContext.Email)
	assert.Equal(t, AuthTypeBase, result.UserContext.AuthType)
}

func TestRequireAuth_StoreErrorReturns500(t *testing.T) {
	st, deps := newMiddlewareDeps(t)
	st.Err = errors.New("database unavailable")

	var called bool
	h := ResolveServerID(RequireAuth(deps)(okHandler(&called, nil)))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil)
	r.Header.Set("Authorization", "Bearer "+sessionToken(t, "u-alice@example.com", "t1", "alice@example.com"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, msg := decodeError(t, rec)
	assert.Equal(t, "internal authentication error", msg, "infrastructure detail is not leaked to the caller")
}

func TestRequireAuth_UnknownServerHandledByStrategy(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	var called bool
	h := ResolveServerID(RequireAuth(deps)(okHandler(&called, nil)))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=ghost", nil)
	r.Header.Set("Authorization", "Bearer "+sessionToken(t, "u-alice@example.com", "t1", "alice@example.com"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, msg := decodeError(t, rec)
	assert.Contains(t, msg, "invalid or disabled server")
}

func TestOptionalAuth_NeverBlocks(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	var called bool
	var result *Result
	h := ResolveServerID(OptionalAuth(deps)(okHandler(&called, &result)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil))

	assert.True(t, called, "unauthenticated request still reaches the handler")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, result, "failed result is still attached for downstream logic")
	assert.False(t, result.Success)
}

func TestOptionalAuth_AttachesSuccess(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	var called bool
	var result *Result
	h := ResolveServerID(OptionalAuth(deps)(okHandler(&called, &result)))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil)
	r.Header.Set("Authorization", "Bearer "+sessionToken(t, "u-alice@example.com", "t1", "alice@example.com"))
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.True(t, called)
	require.NotNil(t, result)
	assert.True(t, result.Success)
}

func TestOnResultCallback(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	var gotType AuthType
	var gotSuccess bool
	deps.OnResult = func(authType AuthType, success bool) {
		gotType = authType
		gotSuccess = success
	}

	var called bool
	h := ResolveServerID(RequireAuth(deps)(okHandler(&called, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil))

	assert.Equal(t, AuthTypeBase, gotType)
	assert.False(t, gotSuccess)
}

func TestLazyRequireAuth_InitializesOnFirstRequest(t *testing.T) {
	_, deps := newMiddlewareDeps(t)

	inits := 0
	var called bool
	h := ResolveServerID(LazyRequireAuth(func() (Deps, error) {
		inits++
		return deps, nil
	})(okHandler(&called, nil)))

	r := httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil)
	r.Header.Set("Authorization", "Bearer "+sessionToken(t, "u-alice@example.com", "t1", "alice@example.com"))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r.Clone(r.Context()))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1, inits, "dependency construction runs exactly once")
	assert.True(t, called)
}

func TestLazyRequireAuth_InitFailureRejectsEveryRequest(t *testing.T) {
	var called bool
	h := LazyRequireAuth(func() (Deps, error) {
		return Deps{}, errors.New("store not ready")
	})(okHandler(&called, nil))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp?serverId=s1", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
	assert.False(t, called)
}
