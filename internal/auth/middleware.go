// ABOUTME: HTTP middleware orchestrating server-id resolution and strategy dispatch
// ABOUTME: Provides required, optional, and lazily-initialized variants

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/relayforge/mcp-gateway/internal/store"
)

// ServerIDEnvVar overrides server-id resolution for local development.
const ServerIDEnvVar = "MCP_GATEWAY_SERVER_ID"

// Deps carries the collaborators the authentication middleware needs.
type Deps struct {
	Validator *AccessValidator
	Resolver  *Resolver
	Logger    *slog.Logger

	// OnResult, when set, is invoked with every authentication outcome.
	// Used to feed metrics without coupling this package to a collector.
	OnResult func(authType AuthType, success bool)
}

// errorBody is the JSON-RPC-shaped error payload used on the protocol
// endpoints this middleware guards.
type errorBody struct {
	JSONRPC string     `json:"jsonrpc"`
	Error   errorInner `json:"error"`
	ID      any        `json:"id"`
}

type errorInner struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON-RPC-shaped error with the HTTP status mirrored
// into the error code.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		JSONRPC: "2.0",
		Error:   errorInner{Code: status, Message: message},
	})
}

// ResolveServerID returns middleware that derives the target server id and
// attaches it to the request context. Precedence: explicit serverId query
// parameter, the MCP_GATEWAY_SERVER_ID environment override, then the first
// subdomain label of the request host.
func ResolveServerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverID := r.URL.Query().Get("serverId")
		if serverID == "" {
			serverID = os.Getenv(ServerIDEnvVar)
		}
		if serverID == "" {
			host := r.Host
			if h, _, ok := strings.Cut(host, ":"); ok {
				host = h
			}
			if label, rest, ok := strings.Cut(host, "."); ok && rest != "" {
				serverID = label
			}
		}
		if serverID != "" {
			r = r.WithContext(WithServerID(r.Context(), serverID))
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate runs one authentication attempt and returns the result. The
// bool reports whether a usable result was produced; when false a response
// has already been written.
func authenticate(deps Deps, w http.ResponseWriter, r *http.Request, required bool) (*Result, bool) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serverID := ServerIDFromContext(r.Context())
	if serverID == "" {
		if !required {
			return nil, true
		}
		// There is no server to authenticate against.
		writeError(w, http.StatusBadRequest, "missing server identifier")
		return nil, false
	}

	authType, err := resolveAuthType(deps, r, serverID)
	if err != nil {
		logger.Error("internal authentication error",
			"server_id", serverID,
			"path", r.URL.Path,
			"error", err,
		)
		if !required {
			return nil, true
		}
		writeError(w, http.StatusInternalServerError, "internal authentication error")
		return nil, false
	}

	strategy, err := deps.Resolver.Resolve(authType)
	if err != nil {
		// A stored auth type with no registered strategy is a deployment
		// bug, not a caller mistake.
		logger.Error("internal authentication error",
			"server_id", serverID,
			"path", r.URL.Path,
			"error", err,
		)
		if !required {
			return nil, true
		}
		writeError(w, http.StatusInternalServerError, "internal authentication error")
		return nil, false
	}

	result, err := strategy.Authenticate(r.Context(), r, serverID)
	if err != nil {
		logger.Error("internal authentication error",
			"server_id", serverID,
			"path", r.URL.Path,
			"error", err,
		)
		if !required {
			return nil, true
		}
		writeError(w, http.StatusInternalServerError, "internal authentication error")
		return nil, false
	}

	if deps.OnResult != nil {
		deps.OnResult(authType, result.Success)
	}

	if !result.Success {
		logger.Debug("authentication failed",
			"server_id", serverID,
			"auth_type", authType,
			"reason", result.Error,
		)
		if required {
			writeError(w, http.StatusUnauthorized, result.Error)
			return nil, false
		}
	}

	return &result, true
}

// resolveAuthType reads the server's configured auth type, defaulting to
// BASE when the server is unknown or carries no configuration.
func resolveAuthType(deps Deps, r *http.Request, serverID string) (AuthType, error) {
	srv, err := deps.Validator.Server(r.Context(), serverID)
	if errors.Is(err, store.ErrNotFound) {
		// Let the BASE strategy produce the proper invalid-server failure.
		return AuthTypeBase, nil
	}
	if err != nil {
		return "", err
	}
	if srv.AuthType == "" {
		return AuthTypeBase, nil
	}
	return AuthType(srv.AuthType), nil
}

// RequireAuth returns middleware that authenticates every request and
// rejects on failure. On success the Result is attached to the request
// context.
func RequireAuth(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, ok := authenticate(deps, w, r, true)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), result)))
		})
	}
}

// OptionalAuth returns middleware that attempts authentication but never
// blocks the request. The Result, success or failure, is still attached to
// the context for downstream conditional logic.
func OptionalAuth(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, _ := authenticate(deps, w, r, false)
			if result != nil {
				r = r.WithContext(WithAuth(r.Context(), result))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LazyRequireAuth behaves like RequireAuth but constructs its dependencies
// on first use, so the middleware can be wired before the data store is
// available. Initialization is attempted once; if it fails, every request
// is rejected with an internal error.
func LazyRequireAuth(init func() (Deps, error)) func(http.Handler) http.Handler {
	var (
		once sync.Once
		deps Deps
		err  error
	)
	return func(next http.Handler) http.Handler {
		wrapped := func(w http.ResponseWriter, r *http.Request) {
			once.Do(func() { deps, err = init() })
			if err != nil {
				slog.Default().Error("auth middleware initialization failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal authentication error")
				return
			}
			RequireAuth(deps)(next).ServeHTTP(w, r)
		}
		return http.HandlerFunc(wrapped)
	}
}
