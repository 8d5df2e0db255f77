// Package auth decides, per incoming request, which authentication scheme
// applies to the target MCP server and verifies the caller under it.
//
// # Strategies
//
// Two interchangeable strategies implement one contract:
//
//   - BASE: the bearer token is a signed end-user session token. The token
//     yields an email; the AccessValidator decides whether that email may
//     use the server, consulting the server and end-user records through
//     the TTL cache.
//
//   - JWT: the bearer token is a third-party JWT. The server's enabled
//     JwtProvider supplies a JWKS URL; the KeySetVerifier checks signature
//     and temporal claims against it. A valid signature implies
//     authorization.
//
// The Resolver maps a server's configured auth type to its strategy. The
// set is closed: an unregistered type is ErrUnsupportedStrategy, never a
// silent fallback.
//
// # Error shape
//
// Expected authentication failures are data (Result with Success=false and
// a reason string), so the middleware can uniformly map them to 401
// responses. Go errors are reserved for infrastructure failures (data store
// or network), which the middleware reports as a generic 500 without
// internal detail.
//
// # Middleware
//
// RequireAuth rejects unauthenticated requests; OptionalAuth attaches the
// outcome but never blocks; LazyRequireAuth defers dependency construction
// to first use. ResolveServerID derives the target server from the
// serverId query parameter, an environment override, or the request
// subdomain.
package auth
