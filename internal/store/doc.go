// Package store provides persistence for mcp-gateway configuration data.
//
// Three entity types back the authentication subsystem:
//
//   - Server: a tenant-owned MCP server configuration carrying the
//     authentication type ("BASE" or "JWT") and an enabled flag.
//   - JwtProvider: a tenant-scoped JWKS provider referenced by JWT-typed
//     servers.
//   - EndUser: a pre-registered caller for BASE-authenticated servers,
//     looked up by email within a tenant.
//
// The auth subsystem only reads through point lookups (GetServer,
// GetEnabledJwtProvider, GetEndUserByEmail); records are created by the
// admin console and the bootstrap command.
//
// Two implementations exist: SQLiteStore (modernc.org/sqlite, WAL mode,
// schema auto-created) and MockStore for tests.
package store
