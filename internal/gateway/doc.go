// Package gateway wires the mcp-gateway components into a running server.
//
// # Overview
//
// A Gateway owns the data store, the TTL lookup cache, the authentication
// chain (access validator, key-set verifier, strategies, resolver,
// middleware), and the protocol transport server, and serves them over one
// HTTP listener.
//
// # HTTP surface
//
//   - /api/mcp and /api/mcp/messages — protocol endpoints, behind
//     server-id resolution and required authentication
//   - /healthz — liveness plus the active streaming session count
//   - /metrics — Prometheus metrics (when enabled)
//
// # Lifecycle
//
// Run blocks until the context is canceled, then shuts the HTTP server
// down gracefully and releases the cache and store.
package gateway
