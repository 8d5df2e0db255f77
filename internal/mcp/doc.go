// Package mcp implements the protocol transport layer of the gateway.
//
// # Delivery modes
//
// Two modes carry protocol traffic after authentication:
//
//   - Streaming: GET /api/mcp opens a Server-Sent Events connection. The
//     server generates a session id, registers it in an in-process
//     SessionRegistry, and advertises a message endpoint via an "endpoint"
//     event. Messages POSTed to /api/mcp/messages?sessionId=<id> are
//     dispatched through the session's Runtime; responses travel back over
//     the SSE stream. The session is removed synchronously when the
//     connection closes.
//
//   - Streamable: POST /api/mcp runs a single request/response exchange
//     with a fresh transport and Runtime, both released when the handler
//     returns regardless of outcome.
//
// Sessions live only in process memory. In a multi-instance deployment a
// streaming session is pinned to the instance that accepted it; a message
// arriving at another instance gets a 404 "session not found" and the
// client re-establishes.
//
// # Protocol
//
// The Runtime is a minimal JSON-RPC 2.0 dispatcher supporting initialize,
// ping, tools/list, and tools/call against an injected ToolSource.
// Notifications are acknowledged with 202 and produce no response.
package mcp
