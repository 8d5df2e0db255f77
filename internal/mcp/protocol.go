// ABOUTME: JSON-RPC 2.0 wire types and the tool-source contract
// ABOUTME: Shared by both the streaming and per-request transports

package mcp

import (
	"context"
	"encoding/json"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// latestProtocolVersion is the version advertised in initialize responses.
const latestProtocolVersion = "2025-03-26"

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// ToolInfo represents an MCP tool definition.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents content in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextResult builds a plain-text tool result.
func TextResult(text string) CallToolResult {
	return CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult builds a tool-level error result. Tool failures travel inside
// the result payload rather than as protocol errors.
func ErrorResult(text string) CallToolResult {
	return CallToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

// ToolSource supplies the tools exposed for a given server. Tool
// construction (e.g. from an OpenAPI document) is owned elsewhere; the
// protocol runtime only lists and invokes.
type ToolSource interface {
	// Tools returns the tool definitions available on the server.
	Tools(ctx context.Context, serverID string) ([]ToolInfo, error)

	// CallTool invokes a named tool with raw JSON arguments.
	CallTool(ctx context.Context, serverID, name string, args json.RawMessage) (CallToolResult, error)
}

// StaticToolSource serves a fixed tool set regardless of server. Used for
// bootstrap deployments and tests.
type StaticToolSource struct {
	Defs    []ToolInfo
	Handler func(ctx context.Context, name string, args json.RawMessage) (CallToolResult, error)
}

// Tools returns the static definitions.
func (s *StaticToolSource) Tools(_ context.Context, _ string) ([]ToolInfo, error) {
	return s.Defs, nil
}

// CallTool dispatches to the configured handler, rejecting unknown names.
func (s *StaticToolSource) CallTool(ctx context.Context, _ string, name string, args json.RawMessage) (CallToolResult, error) {
	for _, def := range s.Defs {
		if def.Name == name {
			if s.Handler == nil {
				return ErrorResult("tool has no handler"), nil
			}
			return s.Handler(ctx, name, args)
		}
	}
	return CallToolResult{}, ErrToolNotFound
}
