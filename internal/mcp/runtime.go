// ABOUTME: Per-connection protocol runtime dispatching JSON-RPC messages
// ABOUTME: One instance per streaming session or per streamable request

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
)

// ErrToolNotFound is returned by a ToolSource when no tool matches the
// requested name.
var ErrToolNotFound = errors.New("tool not found")

// Runtime handles the JSON-RPC message stream for one transport. It is
// created when the transport is established and closed with it; a closed
// runtime rejects further messages.
type Runtime struct {
	serverID string
	tools    ToolSource
	logger   *slog.Logger

	closed     atomic.Bool
	closeCount atomic.Int32
}

// NewRuntime creates a runtime bound to the given server's tool source.
func NewRuntime(serverID string, tools ToolSource, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		serverID: serverID,
		tools:    tools,
		logger:   logger.With("server_id", serverID),
	}
}

// Close releases the runtime. Safe to call more than once; only the first
// call transitions state.
func (rt *Runtime) Close() error {
	rt.closeCount.Add(1)
	rt.closed.Store(true)
	return nil
}

// Handle parses and dispatches one raw JSON-RPC message. A nil response
// means the message was a notification and no reply should be sent.
func (rt *Runtime) Handle(ctx context.Context, raw []byte) *JSONRPCResponse {
	if rt.closed.Load() {
		return errorResponse(nil, JSONRPCInternalError, "runtime closed")
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, JSONRPCParseError, "invalid JSON")
	}
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version")
	}

	isNotification := len(req.ID) == 0 || string(req.ID) == "null"
	if isNotification {
		if strings.HasPrefix(req.Method, "notifications/") {
			rt.logger.Debug("accepted notification", "method", req.Method)
		} else {
			rt.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		return nil
	}

	rt.logger.Debug("protocol request", "method", req.Method)

	switch req.Method {
	case "initialize":
		return rt.handleInitialize(req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return rt.handleToolsList(ctx, req)
	case "tools/call":
		return rt.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found")
	}
}

func (rt *Runtime) handleInitialize(req JSONRPCRequest) *JSONRPCResponse {
	result := map[string]any{
		"protocolVersion": latestProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "mcp-gateway",
			"version": "1.0.0",
		},
	}
	return resultResponse(req.ID, result)
}

func (rt *Runtime) handleToolsList(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	tools, err := rt.tools.Tools(ctx, rt.serverID)
	if err != nil {
		rt.logger.Warn("listing tools failed", "error", err)
		return errorResponse(req.ID, JSONRPCInternalError, "failed to list tools")
	}
	if tools == nil {
		tools = []ToolInfo{}
	}
	return resultResponse(req.ID, ListToolsResult{Tools: tools})
}

func (rt *Runtime) handleToolsCall(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required")
	}

	result, err := rt.tools.CallTool(ctx, rt.serverID, params.Name, params.Arguments)
	if err != nil {
		return rt.toolError(req.ID, params.Name, err)
	}

	rt.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"is_error", result.IsError,
	)
	return resultResponse(req.ID, result)
}

// toolError maps tool invocation failures onto JSON-RPC error codes.
func (rt *Runtime) toolError(id json.RawMessage, toolName string, err error) *JSONRPCResponse {
	rt.logger.Warn("tool execution failed",
		"tool_name", toolName,
		"error", err,
	)

	code := JSONRPCInternalError
	message := "tool execution failed"

	switch {
	case errors.Is(err, ErrToolNotFound):
		code = JSONRPCInvalidParams
		message = "tool not found"
	case errors.Is(err, context.DeadlineExceeded):
		message = "tool execution timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	}

	return errorResponse(id, code, message)
}

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}
