// ABOUTME: Tests for the JSON-RPC protocol runtime
// ABOUTME: Covers dispatch, notifications, and tool error mapping

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoToolSource() *StaticToolSource {
	return &StaticToolSource{
		Defs: []ToolInfo{{
			Name:        "echo",
			Description: "echoes its input",
			InputSchema: json.RawMessage(`{"type":"object"}`),
		}},
		Handler: func(_ context.Context, _ string, args json.RawMessage) (CallToolResult, error) {
			return TextResult(string(args)), nil
		},
	}
}

func newTestRuntime() *Runtime {
	return NewRuntime("s1", echoToolSource(), testLogger())
}

func handleRaw(t *testing.T, rt *Runtime, raw string) *JSONRPCResponse {
	t.Helper()
	return rt.Handle(context.Background(), []byte(raw))
}

func TestRuntime_Initialize(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(), `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)

	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, latestProtocolVersion, result["protocolVersion"])
}

func TestRuntime_Ping(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(), `{"jsonrpc":"2.0","id":2,"method":"ping"}`)

	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}

func TestRuntime_ToolsList(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(), `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)

	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(ListToolsResult)
	require.True(t, ok)
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "echo", result.Tools[0].Name)
}

func TestRuntime_ToolsCall(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(),
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{"msg":"hi"}}}`)

	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(CallToolResult)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.JSONEq(t, `{"msg":"hi"}`, result.Content[0].Text)
	assert.False(t, result.IsError)
}

func TestRuntime_ToolsCallUnknownTool(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(),
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}`)

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInvalidParams, resp.Error.Code)
	assert.Equal(t, "tool not found", resp.Error.Message)
}

func TestRuntime_ToolsCallMissingName(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(),
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{}}`)

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInvalidParams, resp.Error.Code)
}

func TestRuntime_MethodNotFound(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(), `{"jsonrpc":"2.0","id":7,"method":"resources/list"}`)

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCMethodNotFound, resp.Error.Code)
}

func TestRuntime_NotificationProducesNoResponse(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(), `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Nil(t, resp)
}

func TestRuntime_InvalidJSON(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(), `{not json`)

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCParseError, resp.Error.Code)
}

func TestRuntime_WrongVersion(t *testing.T) {
	resp := handleRaw(t, newTestRuntime(), `{"jsonrpc":"1.0","id":8,"method":"ping"}`)

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInvalidRequest, resp.Error.Code)
}

func TestRuntime_ToolSourceError(t *testing.T) {
	src := &StaticToolSource{
		Defs: []ToolInfo{{Name: "broken"}},
		Handler: func(context.Context, string, json.RawMessage) (CallToolResult, error) {
			return CallToolResult{}, errors.New("upstream exploded")
		},
	}
	rt := NewRuntime("s1", src, testLogger())

	resp := handleRaw(t, rt, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"broken"}}`)

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInternalError, resp.Error.Code)
	assert.Equal(t, "tool execution failed", resp.Error.Message, "upstream detail stays out of the wire error")
}

func TestRuntime_ClosedRejectsMessages(t *testing.T) {
	rt := newTestRuntime()
	require.NoError(t, rt.Close())

	resp := handleRaw(t, rt, `{"jsonrpc":"2.0","id":10,"method":"ping"}`)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "runtime closed", resp.Error.Message)
}
