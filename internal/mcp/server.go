// ABOUTME: HTTP endpoints for the two protocol delivery modes
// ABOUTME: SSE streaming sessions and stateless per-request exchanges

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relayforge/mcp-gateway/internal/auth"
)

// DefaultKeepAliveInterval is how often an idle streaming connection gets an
// SSE comment to keep intermediaries from timing it out.
const DefaultKeepAliveInterval = 30 * time.Second

// Config holds configuration for the protocol server.
type Config struct {
	Tools    ToolSource
	Logger   *slog.Logger
	Registry *SessionRegistry

	// KeepAliveInterval overrides DefaultKeepAliveInterval when positive.
	KeepAliveInterval time.Duration

	// OnSessionChange, when set, is invoked with +1/-1 as streaming
	// sessions open and close. Feeds the active-sessions gauge.
	OnSessionChange func(delta int)
}

// Server exposes the protocol endpoints. Authentication happens upstream;
// handlers here assume the middleware has already attached the server id and
// auth result to the request context.
type Server struct {
	tools     ToolSource
	logger    *slog.Logger
	registry  *SessionRegistry
	keepAlive time.Duration
	onChange  func(delta int)
}

// NewServer creates a protocol server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Tools == nil {
		return nil, errors.New("tool source is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewSessionRegistry()
	}
	keepAlive := cfg.KeepAliveInterval
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAliveInterval
	}

	return &Server{
		tools:     cfg.Tools,
		logger:    logger,
		registry:  registry,
		keepAlive: keepAlive,
		onChange:  cfg.OnSessionChange,
	}, nil
}

// Registry returns the session table, exposed for health reporting.
func (s *Server) Registry() *SessionRegistry { return s.registry }

// RegisterRoutes registers the protocol endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/mcp", s.handleMCP)
	mux.HandleFunc("/api/mcp/messages", s.handleMessages)
}

// handleMCP routes by verb: GET establishes a streaming session, POST runs a
// single streamable exchange. Everything else is rejected.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleStream(w, r)
	case http.MethodPost:
		s.handleStreamable(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeRPCError(w, http.StatusMethodNotAllowed, JSONRPCInvalidRequest, "method not allowed")
	}
}

// handleStream establishes an SSE connection, registers a session for it,
// and advertises the message endpoint. The session is removed from the table
// before this handler returns, so a closed connection is never observable as
// a live session.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeRPCError(w, http.StatusInternalServerError, JSONRPCInternalError, "streaming unsupported")
		return
	}

	serverID := auth.ServerIDFromContext(r.Context())
	rt := NewRuntime(serverID, s.tools, s.logger)
	sess := s.registry.Create(serverID, rt, w, flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if s.onChange != nil {
		s.onChange(1)
	}
	s.logger.Info("streaming session established",
		"session_id", sess.ID,
		"server_id", serverID,
	)

	if err := sess.SendEvent("endpoint", []byte("/api/mcp/messages?sessionId="+sess.ID)); err != nil {
		s.teardownStream(sess)
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.teardownStream(sess)
			return
		case <-ticker.C:
			if err := sess.SendComment("keep-alive"); err != nil {
				s.teardownStream(sess)
				return
			}
		}
	}
}

// teardownStream removes the session and releases its runtime, in that
// order, synchronously with the connection close.
func (s *Server) teardownStream(sess *StreamSession) {
	s.registry.Remove(sess.ID)
	_ = sess.Runtime.Close()
	if s.onChange != nil {
		s.onChange(-1)
	}
	s.logger.Info("streaming session closed",
		"session_id", sess.ID,
		"server_id", sess.ServerID,
	)
}

// handleMessages accepts a protocol message for an established streaming
// session. The JSON-RPC response travels back over the session's SSE
// connection; the POST itself is acknowledged with 202.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeRPCError(w, http.StatusMethodNotAllowed, JSONRPCInvalidRequest, "method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeRPCError(w, http.StatusBadRequest, JSONRPCInvalidRequest, "missing sessionId parameter")
		return
	}

	sess, ok := s.registry.Get(sessionID)
	if !ok {
		// Expected after a restart or failover; the client re-establishes.
		s.logger.Debug("message for unknown session", "session_id", sessionID)
		writeRPCError(w, http.StatusNotFound, JSONRPCInvalidRequest, "session not found")
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, JSONRPCInvalidRequest, err.Error())
		return
	}

	resp := sess.Runtime.Handle(r.Context(), body)
	if resp != nil {
		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Warn("failed to encode protocol response",
				"session_id", sess.ID,
				"error", err,
			)
			writeRPCError(w, http.StatusInternalServerError, JSONRPCInternalError, "internal error")
			return
		}
		if err := sess.SendEvent("message", data); err != nil {
			// The stream went away between lookup and write; the close
			// path tears the session down.
			s.logger.Debug("stream write failed", "session_id", sess.ID, "error", err)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

// streamableTransport wraps a per-request response. It tracks whether any
// bytes were written so error paths never stomp a response already in
// flight.
type streamableTransport struct {
	w           http.ResponseWriter
	headersSent bool
	closeCount  atomic.Int32
}

func newStreamableTransport(w http.ResponseWriter) *streamableTransport {
	return &streamableTransport{w: w}
}

// writeResponse sends the JSON-RPC response body.
func (t *streamableTransport) writeResponse(resp *JSONRPCResponse) error {
	t.headersSent = true
	t.w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(t.w).Encode(resp)
}

// writeStatus sends a bare status with no body.
func (t *streamableTransport) writeStatus(status int) {
	t.headersSent = true
	t.w.WriteHeader(status)
}

// writeError sends a JSON-RPC-shaped error unless the response has already
// started, in which case the stream keeps authority and nothing is written.
func (t *streamableTransport) writeError(status, code int, message string) {
	if t.headersSent {
		return
	}
	t.headersSent = true
	writeRPCError(t.w, status, code, message)
}

// Close releases the transport. Safe to call more than once.
func (t *streamableTransport) Close() error {
	t.closeCount.Add(1)
	return nil
}

// handleStreamable runs one stateless request/response exchange with a fresh
// transport and runtime.
func (s *Server) handleStreamable(w http.ResponseWriter, r *http.Request) {
	serverID := auth.ServerIDFromContext(r.Context())
	tw := newStreamableTransport(w)
	rt := NewRuntime(serverID, s.tools, s.logger)
	s.serveStreamable(tw, rt, r)
}

// serveStreamable dispatches the request body through the runtime. The
// transport and runtime are both closed exactly once on every exit path,
// panics included.
func (s *Server) serveStreamable(tw *streamableTransport, rt *Runtime, r *http.Request) {
	var closeOnce sync.Once
	closeAll := func() {
		closeOnce.Do(func() {
			_ = tw.Close()
			_ = rt.Close()
		})
	}
	defer closeAll()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("protocol handler panic",
				"server_id", rt.serverID,
				"path", r.URL.Path,
				"panic", rec,
			)
			tw.writeError(http.StatusInternalServerError, JSONRPCInternalError, "internal error")
		}
	}()

	body, err := readBody(r)
	if err != nil {
		tw.writeError(http.StatusBadRequest, JSONRPCInvalidRequest, err.Error())
		return
	}

	resp := rt.Handle(r.Context(), body)
	if resp == nil {
		// Notification: acknowledged, no body.
		tw.writeStatus(http.StatusAccepted)
		return
	}

	if err := tw.writeResponse(resp); err != nil {
		s.logger.Warn("failed to encode protocol response",
			"server_id", rt.serverID,
			"error", err,
		)
	}
}

// readBody reads a bounded request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if int64(len(body)) > MaxRequestBodySize {
		return nil, errors.New("request body too large")
	}
	return body, nil
}

// writeRPCError writes a JSON-RPC-shaped error with the given HTTP status.
func writeRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}
