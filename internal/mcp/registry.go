// ABOUTME: In-process table of live streaming sessions
// ABOUTME: Injectable registry, one entry per open SSE connection

package mcp

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StreamSession binds a generated session id to a live SSE connection and
// its protocol runtime. All writes to the connection go through SendEvent so
// the message endpoint and keep-alives never interleave.
type StreamSession struct {
	ID        string
	ServerID  string
	Runtime   *Runtime
	CreatedAt time.Time

	w       http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex
}

// SendEvent writes one SSE event to the connection and flushes it.
func (s *StreamSession) SendEvent(event string, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// SendComment writes an SSE comment line, used for keep-alives.
func (s *StreamSession) SendComment(comment string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := fmt.Fprintf(s.w, ": %s\n\n", comment); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// SessionRegistry tracks active streaming sessions. Process-local only: a
// session is pinned to the instance that accepted its connection.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*StreamSession
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*StreamSession)}
}

// Create registers a new session with a generated identifier.
func (r *SessionRegistry) Create(serverID string, rt *Runtime, w http.ResponseWriter, flusher http.Flusher) *StreamSession {
	sess := &StreamSession{
		ID:        uuid.New().String(),
		ServerID:  serverID,
		Runtime:   rt,
		CreatedAt: time.Now(),
		w:         w,
		flusher:   flusher,
	}
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess
}

// Get looks up a session by id.
func (r *SessionRegistry) Get(id string) (*StreamSession, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	return sess, ok
}

// Remove drops a session from the table, reporting whether it existed.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	_, existed := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	return existed
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
