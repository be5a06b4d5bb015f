package compress

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Session tracks one active compression job. The cancellation flag is
// one-way: once set it stays set for the session's lifetime, and the
// pump observes it at least once per iteration.
type Session struct {
	id        string
	cancelled atomic.Bool
}

// ID returns the opaque session token.
func (s *Session) ID() string { return s.id }

// Cancel requests cooperative cancellation. Safe from any goroutine.
func (s *Session) Cancel() { s.cancelled.Store(true) }

// Cancelled reports whether cancellation has been requested.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// SessionRegistry maps live session ids to their cancellation flags.
// Entries exist only while a session is running: added at transcode
// start and removed when the pump terminates for any reason.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Open creates and registers a new session with a fresh id.
func (r *SessionRegistry) Open() *Session {
	s := &Session{id: uuid.NewString()}
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// Cancel sets the cancellation flag for an active session. Returns
// false for unknown or already-finished sessions (a no-op).
func (r *SessionRegistry) Cancel(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Cancel()
	return true
}

// Remove drops a session entry. Called exactly once per session, on
// success, failure, or cancellation alike.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Active returns the number of live sessions.
func (r *SessionRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
