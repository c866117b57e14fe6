package transport

import (
	"fmt"
	"sync"
	"time"
)

// Registry maps session identifiers to live session handles. It owns
// creation, lookup, and teardown; a handle is registered only after its
// connection handshake has fully completed. All methods are safe under
// concurrent invocation from independent client connections.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	retention   int
	callTimeout time.Duration
}

// RegistryConfig tunes session creation.
type RegistryConfig struct {
	// MaxSessions caps concurrently attached sessions; zero means unlimited.
	MaxSessions int
	// EventRetention bounds each resumable session's event log.
	EventRetention int
	// CallTimeout bounds each server-initiated call awaiting a client reply.
	CallTimeout time.Duration
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		maxSessions: cfg.MaxSessions,
		retention:   cfg.EventRetention,
		callTimeout: cfg.CallTimeout,
	}
}

// Create mints a new session handle in the Initializing state. The handle is
// NOT yet registered: callers complete the connection handshake, Activate the
// session, and then Attach it, so a concurrent request can never look up a
// half-initialized session. A handle that fails its handshake is simply
// discarded.
func (r *Registry) Create(kind Kind) *Session {
	return newSession(kind, r.retention, r.callTimeout)
}

// Attach registers an activated handle under its identifier.
// Returns ErrSessionLimit when the cap is reached and ErrAlreadyAttached if
// the identifier is taken; at most one live handle per identifier exists at
// any instant.
func (r *Registry) Attach(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		return fmt.Errorf("%w: %d sessions", ErrSessionLimit, len(r.sessions))
	}
	if _, exists := r.sessions[s.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, s.ID())
	}

	r.sessions[s.ID()] = s
	return nil
}

// Lookup returns the live handle for an identifier. The second return
// distinguishes an unknown or removed session; callers must reject the
// triggering request with a client error rather than fail silently.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove unregisters an identifier. Safe to call twice; the second call is a
// no-op. Remove does not terminate the session; owners terminate first, then
// remove.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of attached sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the currently attached handles. Used by the idle sweeper
// and graceful shutdown; the slice is a copy and safe to iterate without the
// registry lock.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
