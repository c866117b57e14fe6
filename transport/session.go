// Package transport implements the session lifecycle and resumable-delivery
// machinery: the session registry, the per-session resumable event log, and
// the HTTP state machines for the two stream variants (push-only SSE and
// resumable bidirectional).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/conduit/core/protocol"
)

// Kind selects the transport variant backing a session.
type Kind string

const (
	// KindPush is the push-only stream: no replay, a dropped stream means a
	// fresh session.
	KindPush Kind = "push"
	// KindResumable is the bidirectional stream with event-log replay across
	// reconnects.
	KindResumable Kind = "resumable"
)

// State is a session's lifecycle position. Transitions only move forward:
// Uninitialized → Initializing → Active → Terminated.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is the live connection handle for one client. It owns the
// session's event log, the live stream subscriber, and the pending map for
// server-initiated calls. All methods are safe for concurrent use.
type Session struct {
	id        string
	kind      Kind
	createdAt time.Time

	mu           sync.Mutex
	state        State
	lastActivity time.Time
	caps         protocol.ClientCapabilities
	log          *EventLog
	subscriber   chan Event
	pending      map[string]chan *protocol.Frame
	callTimeout  time.Duration
}

// subscriberBuffer bounds undelivered live events per stream. When it
// overflows, a resumable client's stream is closed so reconnect replay can
// deliver the backlog; a slow push client just loses the event.
const subscriberBuffer = 64

func newSession(kind Kind, retention int, callTimeout time.Duration) *Session {
	s := &Session{
		id:           uuid.Must(uuid.NewV7()).String(),
		kind:         kind,
		createdAt:    time.Now(),
		state:        StateInitializing,
		lastActivity: time.Now(),
		pending:      make(map[string]chan *protocol.Frame),
		callTimeout:  callTimeout,
	}
	if kind == KindResumable {
		s.log = NewEventLog(retention)
	}
	return s
}

// ID returns the session's opaque, globally unique identifier.
func (s *Session) ID() string { return s.id }

// Kind returns the transport variant backing the session.
func (s *Session) Kind() Kind { return s.kind }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate moves the session from Initializing to Active. It is called only
// after the connection handshake has fully completed, immediately before the
// handle registers in the registry, so no concurrent request can observe a
// half-initialized session.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitializing {
		return fmt.Errorf("%w: state %s", ErrNotInitializing, s.state)
	}
	s.state = StateActive
	s.lastActivity = time.Now()
	return nil
}

// Touch records client activity for idle-expiry accounting.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// IdleSince returns the time of the last recorded client activity.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SetCapabilities stores what the client declared at initialize.
func (s *Session) SetCapabilities(caps protocol.ClientCapabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps = caps
}

// Capabilities returns the client's declared capabilities.
func (s *Session) Capabilities() protocol.ClientCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Send delivers a frame over the session's outbound stream. For resumable
// sessions the frame is recorded in the event log before live delivery, so a
// reconnecting client replays it by sequence number. Returns
// ErrSessionTerminated once the session is torn down.
func (s *Session) Send(frame *protocol.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return ErrSessionTerminated
	}

	event := Event{Payload: payload}
	if s.log != nil {
		seq, err := s.log.Append(payload)
		if err != nil {
			return err
		}
		event.Seq = seq
	}

	if s.subscriber != nil {
		select {
		case s.subscriber <- event:
		default:
			// Stream back-pressure. A resumable client must never observe a
			// silent sequence jump on a live stream, so its subscriber is cut
			// loose: the stream ends, and reconnect-with-replay delivers the
			// backlog in order. A push client has no replay and just misses
			// the event.
			if s.kind == KindResumable {
				close(s.subscriber)
				s.subscriber = nil
			}
		}
	}
	return nil
}

// Subscribe attaches the caller as the session's live stream. For resumable
// sessions, replay holds every retained event with sequence number greater
// than after, and gap reports whether older events were evicted. Replay
// computation and subscriber installation happen under one critical section
// so no concurrent Send can slip an event between them. A previous
// subscriber, if any, is detached.
func (s *Session) Subscribe(after uint64) (replay []Event, gap bool, live <-chan Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return nil, false, nil, ErrSessionTerminated
	}

	if s.log != nil {
		replay, gap = s.log.replayLocked(after)
	}

	if s.subscriber != nil {
		close(s.subscriber)
	}
	ch := make(chan Event, subscriberBuffer)
	s.subscriber = ch
	return replay, gap, ch, nil
}

// Unsubscribe detaches the given live stream if it is still current.
// The session stays Active; a resumable client may reconnect later.
func (s *Session) Unsubscribe(live <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriber != nil && live == s.subscriber {
		close(s.subscriber)
		s.subscriber = nil
	}
}

// Call issues a server-initiated request to the connected client and blocks
// until the client's response arrives, the per-call deadline passes, or ctx
// expires. The response is matched by request ID via HandleResponse.
func (s *Session) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	id := uuid.NewString()
	ch := make(chan *protocol.Frame, 1)

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, ErrSessionTerminated
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.Send(protocol.NewRequest(protocol.NewRequestID(id), method, params)); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-ch:
		if !ok {
			return nil, ErrSessionTerminated
		}
		if frame.Error != nil {
			return nil, fmt.Errorf("counterpart error %d: %s", frame.Error.Code, frame.Error.Message)
		}
		return frame.Result, nil
	}
}

// HandleResponse routes a client-posted response frame to the pending call
// that issued the matching request. Reports whether a caller was waiting.
func (s *Session) HandleResponse(frame *protocol.Frame) bool {
	if frame.ID == nil {
		return false
	}

	s.mu.Lock()
	ch, ok := s.pending[frame.ID.String()]
	if ok {
		delete(s.pending, frame.ID.String())
	}
	s.mu.Unlock()

	if ok {
		ch <- frame
	}
	return ok
}

// Terminate moves the session to its terminal state and releases its
// resources: the event log stops accepting appends, pending calls fail, and
// the live stream closes. Safe to call more than once; later calls are
// no-ops.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated

	if s.log != nil {
		s.log.Close()
	}
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	if s.subscriber != nil {
		close(s.subscriber)
		s.subscriber = nil
	}
	s.mu.Unlock()
}

// LatestSeq returns the most recently appended sequence number, zero for
// push sessions.
func (s *Session) LatestSeq() uint64 {
	if s.log == nil {
		return 0
	}
	return s.log.Latest()
}
