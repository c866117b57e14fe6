package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/observability"
)

// StreamableHandler serves the resumable transport on a single endpoint.
// POST carries client frames inbound (the first one, sent without a session
// header, must be the initialize handshake), GET opens the outbound SSE
// stream with event-log replay, and DELETE terminates the session. Dropped
// GET streams do not end the session; the client reconnects with its last
// seen event id and resumes.
type StreamableHandler struct {
	registry  *Registry
	dispatch  Dispatcher
	observer  observability.Observer
	keepalive time.Duration
}

// StreamableOption configures a StreamableHandler.
type StreamableOption func(*StreamableHandler)

// WithStreamableObserver sets the observer for session lifecycle events.
func WithStreamableObserver(o observability.Observer) StreamableOption {
	return func(h *StreamableHandler) { h.observer = o }
}

// WithKeepalive sets the interval between SSE keepalive comments on an idle
// stream. Zero disables them.
func WithKeepalive(d time.Duration) StreamableOption {
	return func(h *StreamableHandler) { h.keepalive = d }
}

// NewStreamableHandler creates the resumable transport handler.
func NewStreamableHandler(registry *Registry, dispatch Dispatcher, opts ...StreamableOption) *StreamableHandler {
	h := &StreamableHandler{
		registry:  registry,
		dispatch:  dispatch,
		observer:  observability.NoOpObserver{},
		keepalive: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *StreamableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *StreamableHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	frame, err := decodeFrame(r)
	if err != nil {
		writeProtocolError(w, nil, protocol.ErrCodeParseError, err.Error())
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		h.handleInitialize(w, r, frame)
		return
	}

	sess, ok := h.registry.Lookup(sessionID)
	if !ok {
		writeProtocolError(w, frame.ID, protocol.ErrCodeUnknownSession, "unknown session "+sessionID)
		return
	}
	sess.Touch()

	switch {
	case frame.IsResponse():
		// A reply to a server-initiated call. Route it to the waiting caller
		// and acknowledge; the POST body carries no payload back.
		sess.HandleResponse(frame)
		w.WriteHeader(http.StatusAccepted)

	case frame.IsNotification():
		h.dispatch.Dispatch(r.Context(), sess, frame)
		w.WriteHeader(http.StatusAccepted)

	case frame.IsRequest():
		resp := h.dispatch.Dispatch(r.Context(), sess, frame)
		w.Header().Set(SessionHeader, sess.ID())
		writeFrame(w, http.StatusOK, resp)

	default:
		writeProtocolError(w, frame.ID, protocol.ErrCodeInvalidRequest, "frame is neither request, notification, nor response")
	}
}

// handleInitialize runs the connection handshake. The session becomes
// visible to other requests only after the handshake response is computed
// and the handle activates, so a concurrent lookup never observes a
// half-initialized session.
func (h *StreamableHandler) handleInitialize(w http.ResponseWriter, r *http.Request, frame *protocol.Frame) {
	if !frame.IsRequest() || frame.Method != protocol.MethodInitialize {
		writeProtocolError(w, frame.ID, protocol.ErrCodeInvalidRequest, "first request must be initialize")
		return
	}

	sess := h.registry.Create(KindResumable)
	resp := h.dispatch.Dispatch(r.Context(), sess, frame)
	if resp != nil && resp.Error != nil {
		writeFrame(w, http.StatusBadRequest, resp)
		return
	}
	if err := sess.Activate(); err != nil {
		writeProtocolError(w, frame.ID, protocol.ErrCodeInternalError, err.Error())
		return
	}
	if err := h.registry.Attach(sess); err != nil {
		code := protocol.ErrCodeInternalError
		status := http.StatusInternalServerError
		if errors.Is(err, ErrSessionLimit) {
			code = protocol.ErrCodeSessionLimit
			status = http.StatusServiceUnavailable
		}
		writeFrame(w, status, protocol.NewErrorResponse(frame.ID, code, err.Error()))
		return
	}

	h.observer.OnEvent(r.Context(), observability.Event{
		Type:      EventSessionCreated,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "transport.streamable",
		Data:      map[string]any{"session_id": sess.ID(), "kind": string(KindResumable)},
	})

	w.Header().Set(SessionHeader, sess.ID())
	writeFrame(w, http.StatusOK, resp)
}

func (h *StreamableHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		writeProtocolError(w, nil, protocol.ErrCodeInvalidRequest, "missing "+SessionHeader+" header")
		return
	}
	sess, ok := h.registry.Lookup(sessionID)
	if !ok {
		writeProtocolError(w, nil, protocol.ErrCodeUnknownSession, "unknown session "+sessionID)
		return
	}

	var after uint64
	if raw := r.Header.Get(LastEventIDHeader); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeProtocolError(w, nil, protocol.ErrCodeInvalidRequest, "malformed "+LastEventIDHeader+" header")
			return
		}
		after = parsed
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	replay, gap, live, err := sess.Subscribe(after)
	if err != nil {
		writeProtocolError(w, nil, protocol.ErrCodeSessionTerminated, err.Error())
		return
	}
	defer sess.Unsubscribe(live)
	sess.Touch()

	sseHeaders(w)
	w.Header().Set(SessionHeader, sess.ID())
	w.WriteHeader(http.StatusOK)

	h.observer.OnEvent(r.Context(), observability.Event{
		Type:      EventStreamConnected,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "transport.streamable",
		Data:      map[string]any{"session_id": sess.ID(), "after": after, "replayed": len(replay), "gap": gap},
	})

	if gap {
		// Events older than the retained window were evicted. Tell the
		// client explicitly where contiguity resumes instead of passing the
		// partial replay off as complete.
		if err := writeGapEvent(w, replay); err != nil {
			h.terminate(r.Context(), sess, "write error")
			return
		}
		h.observer.OnEvent(r.Context(), observability.Event{
			Type:      EventReplayGap,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "transport.streamable",
			Data:      map[string]any{"session_id": sess.ID(), "after": after},
		})
	}
	for _, e := range replay {
		if err := writeSSEEvent(w, e); err != nil {
			h.terminate(r.Context(), sess, "write error")
			return
		}
	}
	flusher.Flush()

	h.serveStream(r.Context(), w, flusher, sess, live)
}

// serveStream pumps live events to the connected client until the stream's
// context ends or the session terminates.
func (h *StreamableHandler) serveStream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sess *Session, live <-chan Event) {
	var ticker *time.Ticker
	var keepalive <-chan time.Time
	if h.keepalive > 0 {
		ticker = time.NewTicker(h.keepalive)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.observer.OnEvent(context.Background(), observability.Event{
				Type:      EventStreamClosed,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "transport.streamable",
				Data:      map[string]any{"session_id": sess.ID()},
			})
			return

		case <-keepalive:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				h.terminate(ctx, sess, "write error")
				return
			}
			flusher.Flush()

		case e, ok := <-live:
			if !ok {
				// Terminated, superseded by a newer stream, or cut on
				// subscriber-buffer overflow. The session stays resumable in
				// the latter cases; ending the response is what prompts the
				// client to reconnect and replay.
				return
			}
			if err := writeSSEEvent(w, e); err != nil {
				// A failed flush mid-reply terminates the session; other
				// sessions are unaffected.
				h.terminate(ctx, sess, "write error")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *StreamableHandler) terminate(ctx context.Context, sess *Session, reason string) {
	sess.Terminate()
	h.registry.Remove(sess.ID())
	h.observer.OnEvent(ctx, observability.Event{
		Type:      EventSessionTerminated,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "transport.streamable",
		Data:      map[string]any{"session_id": sess.ID(), "reason": reason},
	})
}

func (h *StreamableHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		writeProtocolError(w, nil, protocol.ErrCodeInvalidRequest, "missing "+SessionHeader+" header")
		return
	}
	sess, ok := h.registry.Lookup(sessionID)
	if !ok {
		// A repeated DELETE lands here and gets the same structured error an
		// unknown identifier would.
		writeProtocolError(w, nil, protocol.ErrCodeUnknownSession, "unknown session "+sessionID)
		return
	}

	sess.Terminate()
	h.registry.Remove(sessionID)

	h.observer.OnEvent(r.Context(), observability.Event{
		Type:      EventSessionTerminated,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "transport.streamable",
		Data:      map[string]any{"session_id": sessionID, "reason": "client"},
	})

	w.WriteHeader(http.StatusNoContent)
}
