package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/observability"
)

// SSEHandler serves the push-only transport. A GET on the stream endpoint
// creates the session and announces the message endpoint in-band as the first
// stream event; the client then POSTs frames to that endpoint and receives
// every server-to-client frame over the open stream. There is no replay: a
// dropped stream terminates the session and the client starts over.
type SSEHandler struct {
	registry    *Registry
	dispatch    Dispatcher
	observer    observability.Observer
	keepalive   time.Duration
	messagePath string
}

// SSEOption configures an SSEHandler.
type SSEOption func(*SSEHandler)

// WithSSEObserver sets the observer for session lifecycle events.
func WithSSEObserver(o observability.Observer) SSEOption {
	return func(h *SSEHandler) { h.observer = o }
}

// WithSSEKeepalive sets the interval between keepalive comments on an idle
// stream. Zero disables them.
func WithSSEKeepalive(d time.Duration) SSEOption {
	return func(h *SSEHandler) { h.keepalive = d }
}

// NewSSEHandler creates the push-only transport handler. messagePath is the
// path announced to clients for posting frames.
func NewSSEHandler(registry *Registry, dispatch Dispatcher, messagePath string, opts ...SSEOption) *SSEHandler {
	h := &SSEHandler{
		registry:    registry,
		dispatch:    dispatch,
		observer:    observability.NoOpObserver{},
		keepalive:   30 * time.Second,
		messagePath: messagePath,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleStream serves the GET stream endpoint.
func (h *SSEHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := h.registry.Create(KindPush)
	if err := sess.Activate(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.registry.Attach(sess); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrSessionLimit) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	_, _, live, err := sess.Subscribe(0)
	if err != nil {
		h.registry.Remove(sess.ID())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sseHeaders(w)
	w.WriteHeader(http.StatusOK)

	// The first event tells the client where to post its frames. The session
	// identifier travels in the announced URL rather than a header.
	if err := writeEndpointEvent(w, h.messagePath, sess.ID()); err != nil {
		h.teardown(r.Context(), sess)
		return
	}
	flusher.Flush()

	h.observer.OnEvent(r.Context(), observability.Event{
		Type:      EventSessionCreated,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "transport.sse",
		Data:      map[string]any{"session_id": sess.ID(), "kind": string(KindPush)},
	})

	h.pump(r.Context(), w, flusher, sess, live)
	h.teardown(r.Context(), sess)
}

func (h *SSEHandler) pump(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sess *Session, live <-chan Event) {
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
			return
		case <-keepalive:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case e, ok := <-live:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// teardown ends a push session once its stream is gone. Unlike the resumable
// transport, there is nothing to reconnect to.
func (h *SSEHandler) teardown(ctx context.Context, sess *Session) {
	sess.Terminate()
	h.registry.Remove(sess.ID())
	h.observer.OnEvent(ctx, observability.Event{
		Type:      EventSessionTerminated,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "transport.sse",
		Data:      map[string]any{"session_id": sess.ID(), "reason": "stream closed"},
	})
}

// HandleMessage serves the POST message endpoint. Responses to
// server-initiated calls are routed to their waiting caller; requests are
// dispatched and answered over the live stream, never in the POST body.
func (h *SSEHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeProtocolError(w, nil, protocol.ErrCodeInvalidRequest, "missing sessionId parameter")
		return
	}
	sess, ok := h.registry.Lookup(sessionID)
	if !ok {
		writeProtocolError(w, nil, protocol.ErrCodeUnknownSession, "unknown session "+sessionID)
		return
	}

	frame, err := decodeFrame(r)
	if err != nil {
		writeProtocolError(w, nil, protocol.ErrCodeParseError, err.Error())
		return
	}
	sess.Touch()

	switch {
	case frame.IsResponse():
		sess.HandleResponse(frame)
		w.WriteHeader(http.StatusAccepted)

	case frame.IsNotification():
		h.dispatch.Dispatch(r.Context(), sess, frame)
		w.WriteHeader(http.StatusAccepted)

	case frame.IsRequest():
		resp := h.dispatch.Dispatch(r.Context(), sess, frame)
		if resp != nil {
			if err := sess.Send(resp); err != nil {
				writeProtocolError(w, frame.ID, protocol.ErrCodeSessionTerminated, err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		writeProtocolError(w, frame.ID, protocol.ErrCodeInvalidRequest, "frame is neither request, notification, nor response")
	}
}
