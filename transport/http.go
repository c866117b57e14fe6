package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tailored-agentic-units/conduit/core/protocol"
)

// SessionHeader carries the session identifier on every request after the
// handshake on the resumable transport.
const SessionHeader = "Conduit-Session-Id"

// LastEventIDHeader carries the client's resumption marker when reconnecting
// a resumable stream.
const LastEventIDHeader = "Last-Event-ID"

// Dispatcher executes one client-issued request or notification within a
// session and returns the response frame. Notifications return nil.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *Session, frame *protocol.Frame) *protocol.Frame
}

// writeFrame writes a frame as a JSON response body.
func writeFrame(w http.ResponseWriter, status int, frame *protocol.Frame) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(frame)
}

// writeProtocolError writes a structured JSON-RPC error frame as the HTTP
// response body. Protocol violations are client errors and always map to
// status 400; the body carries the machine-readable code.
func writeProtocolError(w http.ResponseWriter, id *protocol.RequestID, code int, message string) {
	writeFrame(w, http.StatusBadRequest, protocol.NewErrorResponse(id, code, message))
}

// writeSSEEvent writes one stream event in SSE wire framing. A non-zero
// sequence number is emitted as the event id so the client can resume from
// it after a dropped connection.
func writeSSEEvent(w http.ResponseWriter, e Event) error {
	if e.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", e.Seq); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", e.Payload)
	return err
}

// writeGapEvent signals that events between the client's resumption marker
// and the oldest retained entry were evicted. resumeFrom names the first
// sequence number the following replay is contiguous from.
func writeGapEvent(w http.ResponseWriter, replay []Event) error {
	var resumeFrom uint64
	if len(replay) > 0 {
		resumeFrom = replay[0].Seq
	}
	_, err := fmt.Fprintf(w, "event: gap\ndata: {\"resumeFrom\":%d}\n\n", resumeFrom)
	return err
}

// writeEndpointEvent announces the message endpoint as the opening event on
// a push stream.
func writeEndpointEvent(w http.ResponseWriter, path, sessionID string) error {
	_, err := fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", path, sessionID)
	return err
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// decodeFrame parses a request body into a frame, enforcing the protocol
// version marker.
func decodeFrame(r *http.Request) (*protocol.Frame, error) {
	var frame protocol.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		return nil, err
	}
	if frame.JSONRPC != "2.0" {
		return nil, fmt.Errorf("unsupported protocol version %q", frame.JSONRPC)
	}
	return &frame, nil
}
