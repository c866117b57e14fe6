package transport

import "github.com/tailored-agentic-units/conduit/observability"

// Transport event types emitted across the session lifecycle.
const (
	EventSessionCreated    observability.EventType = "transport.session.created"
	EventSessionTerminated observability.EventType = "transport.session.terminated"
	EventStreamConnected   observability.EventType = "transport.stream.connected"
	EventStreamClosed      observability.EventType = "transport.stream.closed"
	EventReplayGap         observability.EventType = "transport.replay.gap"
)
