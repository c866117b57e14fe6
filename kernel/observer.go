package kernel

import "github.com/tailored-agentic-units/conduit/observability"

// Kernel event types emitted during the orchestration loop.
const (
	EventRunStart       observability.EventType = "kernel.run.start"
	EventIterationStart observability.EventType = "kernel.iteration.start"
	EventToolCall       observability.EventType = "kernel.tool.call"
	EventToolComplete   observability.EventType = "kernel.tool.complete"
	EventResponse       observability.EventType = "kernel.response"
	EventIterationLimit observability.EventType = "kernel.iteration.limit"
)
