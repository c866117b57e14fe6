package agent

import (
	"context"
	"sync"

	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/core/response"
)

// ScriptedAgent answers successive Respond calls from a fixed script of
// turns, recording every request it receives. Safe for concurrent use.
type ScriptedAgent struct {
	mu       sync.Mutex
	turns    []*response.Turn
	requests []protocol.CreateMessageParams
	caps     protocol.ClientCapabilities
}

// ScriptedOption configures a ScriptedAgent.
type ScriptedOption func(*ScriptedAgent)

// WithCapabilities overrides the default all-capable declaration.
func WithCapabilities(caps protocol.ClientCapabilities) ScriptedOption {
	return func(a *ScriptedAgent) { a.caps = caps }
}

// NewScriptedAgent creates an agent that plays back turns in order.
func NewScriptedAgent(turns []*response.Turn, opts ...ScriptedOption) *ScriptedAgent {
	a := &ScriptedAgent{
		turns: turns,
		caps:  protocol.ClientCapabilities{Sampling: true, Tools: true},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ScriptedAgent) Respond(ctx context.Context, req protocol.CreateMessageParams) (*response.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, req)
	if len(a.requests) > len(a.turns) {
		return nil, ErrNoTurns
	}
	return a.turns[len(a.requests)-1], nil
}

func (a *ScriptedAgent) Capabilities() protocol.ClientCapabilities {
	return a.caps
}

// Requests returns a copy of the requests received so far, in order.
func (a *ScriptedAgent) Requests() []protocol.CreateMessageParams {
	a.mu.Lock()
	defer a.mu.Unlock()

	copied := make([]protocol.CreateMessageParams, len(a.requests))
	copy(copied, a.requests)
	return copied
}
