package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/core/response"
)

// Caller issues a request over a live transport session and blocks until the
// counterpart's response arrives or ctx expires. Transport sessions satisfy
// this interface.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// SessionAgent adapts a transport session into the kernel's counterpart
// contract: requests travel to the connected client as sampling/createMessage
// frames and the client's responses come back as structured turns.
type SessionAgent struct {
	caller Caller
	caps   protocol.ClientCapabilities
}

// NewSessionAgent wraps a session caller with the capabilities the client
// declared at initialize.
func NewSessionAgent(caller Caller, caps protocol.ClientCapabilities) *SessionAgent {
	return &SessionAgent{caller: caller, caps: caps}
}

func (a *SessionAgent) Respond(ctx context.Context, req protocol.CreateMessageParams) (*response.Turn, error) {
	raw, err := a.caller.Call(ctx, protocol.MethodCreateMessage, req)
	if err != nil {
		return nil, fmt.Errorf("counterpart request failed: %w", err)
	}

	turn, err := response.ParseTurn(raw)
	if err != nil {
		return nil, fmt.Errorf("counterpart returned malformed turn: %w", err)
	}
	return turn, nil
}

func (a *SessionAgent) Capabilities() protocol.ClientCapabilities {
	return a.caps
}
