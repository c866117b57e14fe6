// Package agent abstracts the conversational counterpart the kernel talks
// to: something that accepts a structured request carrying the conversation
// so far and answers with a structured turn. The production implementation
// rides a live transport session; ScriptedAgent serves tests and demos.
package agent

import (
	"context"
	"errors"

	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/core/response"
)

// ErrNoTurns is returned by ScriptedAgent when its script is exhausted.
var ErrNoTurns = errors.New("no more scripted turns")

// Agent is the counterpart contract consumed by the kernel. Respond blocks
// until the counterpart produces a turn or ctx expires; it must not be
// invoked concurrently for the same orchestration run.
type Agent interface {
	// Respond issues one structured request and awaits the structured result.
	Respond(ctx context.Context, req protocol.CreateMessageParams) (*response.Turn, error)

	// Capabilities reports what the counterpart declared it supports.
	Capabilities() protocol.ClientCapabilities
}
