// Package conversation holds the ordered message history for one
// orchestration run. A Conversation is exclusively owned by the run that
// created it and is discarded when the run ends.
package conversation

import (
	"github.com/tailored-agentic-units/conduit/core/protocol"
)

// Conversation is an append-only, ordered sequence of messages.
// Implementations must be safe for concurrent use.
type Conversation interface {
	// ID returns the unique run identifier.
	ID() string

	// Append adds a message to the history.
	Append(msg protocol.Message)

	// Messages returns a defensive copy of the history.
	Messages() []protocol.Message

	// Len returns the number of messages appended so far.
	Len() int
}

// New creates an in-memory Conversation.
func New() Conversation {
	return newMemoryConversation()
}
