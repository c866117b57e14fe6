package conversation

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/conduit/core/protocol"
)

type memoryConversation struct {
	id       string
	messages []protocol.Message
	mu       sync.RWMutex
}

// newMemoryConversation creates a Conversation backed by an in-memory slice.
// The run is assigned a unique UUIDv7 identifier.
func newMemoryConversation() *memoryConversation {
	return &memoryConversation{
		id: uuid.Must(uuid.NewV7()).String(),
	}
}

func (c *memoryConversation) ID() string {
	return c.id
}

func (c *memoryConversation) Append(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *memoryConversation) Messages() []protocol.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	copied := make([]protocol.Message, len(c.messages))
	for i, msg := range c.messages {
		copied[i] = msg
		copied[i].ToolCalls = slices.Clone(msg.ToolCalls)
		copied[i].ToolResults = slices.Clone(msg.ToolResults)
	}
	return copied
}

func (c *memoryConversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
