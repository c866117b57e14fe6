package protocol

// Role identifies the originator of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation embedded in an assistant message. The ID is
// unique within one orchestration turn and correlates the invocation with the
// tool result message that answers it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult answers one tool invocation. ToolCallID correlates the result
// with the ToolCall that requested it; IsError marks a textual error result.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message is a single entry in a conversation. Exactly one of the content
// shapes is meaningful for a given role: plain text for system/user/assistant
// messages, ToolCalls on an assistant message requesting invocations, and
// ToolResults on the user message that answers a batch of invocations in one
// combined entry.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// NewMessage creates a Message with the given role and text content.
// Use struct literals directly when setting tool call fields.
//
// Example:
//
//	msg := protocol.NewMessage(protocol.RoleUser, "Hello, world!")
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}
