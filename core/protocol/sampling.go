package protocol

// CreateMessageParams is the body of a sampling/createMessage request issued
// by the server to a connected counterpart. Tools and ToolChoice are omitted
// entirely on a tool-free request; the counterpart must then answer with a
// terminal text turn.
type CreateMessageParams struct {
	System     string     `json:"system,omitempty"`
	Messages   []Message  `json:"messages"`
	Tools      []Tool     `json:"tools,omitempty"`
	ToolChoice ToolChoice `json:"tool_choice,omitempty"`
	MaxTokens  int        `json:"max_tokens,omitempty"`
}
