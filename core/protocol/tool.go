package protocol

// Tool defines a named capability the counterpart may invoke during a
// conversation. Parameters uses JSON Schema format to describe the input.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice directs how the counterpart selects tools on a request.
type ToolChoice string

const (
	// ToolChoiceAuto lets the counterpart decide whether to invoke tools.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceRequired obliges the counterpart to invoke at least one tool.
	ToolChoiceRequired ToolChoice = "required"
	// ToolChoiceNone forbids tool invocation for the request.
	ToolChoiceNone ToolChoice = "none"
)

// IsValid reports whether tc is one of the recognized tool choice modes.
func (tc ToolChoice) IsValid() bool {
	switch tc {
	case ToolChoiceAuto, ToolChoiceRequired, ToolChoiceNone:
		return true
	}
	return false
}
