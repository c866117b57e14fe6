package response

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/conduit/core/protocol"
)

// StopReason is the signal accompanying a structured reply indicating whether
// the counterpart wants to invoke tools or has produced a final answer.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// SegmentType tags the shape of one content segment.
type SegmentType string

const (
	SegmentText    SegmentType = "text"
	SegmentToolUse SegmentType = "tool_use"
)

// Segment is one element of a turn's content array. Type selects which fields
// are meaningful: Text for SegmentText; ID, Name, and Input for SegmentToolUse.
// Consumers must switch on Type rather than sniff field presence.
type Segment struct {
	Type  SegmentType     `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// TokenUsage reports token accounting for one counterpart request.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Turn is the structured result of one counterpart request: an ordered content
// array plus the stop reason that tells the orchestrator how to proceed.
type Turn struct {
	Role       protocol.Role `json:"role"`
	StopReason StopReason    `json:"stop_reason"`
	Content    []Segment     `json:"content"`
	Usage      *TokenUsage   `json:"usage,omitempty"`
}

// Text concatenates the turn's text segments in order.
func (t *Turn) Text() string {
	var b strings.Builder
	for _, seg := range t.Content {
		if seg.Type == SegmentText {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// ToolCalls extracts the turn's tool-use segments as protocol tool calls,
// preserving order.
func (t *Turn) ToolCalls() []protocol.ToolCall {
	var calls []protocol.ToolCall
	for _, seg := range t.Content {
		if seg.Type == SegmentToolUse {
			calls = append(calls, protocol.ToolCall{
				ID:        seg.ID,
				Name:      seg.Name,
				Arguments: string(seg.Input),
			})
		}
	}
	return calls
}

// Validate checks that every segment carries a recognized type and the fields
// that type requires.
func (t *Turn) Validate() error {
	for i, seg := range t.Content {
		switch seg.Type {
		case SegmentText:
			// Empty text is legal; some counterparts emit empty leading segments.
		case SegmentToolUse:
			if seg.ID == "" || seg.Name == "" {
				return fmt.Errorf("segment %d: tool_use requires id and name", i)
			}
		default:
			return fmt.Errorf("segment %d: unknown type %q", i, seg.Type)
		}
	}
	return nil
}

// ParseTurn decodes and validates a turn from JSON bytes.
func ParseTurn(body []byte) (*Turn, error) {
	var turn Turn
	if err := json.Unmarshal(body, &turn); err != nil {
		return nil, fmt.Errorf("failed to parse turn: %w", err)
	}
	if err := turn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid turn: %w", err)
	}
	return &turn, nil
}
