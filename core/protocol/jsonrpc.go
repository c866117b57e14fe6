package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is the wire envelope for every message exchanged over a transport
// session. It covers requests (ID and Method set), notifications (Method set,
// ID absent), and responses (ID set with Result or Error).
type Frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// RequestID uniquely identifies a request within one session. The wire format
// permits either a string or an integer.
type RequestID struct {
	value any
}

// NewRequestID wraps a string or integer identifier.
func NewRequestID(v any) RequestID {
	return RequestID{value: v}
}

// Value returns the underlying string or integer.
func (id RequestID) Value() any { return id.value }

// String renders the identifier for logging and map keys.
func (id RequestID) String() string {
	return fmt.Sprintf("%v", id.value)
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.value = s
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		id.value = n
		return nil
	}
	return fmt.Errorf("request id must be a string or integer: %s", data)
}

// ErrorObject carries the error details of a failed request.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC error codes used across the transports.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603

	// Server-defined codes (-32000 to -32099).
	ErrCodeUnknownSession     = -32001
	ErrCodeSessionTerminated  = -32002
	ErrCodeCapabilityMismatch = -32003
	ErrCodeShuttingDown       = -32004
	ErrCodeRequestTimeout     = -32005
	ErrCodeSessionLimit       = -32006
)

// IsRequest reports whether the frame expects a response.
func (f *Frame) IsRequest() bool {
	return f.Method != "" && f.ID != nil
}

// IsNotification reports whether the frame is a fire-and-forget notification.
func (f *Frame) IsNotification() bool {
	return f.Method != "" && f.ID == nil
}

// IsResponse reports whether the frame answers a previously issued request.
func (f *Frame) IsResponse() bool {
	return f.Method == "" && f.ID != nil
}

// NewRequest creates a request frame with marshaled params. Marshaling params
// is the caller's configuration error, so failures panic rather than return.
func NewRequest(id RequestID, method string, params any) *Frame {
	return &Frame{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
		Params:  mustMarshal(params),
	}
}

// NewNotification creates a notification frame with marshaled params.
func NewNotification(method string, params any) *Frame {
	return &Frame{
		JSONRPC: "2.0",
		Method:  method,
		Params:  mustMarshal(params),
	}
}

// NewResponse creates a success response frame for the given request ID.
func NewResponse(id RequestID, result any) *Frame {
	return &Frame{
		JSONRPC: "2.0",
		ID:      &id,
		Result:  mustMarshal(result),
	}
}

// NewErrorResponse creates an error response frame. A nil id produces the
// null-id form used when the triggering request could not be parsed.
func NewErrorResponse(id *RequestID, code int, message string) *Frame {
	return &Frame{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: message},
	}
}

func mustMarshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal %T: %v", v, err))
	}
	return data
}
