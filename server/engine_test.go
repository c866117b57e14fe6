package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/core/response"
	"github.com/tailored-agentic-units/conduit/kernel"
	"github.com/tailored-agentic-units/conduit/tools"
	"github.com/tailored-agentic-units/conduit/transport"
)

func init() {
	if err := tools.RegisterBuiltins(); err != nil {
		panic(err)
	}
}

func newTestEngine() *Engine {
	cfg := DefaultConfig()
	cfg.Kernel.MaxIterations = 4
	return NewEngine(cfg)
}

func newEngineSession(t *testing.T) *transport.Session {
	t.Helper()
	reg := transport.NewRegistry(transport.RegistryConfig{EventRetention: 64, CallTimeout: time.Second})
	sess := reg.Create(transport.KindResumable)
	require.NoError(t, sess.Activate())
	return sess
}

func dispatchRequest(t *testing.T, e *Engine, sess *transport.Session, method string, params any) *protocol.Frame {
	t.Helper()
	resp := e.Dispatch(context.Background(), sess, protocol.NewRequest(protocol.NewRequestID(1), method, params))
	require.NotNil(t, resp)
	return resp
}

func TestEngineInitialize(t *testing.T) {
	e := newTestEngine()
	sess := newEngineSession(t)

	resp := dispatchRequest(t, e, sess, protocol.MethodInitialize, protocol.InitializeParams{
		ClientName:   "test-client",
		Capabilities: protocol.ClientCapabilities{Sampling: true, Tools: true},
	})
	require.Nil(t, resp.Error)

	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, sess.ID(), result.SessionID)
	assert.Equal(t, Version, result.ServerVersion)
	assert.True(t, result.Capabilities.Orchestration)

	// Declared capabilities stick to the session.
	assert.True(t, sess.Capabilities().Sampling)
	assert.True(t, sess.Capabilities().Tools)
}

func TestEnginePing(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodPing, nil)
	assert.Nil(t, resp.Error)
}

func TestEngineCapabilities(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodCapabilities, nil)
	require.Nil(t, resp.Error)

	var caps protocol.ServerCapabilities
	require.NoError(t, json.Unmarshal(resp.Result, &caps))
	assert.True(t, caps.Tools)
	assert.True(t, caps.Resumable)
}

func TestEngineToolsList(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodToolsList, nil)
	require.Nil(t, resp.Error)

	var result toolsListResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	assert.True(t, names["calculate"])
	assert.True(t, names["get_weather"])
}

func TestEngineToolsCall(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodToolsCall, toolsCallParams{
		Name:      "calculate",
		Arguments: json.RawMessage(`{"expression":"6*7"}`),
	})
	require.Nil(t, resp.Error)

	var result toolsCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.False(t, result.IsError)
	assert.Equal(t, "42", result.Content)
}

func TestEngineToolsCallUnknownTool(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodToolsCall, toolsCallParams{
		Name: "no_such_tool",
	})
	require.Nil(t, resp.Error, "unknown tools are error results, not protocol errors")

	var result toolsCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown tool")
}

func TestEngineToolsCallMissingName(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodToolsCall, toolsCallParams{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeInvalidParams, resp.Error.Code)
}

func TestEngineMethodNotFound(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), "no/such/method", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeMethodNotFound, resp.Error.Code)
}

func TestEngineNotificationsProduceNoResponse(t *testing.T) {
	e := newTestEngine()
	resp := e.Dispatch(context.Background(), newEngineSession(t), protocol.NewNotification(protocol.MethodNotifInitialized, nil))
	assert.Nil(t, resp)
}

func TestEngineDrainRejectsRequests(t *testing.T) {
	e := newTestEngine()
	e.Drain()

	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodPing, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeShuttingDown, resp.Error.Code)
}

func TestEngineOrchestrateRunCapabilityMismatch(t *testing.T) {
	e := newTestEngine()
	sess := newEngineSession(t)
	// No declared sampling or tools support.

	resp := dispatchRequest(t, e, sess, protocol.MethodOrchestrateRun, kernel.RunRequest{
		Prompt:       "hello",
		IncludeTools: true,
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeCapabilityMismatch, resp.Error.Code)
}

func TestEngineOrchestrateRunInvalidToolChoice(t *testing.T) {
	e := newTestEngine()
	resp := dispatchRequest(t, e, newEngineSession(t), protocol.MethodOrchestrateRun, kernel.RunRequest{
		Prompt:     "hello",
		ToolChoice: "sometimes",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeInvalidParams, resp.Error.Code)
}

// counterpartLoop plays the connected client: it subscribes to the session's
// stream and answers every sampling/createMessage request with the next
// scripted turn.
func counterpartLoop(t *testing.T, sess *transport.Session, turns []*response.Turn) {
	t.Helper()
	_, _, live, err := sess.Subscribe(0)
	require.NoError(t, err)

	go func() {
		i := 0
		for e := range live {
			var frame protocol.Frame
			if json.Unmarshal(e.Payload, &frame) != nil || !frame.IsRequest() {
				continue
			}
			if frame.Method != protocol.MethodCreateMessage || i >= len(turns) {
				sess.HandleResponse(protocol.NewErrorResponse(frame.ID, protocol.ErrCodeInternalError, "unexpected request"))
				continue
			}
			sess.HandleResponse(protocol.NewResponse(*frame.ID, turns[i]))
			i++
		}
	}()
}

func TestEngineOrchestrateRunEndToEnd(t *testing.T) {
	e := newTestEngine()
	sess := newEngineSession(t)
	sess.SetCapabilities(protocol.ClientCapabilities{Sampling: true, Tools: true})

	counterpartLoop(t, sess, []*response.Turn{
		{
			Role:       protocol.RoleAssistant,
			StopReason: response.StopToolUse,
			Content: []response.Segment{
				{Type: response.SegmentToolUse, ID: "c1", Name: "calculate", Input: json.RawMessage(`{"expression":"2+2"}`)},
			},
		},
		{
			Role:       protocol.RoleAssistant,
			StopReason: response.StopEndTurn,
			Content: []response.Segment{
				{Type: response.SegmentText, Text: "The answer is 4."},
			},
		},
	})

	resp := dispatchRequest(t, e, sess, protocol.MethodOrchestrateRun, kernel.RunRequest{
		Prompt:       "What is 2+2?",
		IncludeTools: true,
	})
	require.Nil(t, resp.Error, "run failed: %v", resp.Error)

	var result kernel.Result
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "The answer is 4.", result.Response)
	assert.Equal(t, 2, result.Iterations)
	assert.False(t, result.LimitReached)
	require.Len(t, result.Rounds, 2)
	require.Len(t, result.Rounds[0].ToolCalls, 1)
	assert.Equal(t, "4", result.Rounds[0].ToolCalls[0].Result)
}
