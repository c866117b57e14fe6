package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/tailored-agentic-units/conduit/agent"
	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/kernel"
	"github.com/tailored-agentic-units/conduit/observability"
	"github.com/tailored-agentic-units/conduit/tools"
	"github.com/tailored-agentic-units/conduit/transport"
)

// Version reported in the initialize handshake.
const Version = "0.1.0"

// Engine executes client-issued frames against the server's subsystems. It
// is the single dispatch point shared by both transport variants: the
// transports own connections and delivery, the engine owns semantics.
type Engine struct {
	cfg      Config
	observer observability.Observer
	logger   *slog.Logger
	draining atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineObserver sets the observer passed down to kernel runs.
func WithEngineObserver(o observability.Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithEngineLogger sets the logger for dispatch diagnostics.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:      cfg,
		observer: observability.NoOpObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Drain makes the engine reject new requests with a shutting-down error.
// In-flight requests are unaffected.
func (e *Engine) Drain() {
	e.draining.Store(true)
}

// Capabilities reports what this server offers.
func (e *Engine) Capabilities() protocol.ServerCapabilities {
	return protocol.ServerCapabilities{
		Tools:         true,
		Orchestration: true,
		Resumable:     true,
	}
}

// Dispatch implements transport.Dispatcher.
func (e *Engine) Dispatch(ctx context.Context, sess *transport.Session, frame *protocol.Frame) *protocol.Frame {
	if frame.IsNotification() {
		e.handleNotification(ctx, sess, frame)
		return nil
	}

	if e.draining.Load() {
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeShuttingDown, "server is shutting down")
	}

	switch frame.Method {
	case protocol.MethodInitialize:
		return e.handleInitialize(sess, frame)
	case protocol.MethodPing:
		return protocol.NewResponse(*frame.ID, struct{}{})
	case protocol.MethodCapabilities:
		return protocol.NewResponse(*frame.ID, e.Capabilities())
	case protocol.MethodToolsList:
		return protocol.NewResponse(*frame.ID, toolsListResult{Tools: tools.List()})
	case protocol.MethodToolsCall:
		return e.handleToolsCall(ctx, frame)
	case protocol.MethodOrchestrateRun:
		return e.handleOrchestrateRun(ctx, sess, frame)
	default:
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeMethodNotFound, "method not found: "+frame.Method)
	}
}

func (e *Engine) handleNotification(ctx context.Context, sess *transport.Session, frame *protocol.Frame) {
	switch frame.Method {
	case protocol.MethodNotifInitialized, protocol.MethodNotifCancelled:
		e.logger.DebugContext(ctx, "notification received",
			"method", frame.Method,
			"session_id", sess.ID())
	default:
		// Unknown notifications are ignored rather than answered; there is
		// no requester to report the error to.
		e.logger.WarnContext(ctx, "unknown notification",
			"method", frame.Method,
			"session_id", sess.ID())
	}
}

func (e *Engine) handleInitialize(sess *transport.Session, frame *protocol.Frame) *protocol.Frame {
	var params protocol.InitializeParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeInvalidParams, "malformed initialize params: "+err.Error())
	}

	sess.SetCapabilities(params.Capabilities)
	return protocol.NewResponse(*frame.ID, protocol.InitializeResult{
		ServerName:    e.cfg.ServerName,
		ServerVersion: Version,
		SessionID:     sess.ID(),
		Capabilities:  e.Capabilities(),
	})
}

type toolsListResult struct {
	Tools []protocol.Tool `json:"tools"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolsCallResult struct {
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

func (e *Engine) handleToolsCall(ctx context.Context, frame *protocol.Frame) *protocol.Frame {
	var params toolsCallParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeInvalidParams, "malformed tools/call params: "+err.Error())
	}
	if params.Name == "" {
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeInvalidParams, "tool name is required")
	}

	result, err := tools.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		// Execution failures surface as error results; only context
		// expiry aborts the request itself.
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeRequestTimeout, err.Error())
	}
	return protocol.NewResponse(*frame.ID, toolsCallResult{Content: result.Content, IsError: result.IsError})
}

func (e *Engine) handleOrchestrateRun(ctx context.Context, sess *transport.Session, frame *protocol.Frame) *protocol.Frame {
	var req kernel.RunRequest
	if err := json.Unmarshal(frame.Params, &req); err != nil {
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeInvalidParams, "malformed orchestrate/run params: "+err.Error())
	}

	if req.ToolChoice != "" && !req.ToolChoice.IsValid() {
		return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeInvalidParams, "invalid tool choice: "+string(req.ToolChoice))
	}

	counterpart := agent.NewSessionAgent(sess, sess.Capabilities())
	k := kernel.New(counterpart, e.cfg.Kernel, kernel.WithObserver(e.observer))

	result, err := k.Run(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, kernel.ErrCapabilityMismatch):
			return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeCapabilityMismatch, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeRequestTimeout, err.Error())
		default:
			return protocol.NewErrorResponse(frame.ID, protocol.ErrCodeInternalError, err.Error())
		}
	}
	return protocol.NewResponse(*frame.ID, result)
}
