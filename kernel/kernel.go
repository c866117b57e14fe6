// Package kernel implements the agent loop orchestrator: the iterative
// request/respond/tool-execute cycle driven against a conversational
// counterpart, with bounded iteration and a forced tool-free final round.
//
// The kernel is transport-agnostic. It consumes the agent.Agent contract
// ("send request, await structured result") and can run over any session
// variant that satisfies it.
//
//	k := kernel.New(counterpart, kernel.DefaultConfig())
//	result, err := k.Run(ctx, kernel.RunRequest{Prompt: "What's 2+2?"})
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tailored-agentic-units/conduit/agent"
	"github.com/tailored-agentic-units/conduit/conversation"
	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/core/response"
	"github.com/tailored-agentic-units/conduit/observability"
	"github.com/tailored-agentic-units/conduit/tools"
)

// RunRequest carries the caller's parameters for one orchestration run.
type RunRequest struct {
	Prompt        string              `json:"prompt"`
	SystemPrompt  string              `json:"system_prompt,omitempty"`
	IncludeTools  bool                `json:"include_tools,omitempty"`
	ToolChoice    protocol.ToolChoice `json:"tool_choice,omitempty"`
	MaxTokens     int                 `json:"max_tokens,omitempty"`
	MaxIterations int                 `json:"max_iterations,omitempty"`
}

// Result holds the outcome of a kernel Run invocation. LimitReached marks the
// graceful iteration-limit outcome: the budget was exhausted before a
// terminal text answer, and Rounds carries whatever partial conversation
// occurred. It is a reportable result, not an error.
type Result struct {
	Response     string      `json:"response"`
	Iterations   int         `json:"iterations"`
	LimitReached bool        `json:"limit_reached,omitempty"`
	Rounds       []Round     `json:"rounds"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Round is the per-iteration bookkeeping retained for the final report.
type Round struct {
	Iteration  int                 `json:"iteration"`
	StopReason response.StopReason `json:"stop_reason"`
	Text       string              `json:"text,omitempty"`
	ToolCalls  []ToolCallRecord    `json:"tool_calls,omitempty"`
}

// ToolCallRecord logs one tool invocation and its result.
type ToolCallRecord struct {
	protocol.ToolCall
	Result  string `json:"result"`
	IsError bool   `json:"is_error,omitempty"`
}

// TokenUsage accumulates counterpart token accounting across rounds.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolExecutor abstracts tool listing and execution for testability.
// The default implementation delegates to the global tools package.
type ToolExecutor interface {
	List() []protocol.Tool
	Execute(ctx context.Context, name string, args json.RawMessage) (tools.Result, error)
}

type globalToolExecutor struct{}

func (globalToolExecutor) List() []protocol.Tool {
	return tools.List()
}

func (globalToolExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (tools.Result, error) {
	return tools.Execute(ctx, name, args)
}

// Option configures a Kernel after config-driven initialization.
type Option func(*Kernel)

// WithToolExecutor overrides the default global tool executor.
func WithToolExecutor(e ToolExecutor) Option {
	return func(k *Kernel) { k.tools = e }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// Kernel drives the orchestration loop against one counterpart.
type Kernel struct {
	agent    agent.Agent
	tools    ToolExecutor
	observer observability.Observer
	cfg      Config
}

// New creates a Kernel talking to the given counterpart. Functional options
// can override the tool executor and observer for testing.
func New(a agent.Agent, cfg Config, opts ...Option) *Kernel {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	k := &Kernel{
		agent:    a,
		tools:    globalToolExecutor{},
		observer: observability.NewSlogObserver(slog.Default()),
		cfg:      defaults,
	}

	for _, opt := range opts {
		opt(k)
	}

	return k
}

// Run executes the orchestration loop for the given request.
//
// Each iteration issues one structured request carrying the full conversation
// so far. A tool-use reply has its invocations executed concurrently, their
// results appended as one combined message, and the loop continues. A text
// reply terminates the loop. The final allowed iteration forces a tool-free
// request so the counterpart must produce a terminal answer; an exhausted
// budget is reported via Result.LimitReached, not an error.
//
// Run fails fast with ErrCapabilityMismatch when tools are requested but the
// counterpart never declared tool support; no request is sent in that case.
func (k *Kernel) Run(ctx context.Context, req RunRequest) (*Result, error) {
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = k.cfg.MaxIterations
	}
	toolChoice := req.ToolChoice
	if toolChoice == "" {
		toolChoice = protocol.ToolChoiceAuto
	}
	if !toolChoice.IsValid() {
		return nil, fmt.Errorf("invalid tool choice %q", toolChoice)
	}

	if req.IncludeTools {
		caps := k.agent.Capabilities()
		if !caps.Sampling || !caps.Tools {
			return nil, fmt.Errorf("%w: counterpart capabilities %+v", ErrCapabilityMismatch, caps)
		}
	}

	conv := conversation.New()
	conv.Append(protocol.NewMessage(protocol.RoleUser, req.Prompt))

	result := &Result{}

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventRunStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "kernel.Run",
		Data: map[string]any{
			"run_id":         conv.ID(),
			"prompt_length":  len(req.Prompt),
			"max_iterations": maxIterations,
			"include_tools":  req.IncludeTools,
		},
	})

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		finalRound := iteration == maxIterations-1

		k.observer.OnEvent(ctx, observability.Event{
			Type:      EventIterationStart,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    "kernel.Run",
			Data: map[string]any{
				"run_id":    conv.ID(),
				"iteration": iteration + 1,
				"final":     finalRound,
			},
		})

		params := protocol.CreateMessageParams{
			System:    req.SystemPrompt,
			Messages:  conv.Messages(),
			MaxTokens: req.MaxTokens,
		}
		// The last allowed round offers no tools and no tool-choice
		// directive so the counterpart must answer with terminal text.
		if req.IncludeTools && !finalRound {
			params.Tools = k.tools.List()
			params.ToolChoice = toolChoice
		}

		// One deadline spans the whole iteration: the counterpart request
		// and any tool execution the reply triggers.
		iterCtx := ctx
		cancel := context.CancelFunc(func() {})
		if k.cfg.IterationTimeout > 0 {
			iterCtx, cancel = context.WithTimeout(ctx, k.cfg.IterationTimeout)
		}

		turn, err := k.agent.Respond(iterCtx, params)
		if err != nil {
			cancel()
			return result, fmt.Errorf("counterpart call failed on iteration %d: %w", iteration+1, err)
		}

		if turn.Usage != nil {
			if result.Usage == nil {
				result.Usage = &TokenUsage{}
			}
			result.Usage.InputTokens += turn.Usage.InputTokens
			result.Usage.OutputTokens += turn.Usage.OutputTokens
		}

		round := Round{
			Iteration:  iteration + 1,
			StopReason: turn.StopReason,
			Text:       turn.Text(),
		}

		calls := turn.ToolCalls()
		if turn.StopReason != response.StopToolUse || len(calls) == 0 {
			cancel()
			// A tool-use stop with zero invocations degenerates to a
			// terminal text response.
			conv.Append(protocol.Message{
				Role:    protocol.RoleAssistant,
				Content: round.Text,
			})
			result.Rounds = append(result.Rounds, round)
			result.Response = round.Text
			result.Iterations = iteration + 1

			k.observer.OnEvent(ctx, observability.Event{
				Type:      EventResponse,
				Level:     observability.LevelInfo,
				Timestamp: time.Now(),
				Source:    "kernel.Run",
				Data: map[string]any{
					"run_id":          conv.ID(),
					"iteration":       iteration + 1,
					"response_length": len(result.Response),
				},
			})

			return result, nil
		}

		conv.Append(protocol.Message{
			Role:      protocol.RoleAssistant,
			Content:   round.Text,
			ToolCalls: calls,
		})

		records := k.executeAll(iterCtx, conv.ID(), iteration+1, calls)
		cancel()
		round.ToolCalls = records
		result.Rounds = append(result.Rounds, round)

		toolResults := make([]protocol.ToolResult, len(records))
		for i, rec := range records {
			toolResults[i] = protocol.ToolResult{
				ToolCallID: rec.ID,
				Content:    rec.Result,
				IsError:    rec.IsError,
			}
		}
		conv.Append(protocol.Message{
			Role:        protocol.RoleUser,
			ToolResults: toolResults,
		})

		result.Iterations = iteration + 1
	}

	result.LimitReached = true

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventIterationLimit,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "kernel.Run",
		Data: map[string]any{
			"run_id":     conv.ID(),
			"iterations": maxIterations,
		},
	})

	return result, nil
}

// executeAll runs every invocation of one turn concurrently and joins on all
// of them. Results land at the invocation's own index, so no invocation
// observes another's result and order is preserved for the combined message.
func (k *Kernel) executeAll(ctx context.Context, runID string, iteration int, calls []protocol.ToolCall) []ToolCallRecord {
	records := make([]ToolCallRecord, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, tc := range calls {
		go func(i int, tc protocol.ToolCall) {
			defer wg.Done()

			k.observer.OnEvent(ctx, observability.Event{
				Type:      EventToolCall,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "kernel.Run",
				Data: map[string]any{
					"run_id":    runID,
					"iteration": iteration,
					"name":      tc.Name,
				},
			})

			record := ToolCallRecord{ToolCall: tc}

			result, err := k.tools.Execute(ctx, tc.Name, json.RawMessage(tc.Arguments))
			if err != nil {
				record.Result = fmt.Sprintf("error: %s", err)
				record.IsError = true
			} else {
				record.Result = result.Content
				record.IsError = result.IsError
			}

			k.observer.OnEvent(ctx, observability.Event{
				Type:      EventToolComplete,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "kernel.Run",
				Data: map[string]any{
					"run_id":    runID,
					"iteration": iteration,
					"name":      tc.Name,
					"error":     record.IsError,
				},
			})

			records[i] = record
		}(i, tc)
	}
	wg.Wait()

	return records
}
