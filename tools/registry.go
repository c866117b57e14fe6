// Package tools implements the capability-dispatch executor: a global
// registry mapping tool names to handlers, plus the builtin tools served to
// counterparts. Execute never fails an orchestration turn: unknown names and
// handler errors both come back as textual results so every invocation yields
// exactly one result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/conduit/core/protocol"
)

// Handler is the function signature for tool implementations.
// Handlers receive the request context and JSON-encoded arguments.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Result is the tool execution output that feeds back into the next
// conversation turn. IsError signals to the counterpart that the invocation
// failed; the textual Content is still delivered as the invocation's result.
type Result struct {
	Content string
	IsError bool
}

type entry struct {
	tool    protocol.Tool
	handler Handler
}

type registry struct {
	entries map[string]entry
	mu      sync.RWMutex
}

var register = &registry{
	entries: make(map[string]entry),
}

// Register adds a new tool to the global registry.
// Returns ErrAlreadyExists if a tool with the same name is already registered.
// Use Replace to update an existing tool's handler.
// Thread-safe for concurrent registration.
func Register(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	register.mu.Lock()
	defer register.mu.Unlock()

	if _, exists := register.entries[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, tool.Name)
	}

	register.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Replace updates an existing tool's definition and handler.
// Returns ErrNotFound if no tool with the given name is registered.
// Thread-safe for concurrent access.
func Replace(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	register.mu.Lock()
	defer register.mu.Unlock()

	if _, exists := register.entries[tool.Name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, tool.Name)
	}

	register.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Get retrieves a handler by tool name.
// Returns the handler and true if found, nil and false otherwise.
// Thread-safe for concurrent access.
func Get(name string) (Handler, bool) {
	register.mu.RLock()
	defer register.mu.RUnlock()

	e, exists := register.entries[name]
	if !exists {
		return nil, false
	}
	return e.handler, true
}

// List returns the definitions of all registered tools.
// Thread-safe for concurrent access.
func List() []protocol.Tool {
	register.mu.RLock()
	defer register.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(register.entries))
	for _, e := range register.entries {
		tools = append(tools, e.tool)
	}
	return tools
}

// Execute dispatches a tool call to the registered handler by name.
// An unknown name yields a deterministic "unknown tool" result, and a handler
// error yields an "error:" result; neither is reported as a Go error, keeping
// the orchestration loop's one-result-per-invocation contract intact. The
// returned error is reserved for context cancellation.
// Thread-safe for concurrent execution.
func Execute(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	register.mu.RLock()
	e, exists := register.entries[name]
	register.mu.RUnlock()

	if !exists {
		return Result{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		return Result{Content: fmt.Sprintf("error: %s", err), IsError: true}, nil
	}

	return result, nil
}
