package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/conduit/core/protocol"
	"github.com/tailored-agentic-units/conduit/tools"
)

func testTool(name string) protocol.Tool {
	return protocol.Tool{
		Name:        name,
		Description: "test tool: " + name,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{"type": "string"},
			},
		},
	}
}

func echoHandler(_ context.Context, args json.RawMessage) (tools.Result, error) {
	return tools.Result{Content: string(args)}, nil
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		tool    protocol.Tool
		wantErr error
	}{
		{
			name: "valid tool",
			tool: testTool("register_valid"),
		},
		{
			name:    "empty name",
			tool:    protocol.Tool{Name: ""},
			wantErr: tools.ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tools.Register(tt.tool, echoHandler)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Register() unexpected error: %v", err)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	tool := testTool("register_duplicate")

	if err := tools.Register(tool, echoHandler); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}

	err := tools.Register(tool, echoHandler)
	if !errors.Is(err, tools.ErrAlreadyExists) {
		t.Errorf("second Register() error = %v, want %v", err, tools.ErrAlreadyExists)
	}
}

func TestReplace(t *testing.T) {
	tool := testTool("replace_existing")

	if err := tools.Register(tool, echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	replacementHandler := func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		return tools.Result{Content: "replaced"}, nil
	}

	if err := tools.Replace(tool, replacementHandler); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	result, err := tools.Execute(context.Background(), "replace_existing", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() after Replace() failed: %v", err)
	}
	if result.Content != "replaced" {
		t.Errorf("Execute() content = %q, want %q", result.Content, "replaced")
	}
}

func TestReplace_NotFound(t *testing.T) {
	err := tools.Replace(testTool("replace_nonexistent"), echoHandler)
	if !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("Replace() error = %v, want %v", err, tools.ErrNotFound)
	}
}

func TestGet(t *testing.T) {
	if err := tools.Register(testTool("get_existing"), echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler, exists := tools.Get("get_existing")
	if !exists {
		t.Fatal("Get() returned exists=false, want true")
	}
	if handler == nil {
		t.Fatal("Get() returned nil handler")
	}
}

func TestGet_NotFound(t *testing.T) {
	_, exists := tools.Get("get_nonexistent")
	if exists {
		t.Error("Get() returned exists=true for nonexistent tool")
	}
}

func TestList(t *testing.T) {
	tools.Register(testTool("list_tool_1"), echoHandler)
	tools.Register(testTool("list_tool_2"), echoHandler)

	list := tools.List()

	found1, found2 := false, false
	for _, tool := range list {
		if tool.Name == "list_tool_1" {
			found1 = true
		}
		if tool.Name == "list_tool_2" {
			found2 = true
		}
	}

	if !found1 {
		t.Error("List() missing list_tool_1")
	}
	if !found2 {
		t.Error("List() missing list_tool_2")
	}
}

func TestExecute(t *testing.T) {
	handler := func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		var params struct {
			Input string `json:"input"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return tools.Result{}, err
		}
		return tools.Result{Content: "echo: " + params.Input}, nil
	}

	if err := tools.Register(testTool("execute_valid"), handler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	result, err := tools.Execute(
		context.Background(),
		"execute_valid",
		json.RawMessage(`{"input":"hello"}`),
	)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if result.Content != "echo: hello" {
		t.Errorf("Execute() content = %q, want %q", result.Content, "echo: hello")
	}
	if result.IsError {
		t.Error("Execute() IsError = true, want false")
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	result, err := tools.Execute(context.Background(), "execute_nonexistent", nil)
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("Execute() IsError = false, want true for unknown tool")
	}
	if result.Content != "unknown tool: execute_nonexistent" {
		t.Errorf("Execute() content = %q, want %q", result.Content, "unknown tool: execute_nonexistent")
	}
}

func TestExecute_HandlerError(t *testing.T) {
	handler := func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		return tools.Result{}, errors.New("handler failed")
	}

	if err := tools.Register(testTool("execute_error"), handler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	result, err := tools.Execute(context.Background(), "execute_error", nil)
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("Execute() IsError = false, want true for handler error")
	}
	if !strings.HasPrefix(result.Content, "error:") {
		t.Errorf("Execute() content = %q, want error marker prefix", result.Content)
	}
}

func TestExecute_RespectsContext(t *testing.T) {
	if err := tools.Register(testTool("execute_ctx"), echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tools.Execute(ctx, "execute_ctx", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
