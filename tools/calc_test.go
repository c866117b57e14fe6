package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestEvalExpression(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"2 + 2", 4},
		{"10-3", 7},
		{"6*7", 42},
		{"9/3", 3},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"-5", -5},
		{"-(2+3)", -5},
		{"2*-3", -6},
		{"3.5*2", 7},
		{"1/4", 0.25},
		{"((1+2)*(3+4))", 21},
		{"  7  ", 7},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpression(tt.expr)
			if err != nil {
				t.Fatalf("evalExpression(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("evalExpression(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalExpression_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"spaces only", "   "},
		{"letters", "two plus two"},
		{"variable", "x+1"},
		{"call syntax", "pow(2,3)"},
		{"trailing operator", "2+"},
		{"unbalanced paren", "(2+3"},
		{"double dot", "1..5"},
		{"division by zero", "1/0"},
		{"semicolon injection", "1;2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evalExpression(tt.expr); err == nil {
				t.Errorf("evalExpression(%q) expected error, got nil", tt.expr)
			}
		})
	}
}

func TestHandleCalculate(t *testing.T) {
	result, err := handleCalculate(context.Background(), json.RawMessage(`{"expression":"2+2"}`))
	if err != nil {
		t.Fatalf("handleCalculate() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("handleCalculate() IsError = true, content %q", result.Content)
	}
	if result.Content != "4" {
		t.Errorf("handleCalculate() content = %q, want %q", result.Content, "4")
	}
}

func TestHandleCalculate_InvalidInput(t *testing.T) {
	result, err := handleCalculate(context.Background(), json.RawMessage(`{"expression":"os.exit()"}`))
	if err != nil {
		t.Fatalf("handleCalculate() error = %v", err)
	}
	if !result.IsError {
		t.Error("handleCalculate() IsError = false, want true")
	}
	if !strings.HasPrefix(result.Content, "error:") {
		t.Errorf("handleCalculate() content = %q, want error marker prefix", result.Content)
	}
}

func TestHandleWeather(t *testing.T) {
	result, err := handleWeather(context.Background(), json.RawMessage(`{"city":"Paris"}`))
	if err != nil {
		t.Fatalf("handleWeather() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("handleWeather() IsError = true, content %q", result.Content)
	}
	if !strings.Contains(result.Content, "Paris") {
		t.Errorf("handleWeather() content = %q, want mention of Paris", result.Content)
	}
}

func TestHandleWeather_UnknownCity(t *testing.T) {
	result, err := handleWeather(context.Background(), json.RawMessage(`{"city":"Atlantis"}`))
	if err != nil {
		t.Fatalf("handleWeather() error = %v", err)
	}
	if result.IsError {
		t.Error("handleWeather() IsError = true, want false for unknown city")
	}
	if !strings.Contains(result.Content, "Atlantis") {
		t.Errorf("handleWeather() content = %q, want mention of Atlantis", result.Content)
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{4, "4"},
		{0.25, "0.25"},
		{7, "7"},
		{-5, "-5"},
		{2.5, "2.5"},
	}

	for _, tt := range tests {
		if got := formatResult(tt.value); got != tt.want {
			t.Errorf("formatResult(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
