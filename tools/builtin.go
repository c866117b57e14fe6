package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/conduit/core/protocol"
)

// Canned weather reports keyed by lowercase city name. Unknown cities get a
// generic reply rather than an error so the invocation still yields a result.
var weatherReports = map[string]string{
	"paris":  "Paris: 18°C, partly cloudy, light breeze from the west.",
	"london": "London: 14°C, overcast with occasional drizzle.",
	"boston": "Boston: 11°C, clear skies, brisk northerly wind.",
	"tokyo":  "Tokyo: 22°C, humid with scattered showers expected.",
}

// RegisterBuiltins adds the builtin tool set to the global registry.
// Safe to call once per process; duplicate registration is an error.
func RegisterBuiltins() error {
	if err := Register(protocol.Tool{
		Name:        "calculate",
		Description: "Evaluates an arithmetic expression (+, -, *, /, parentheses, decimals).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "The arithmetic expression to evaluate, e.g. \"2+2\" or \"(3.5*4)/2\".",
				},
			},
			"required": []string{"expression"},
		},
	}, handleCalculate); err != nil {
		return err
	}

	return Register(protocol.Tool{
		Name:        "get_weather",
		Description: "Returns the current weather report for a city.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{
					"type":        "string",
					"description": "City name, e.g. \"Paris\".",
				},
			},
			"required": []string{"city"},
		},
	}, handleWeather)
}

func handleCalculate(_ context.Context, args json.RawMessage) (Result, error) {
	var params struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Result{Content: fmt.Sprintf("error: invalid arguments: %s", err), IsError: true}, nil
	}
	if params.Expression == "" {
		return Result{Content: "error: expression is required", IsError: true}, nil
	}

	value, err := evalExpression(params.Expression)
	if err != nil {
		return Result{Content: fmt.Sprintf("error: %s", err), IsError: true}, nil
	}
	return Result{Content: formatResult(value)}, nil
}

func handleWeather(_ context.Context, args json.RawMessage) (Result, error) {
	var params struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Result{Content: fmt.Sprintf("error: invalid arguments: %s", err), IsError: true}, nil
	}
	if params.City == "" {
		return Result{Content: "error: city is required", IsError: true}, nil
	}

	report, ok := weatherReports[strings.ToLower(strings.TrimSpace(params.City))]
	if !ok {
		report = fmt.Sprintf("%s: 20°C, conditions unavailable.", params.City)
	}
	return Result{Content: report}, nil
}
