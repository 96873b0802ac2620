package tool

import (
	"fmt"

	"github.com/threadloop/threadloop/core"
)

func numberArg(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

func binaryNumberSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number", "description": "First operand"},
			"b": map[string]any{"type": "number", "description": "Second operand"},
		},
		"required": []string{"a", "b"},
	}
}

// NewMultiplyTool returns a tool that multiplies two numbers.
func NewMultiplyTool() Tool {
	return NewFunctionTool(
		"multiply",
		"Multiply two numbers and return the product.",
		binaryNumberSchema(),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return nil, err
			}
			return a * b, nil
		},
	)
}

// NewAddTool returns a tool that adds two numbers.
func NewAddTool() Tool {
	return NewFunctionTool(
		"add",
		"Add two numbers and return the sum.",
		binaryNumberSchema(),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return nil, err
			}
			return a + b, nil
		},
	)
}
