// Package tool implements the tool calling subsystem: a registry of callable
// capabilities with schema validated arguments, consistent error handling and
// an executor that turns model-requested calls into tool-result messages.
package tool

import (
	"fmt"

	"github.com/threadloop/threadloop/core"
)

// Tool defines the interface for capabilities the model can invoke.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case names)
//   - Define a proper JSON schema for arguments
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// The description is provided to the model to help it decide when and how
	// to use the tool.
	Description() string

	// InputSchema returns a JSON schema describing the expected arguments.
	// The schema is compiled at registration time and every call is validated
	// against it before the tool runs.
	InputSchema() map[string]any

	// Call executes the tool with already-validated arguments. Reads and
	// staged field writes go through the ToolContext; the context also
	// carries the per-call deadline.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
