package core

import "encoding/json"

// StreamEventKind discriminates the events emitted while a turn runs.
type StreamEventKind string

const (
	// EventToken carries an incremental slice of assistant text.
	EventToken StreamEventKind = "token"
	// EventToolStart announces that a tool call is about to execute.
	EventToolStart StreamEventKind = "tool_start"
	// EventToolComplete carries the result of a finished tool call.
	EventToolComplete StreamEventKind = "tool_complete"
	// EventComplete terminates a successful turn.
	EventComplete StreamEventKind = "complete"
	// EventError terminates a failed turn.
	EventError StreamEventKind = "error"
)

// Stable error codes carried by EventError. Consumers branch on the code,
// not the message text.
const (
	CodeModelError        = "MODEL_ERROR"
	CodeCheckpointError   = "CHECKPOINT_ERROR"
	CodeStepLimitExceeded = "STEP_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ToolOrigin marks whether a tool is registered in-process or discovered
// from an external source.
type ToolOrigin string

const (
	// ToolOriginLocal marks tools implemented in this process.
	ToolOriginLocal ToolOrigin = "local"
	// ToolOriginExternal marks tools proxied from an external source.
	ToolOriginExternal ToolOrigin = "external"
)

// StreamEvent is one element of the ordered event stream a consumer
// observes during a turn. Exactly one terminal event (complete or error)
// ends every stream.
type StreamEvent struct {
	Kind StreamEventKind `json:"type"`

	// Content is set for token events.
	Content string `json:"content,omitempty"`

	// Tool fields are set for tool_start and tool_complete events.
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`
	ToolOrigin ToolOrigin      `json:"tool_origin,omitempty"`

	// Code and Message are set for error events.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}

// NewTokenEvent creates a token event.
func NewTokenEvent(content string) StreamEvent {
	return StreamEvent{Kind: EventToken, Content: content}
}

// NewToolStartEvent creates a tool_start event for a requested call.
func NewToolStartEvent(call ToolCall, origin ToolOrigin) StreamEvent {
	return StreamEvent{Kind: EventToolStart, ToolName: call.Name, ToolInput: call.Args, ToolOrigin: origin}
}

// NewToolCompleteEvent creates a tool_complete event for a finished call.
func NewToolCompleteEvent(name, result string, origin ToolOrigin) StreamEvent {
	return StreamEvent{Kind: EventToolComplete, ToolName: name, ToolResult: result, ToolOrigin: origin}
}

// NewCompleteEvent creates the terminal event of a successful turn.
func NewCompleteEvent() StreamEvent {
	return StreamEvent{Kind: EventComplete}
}

// NewErrorEvent creates the terminal event of a failed turn.
func NewErrorEvent(code, message string) StreamEvent {
	return StreamEvent{Kind: EventError, Code: code, Message: message}
}
