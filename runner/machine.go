package runner

import "github.com/threadloop/threadloop/core"

// phase tracks where a turn is in its lifecycle. Transitions are driven by
// model responses: a response with tool calls moves to tool execution,
// which always loops back to the model; a response without calls ends the
// turn.
type phase int

const (
	phaseAwaitingInput phase = iota
	phaseInvokingModel
	phaseExecutingTools
	phaseDone
	phaseErrored
)

func (p phase) String() string {
	switch p {
	case phaseAwaitingInput:
		return "awaiting_input"
	case phaseInvokingModel:
		return "invoking_model"
	case phaseExecutingTools:
		return "executing_tools"
	case phaseDone:
		return "done"
	case phaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// afterModel returns the phase following a model response.
func afterModel(msg core.AssistantMessage) phase {
	if msg.HasToolCalls() {
		return phaseExecutingTools
	}
	return phaseDone
}

// afterTools returns the phase following tool execution. Tool results always
// go back to the model; only the model can end a turn.
func afterTools() phase {
	return phaseInvokingModel
}
