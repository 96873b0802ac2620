package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/logging"
)

// ExecutorOptions tune how requested tool calls are run.
type ExecutorOptions struct {
	// CallTimeout bounds each individual tool call. Zero means no limit.
	CallTimeout time.Duration

	// Parallel runs the calls of one assistant message concurrently.
	// Results are still reported in request order.
	Parallel bool

	// MaxParallel caps concurrency when Parallel is set. Zero means one
	// goroutine per call.
	MaxParallel int
}

// CallResult is the outcome of one tool call: the tool-result message to
// append to the log, the staged field delta to apply with it, and the origin
// of the tool for event tagging.
type CallResult struct {
	Call       core.ToolCall
	Message    core.ToolMessage
	FieldDelta map[string]any
	Origin     core.ToolOrigin
}

// Executor runs the tool calls requested by an assistant message. Every
// failure mode (unknown tool, invalid arguments, timeout, panic, plain
// error) becomes an error-flagged tool-result message rather than a turn
// failure, so the model can observe what went wrong and continue.
type Executor struct {
	registry *Registry
	opts     ExecutorOptions
	logger   logging.Logger
}

// NewExecutor creates an executor over a registry.
func NewExecutor(registry *Registry, opts ExecutorOptions, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{registry: registry, opts: opts, logger: logger}
}

// ExecuteOne runs a single call against a state snapshot and returns its
// result. It never returns an error; failures are encoded in the result
// message with IsError set.
func (e *Executor) ExecuteOne(ctx context.Context, threadID string, state *core.ConversationState, call core.ToolCall) CallResult {
	def, ok := e.registry.Lookup(call.Name)
	if !ok {
		return errorResult(call, core.ToolOriginLocal, map[string]any{
			"status":      "error",
			"message":     fmt.Sprintf("Unknown tool '%s'.", call.Name),
			"valid_tools": e.registry.Names(),
		})
	}

	args := map[string]any{}
	if len(call.Args) > 0 {
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return errorResult(call, def.Origin, map[string]any{
				"status":  "error",
				"message": fmt.Sprintf("Arguments for tool '%s' are not valid JSON: %v", call.Name, err),
			})
		}
	}

	if err := e.registry.Validate(call.Name, args); err != nil {
		e.logger.Warn("tool.validation_failed", "tool", call.Name, "error", err.Error())
		return errorResult(call, def.Origin, map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("Invalid arguments for tool '%s': %v", call.Name, err),
		})
	}

	callCtx := ctx
	cancel := func() {}
	if e.opts.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.opts.CallTimeout)
	}
	defer cancel()

	tc := core.NewToolContext(callCtx, threadID, call.ID, state, e.logger)

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool.panic", "tool", call.Name, "panic", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("tool panicked")}
			}
		}()
		value, err := def.Tool.Call(tc, args)
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-callCtx.Done():
		return errorResult(call, def.Origin, map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("Tool '%s' did not complete in time.", call.Name),
		})
	case out := <-done:
		if out.err != nil {
			return errorResult(call, def.Origin, map[string]any{
				"status":  "error",
				"message": fmt.Sprintf("Tool '%s' failed: %v", call.Name, out.err),
			})
		}
		msg := core.NewToolMessage(call.ID, call.Name, renderResult(out.value))
		return CallResult{Call: call, Message: msg, FieldDelta: tc.FieldDelta(), Origin: def.Origin}
	}
}

// ExecuteAll runs all calls of one assistant message and returns results in
// request order. Sequential by default; with Parallel set, calls run
// concurrently under an optional semaphore and the results are re-serialized
// into request order before returning.
func (e *Executor) ExecuteAll(ctx context.Context, threadID string, state *core.ConversationState, calls []core.ToolCall) []CallResult {
	if !e.opts.Parallel || len(calls) < 2 {
		results := make([]CallResult, 0, len(calls))
		for _, call := range calls {
			results = append(results, e.ExecuteOne(ctx, threadID, state, call))
		}
		return results
	}

	results := make([]CallResult, len(calls))

	var sem chan struct{}
	if e.opts.MaxParallel > 0 {
		sem = make(chan struct{}, e.opts.MaxParallel)
	}

	done := make(chan struct{}, len(calls))
	for i, call := range calls {
		go func(i int, call core.ToolCall) {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = e.ExecuteOne(ctx, threadID, state, call)
			done <- struct{}{}
		}(i, call)
	}
	for range calls {
		<-done
	}

	return results
}

func errorResult(call core.ToolCall, origin core.ToolOrigin, payload map[string]any) CallResult {
	msg := core.NewToolMessage(call.ID, call.Name, renderResult(payload))
	msg.IsError = true
	return CallResult{Call: call, Message: msg, Origin: origin}
}

// renderResult turns a tool's return value into the string stored in the
// log. Strings pass through; everything else is JSON encoded.
func renderResult(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
