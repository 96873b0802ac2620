// Package runner drives the conversation loop: load state, append the user
// message, alternate model calls and tool executions, and checkpoint after
// every append so a crashed or resumed process continues exactly where the
// log ends.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/threadloop/threadloop/checkpoint"
	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/logging"
	"github.com/threadloop/threadloop/model"
	"github.com/threadloop/threadloop/tool"
)

// ErrEmptyInput is returned when BeginTurn is called with blank user text.
var ErrEmptyInput = errors.New("user input must not be empty")

// ErrTurnInProgress is returned when a turn is already running for the
// thread. A thread processes at most one turn at a time.
var ErrTurnInProgress = errors.New("turn already in progress for thread")

// Options configure a Runner.
type Options struct {
	// MaxSteps bounds the number of model calls per turn. Zero falls back
	// to the default of 10.
	MaxSteps int

	// ToolTimeout bounds each tool call. Zero means no limit.
	ToolTimeout time.Duration

	// Streaming selects the invoker's streaming path, forwarding text
	// deltas as token events while the model responds.
	Streaming bool

	// SystemPrompt is prepended to new threads as a system message.
	SystemPrompt string

	// ParallelTools runs the tool calls of one assistant message
	// concurrently. Results are still appended in request order.
	ParallelTools    bool
	MaxParallelTools int

	// EventBuffer sizes the event channel handed to consumers.
	EventBuffer int

	Logger logging.Logger
}

// Runner orchestrates turns for any number of threads against one
// checkpoint store, one model invoker and one tool registry.
type Runner struct {
	store    checkpoint.Store
	invoker  model.Invoker
	registry *tool.Registry
	executor *tool.Executor
	opts     Options
	logger   logging.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New creates a Runner.
func New(store checkpoint.Store, invoker model.Invoker, registry *tool.Registry, optFns ...func(*Options)) *Runner {
	opts := Options{
		MaxSteps:    10,
		EventBuffer: 64,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 10
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	executor := tool.NewExecutor(registry, tool.ExecutorOptions{
		CallTimeout: opts.ToolTimeout,
		Parallel:    opts.ParallelTools,
		MaxParallel: opts.MaxParallelTools,
	}, opts.Logger)

	return &Runner{
		store:    store,
		invoker:  invoker,
		registry: registry,
		executor: executor,
		opts:     opts,
		logger:   opts.Logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// WithLogger sets the logger used by the runner and its executor.
func WithLogger(logger logging.Logger) func(*Options) {
	return func(o *Options) { o.Logger = logger }
}

// History returns the persisted message log of a thread.
func (r *Runner) History(ctx context.Context, threadID string) ([]core.Message, error) {
	state, _, err := r.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}

// State returns the persisted conversation state of a thread.
func (r *Runner) State(ctx context.Context, threadID string) (core.ConversationState, error) {
	state, _, err := r.store.Get(ctx, threadID)
	return state, err
}

// CancelTurn aborts the thread's in-flight turn, if any. The conversation
// keeps whatever was already checkpointed; the next turn resumes from there.
func (r *Runner) CancelTurn(threadID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[threadID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) acquire(threadID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active[threadID]; busy {
		return fmt.Errorf("thread %q: %w", threadID, ErrTurnInProgress)
	}
	r.active[threadID] = cancel
	return nil
}

func (r *Runner) release(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, threadID)
}

// BeginTurn starts one turn: the user message is appended and checkpointed
// before the model is ever invoked, then the model/tool loop runs in the
// background. The returned channel carries the turn's ordered event stream
// and closes after the terminal event.
//
// Empty input and concurrent turns on the same thread are rejected
// synchronously, before any state changes.
func (r *Runner) BeginTurn(ctx context.Context, threadID, userText string) (<-chan core.StreamEvent, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyInput
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := r.acquire(threadID, cancel); err != nil {
		cancel()
		return nil, err
	}

	state, version, err := r.store.Get(runCtx, threadID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		state = core.NewConversationState(threadID)
		version = 0
		if r.opts.SystemPrompt != "" {
			state = state.Append(core.NewSystemMessage(r.opts.SystemPrompt))
		}
	case err != nil:
		r.release(threadID)
		cancel()
		return nil, fmt.Errorf("load thread %q: %w", threadID, err)
	}

	// Write-ahead: the user message must be durable before the model runs,
	// so a crash mid-turn never loses what the user said.
	state = state.Append(core.NewUserMessage(userText))
	version, err = r.store.Put(runCtx, threadID, state, version)
	if err != nil {
		r.release(threadID)
		cancel()
		return nil, fmt.Errorf("checkpoint user message for thread %q: %w", threadID, err)
	}

	em := newEmitter(runCtx, r.opts.EventBuffer)

	go func() {
		defer em.close()
		defer cancel()
		defer r.release(threadID)
		r.run(runCtx, em, state, version)
	}()

	return em.events(), nil
}

// run executes the model/tool loop for one turn. Every append is
// checkpointed before the loop proceeds.
func (r *Runner) run(ctx context.Context, em *emitter, state core.ConversationState, version int64) {
	threadID := state.ThreadID
	logger := logging.WithThread(r.logger, threadID)
	limiter := core.NewStepLimiter(r.opts.MaxSteps)
	defs := r.registry.Definitions()

	current := phaseInvokingModel
	for current == phaseInvokingModel {
		if ctx.Err() != nil {
			logger.Info("turn.cancelled", "phase", current.String())
			return
		}

		if err := limiter.Increment(); err != nil {
			logger.Warn("turn.step_limit", "steps", limiter.Count()-1)
			em.fail(core.CodeStepLimitExceeded, err.Error())
			return
		}

		msg, err := r.invokeModel(ctx, state.Messages, defs, em)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("turn.cancelled", "phase", current.String())
				return
			}
			logger.Error("turn.model_failed", "error", err.Error())
			em.fail(core.CodeModelError, err.Error())
			return
		}

		state = state.Append(msg).WithStep()
		version, err = r.store.Put(ctx, threadID, state, version)
		if err != nil {
			logger.Error("turn.checkpoint_failed", "error", err.Error())
			em.fail(core.CodeCheckpointError, err.Error())
			return
		}

		if !r.opts.Streaming {
			em.token(msg.Content)
		}

		current = afterModel(msg)
		if current == phaseDone {
			em.complete()
			logger.Debug("turn.completed", "steps", limiter.Count())
			return
		}

		state, version, err = r.runTools(ctx, em, state, version, msg.ToolCalls)
		if err != nil {
			return
		}
		current = afterTools()
	}
}

// runTools executes one round of tool calls, appending and checkpointing
// each result in request order. A non-nil error means a terminal event was
// already emitted.
func (r *Runner) runTools(ctx context.Context, em *emitter, state core.ConversationState, version int64, calls []core.ToolCall) (core.ConversationState, int64, error) {
	threadID := state.ThreadID

	apply := func(res tool.CallResult) error {
		state = state.Append(res.Message)
		if len(res.FieldDelta) > 0 {
			state = state.WithFields(res.FieldDelta)
		}
		var err error
		version, err = r.store.Put(ctx, threadID, state, version)
		if err != nil {
			em.fail(core.CodeCheckpointError, err.Error())
			return err
		}
		em.toolComplete(res.Message.ToolName, res.Message.Content, res.Origin)
		return nil
	}

	if r.opts.ParallelTools && len(calls) > 1 {
		for _, call := range calls {
			em.toolStart(call, r.originOf(call.Name))
		}
		results := r.executor.ExecuteAll(ctx, threadID, &state, calls)
		for _, res := range results {
			if err := apply(res); err != nil {
				return state, version, err
			}
		}
		return state, version, nil
	}

	for _, call := range calls {
		em.toolStart(call, r.originOf(call.Name))
		res := r.executor.ExecuteOne(ctx, threadID, &state, call)
		if err := apply(res); err != nil {
			return state, version, err
		}
	}
	return state, version, nil
}

func (r *Runner) originOf(name string) core.ToolOrigin {
	if def, ok := r.registry.Lookup(name); ok {
		return def.Origin
	}
	return core.ToolOriginLocal
}

// invokeModel calls the invoker, forwarding streamed deltas as token events
// when streaming is enabled.
func (r *Runner) invokeModel(ctx context.Context, msgs []core.Message, defs []model.ToolDefinition, em *emitter) (core.AssistantMessage, error) {
	if !r.opts.Streaming {
		return r.invoker.Invoke(ctx, msgs, defs)
	}

	chunks, errs := r.invoker.Stream(ctx, msgs, defs)

	var final *core.AssistantMessage
	for chunk := range chunks {
		em.token(chunk.Delta)
		if chunk.Message != nil {
			final = chunk.Message
		}
	}
	if err := <-errs; err != nil {
		return core.AssistantMessage{}, err
	}
	if final == nil {
		return core.AssistantMessage{}, fmt.Errorf("model stream ended without a final message")
	}

	return *final, nil
}
