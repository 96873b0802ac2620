// Package threadloop provides a high-level façade over the runner, the tool
// registry and the persistence layer for building tool-using conversational
// agents. Most applications interact with this package by:
//  1. Creating a ThreadLoop via New() with a model invoker (or FromConfig)
//  2. Registering tools and, optionally, MCP tool sources
//  3. Driving turns asynchronously (BeginTurn) or synchronously (RunTurn)
//
// The façade delegates orchestration to runner.Runner while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply the sqlite checkpoint
// store and a structured logger.
package threadloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/threadloop/threadloop/checkpoint"
	"github.com/threadloop/threadloop/checkpoint/sqlite"
	"github.com/threadloop/threadloop/config"
	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/logging"
	"github.com/threadloop/threadloop/model"
	"github.com/threadloop/threadloop/model/anthropic"
	"github.com/threadloop/threadloop/model/openai"
	"github.com/threadloop/threadloop/runner"
	"github.com/threadloop/threadloop/tool"
	"github.com/threadloop/threadloop/tool/mcp"
)

// DefaultDiscoveryTimeout bounds each MCP source during tool discovery.
const DefaultDiscoveryTimeout = 10 * time.Second

// Options configures a ThreadLoop instance.
type Options struct {
	// Store persists conversation state (defaults to in-memory).
	Store checkpoint.Store

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// MaxSteps bounds model calls per turn; zero means the runner default.
	MaxSteps int

	// ToolTimeout bounds each tool call; zero means no limit.
	ToolTimeout time.Duration

	// Streaming forwards model text deltas as token events.
	Streaming bool

	// SystemPrompt seeds new threads.
	SystemPrompt string

	// ParallelTools executes the tool calls of one response concurrently.
	ParallelTools    bool
	MaxParallelTools int

	// EventBuffer sets the channel buffer size for turn event streams.
	EventBuffer int

	// DiscoveryTimeout bounds each tool source during discovery.
	DiscoveryTimeout time.Duration
}

// ThreadLoop is the high-level façade aggregating the runner, registry and
// checkpoint store.
type ThreadLoop struct {
	opts     Options
	registry *tool.Registry
	runner   *runner.Runner
	sources  []tool.Source
}

// New creates a ThreadLoop driving the given model invoker. Unset services
// fall back to in-memory implementations.
func New(invoker model.Invoker, optFns ...func(o *Options)) *ThreadLoop {
	opts := Options{
		Store:            checkpoint.NewInMemoryStore(),
		Logger:           logging.NoOpLogger{},
		DiscoveryTimeout: DefaultDiscoveryTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = checkpoint.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = DefaultDiscoveryTimeout
	}

	registry := tool.NewRegistry(opts.Logger)

	r := runner.New(opts.Store, invoker, registry, func(o *runner.Options) {
		o.MaxSteps = opts.MaxSteps
		o.ToolTimeout = opts.ToolTimeout
		o.Streaming = opts.Streaming
		o.SystemPrompt = opts.SystemPrompt
		o.ParallelTools = opts.ParallelTools
		o.MaxParallelTools = opts.MaxParallelTools
		o.EventBuffer = opts.EventBuffer
		o.Logger = opts.Logger
	})

	return &ThreadLoop{opts: opts, registry: registry, runner: r}
}

// FromConfig builds a fully wired ThreadLoop from a configuration document:
// checkpoint backend, model provider, runner tuning and MCP tool sources.
func FromConfig(ctx context.Context, cfg config.Config) (*ThreadLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logging.Build()

	var store checkpoint.Store
	switch cfg.Checkpoint.Backend {
	case "sqlite":
		s, err := sqlite.New(cfg.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		store = s
	default:
		store = checkpoint.NewInMemoryStore()
	}

	invoker, err := buildInvoker(cfg.Model)
	if err != nil {
		return nil, err
	}

	toolTimeout, err := cfg.Runner.ToolTimeoutDuration()
	if err != nil {
		return nil, err
	}

	tl := New(invoker, func(o *Options) {
		o.Store = store
		o.Logger = logger
		o.MaxSteps = cfg.Runner.MaxSteps
		o.ToolTimeout = toolTimeout
		o.Streaming = cfg.Runner.Streaming
		o.SystemPrompt = cfg.Runner.SystemPrompt
		o.ParallelTools = cfg.Runner.ParallelTools
		o.MaxParallelTools = cfg.Runner.MaxParallelTools
		o.EventBuffer = cfg.Runner.EventBuffer
	})

	for _, srv := range cfg.MCPServers {
		src, err := mcp.Connect(ctx, srv, logger)
		if err != nil {
			logger.Warn("mcp.connect_failed", "server", srv.Name, "error", err.Error())
			continue
		}
		tl.AddSource(ctx, src)
	}

	return tl, nil
}

func buildInvoker(cfg config.ModelConfig) (model.Invoker, error) {
	switch cfg.Provider {
	case "openai":
		var clientOpts []openaiopt.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, openaiopt.WithAPIKey(cfg.APIKey))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openai.NewFromClient(&client, func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = cfg.APIKey
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

// RegisterTool adds a local tool to the registry.
func (t *ThreadLoop) RegisterTool(tl tool.Tool) error {
	return t.registry.Register(tl)
}

// RegisterTools adds several local tools, stopping at the first failure.
func (t *ThreadLoop) RegisterTools(tools ...tool.Tool) error {
	for _, tl := range tools {
		if err := t.registry.Register(tl); err != nil {
			return err
		}
	}
	return nil
}

// AddSource discovers an external tool source's tools into the registry and
// keeps the source for shutdown. Discovery failures degrade gracefully:
// unreachable tools are skipped, not fatal.
func (t *ThreadLoop) AddSource(ctx context.Context, src tool.Source) int {
	t.sources = append(t.sources, src)
	return t.registry.Discover(ctx, t.opts.DiscoveryTimeout, src)
}

// Tools lists the registered tool names.
func (t *ThreadLoop) Tools() []string { return t.registry.Names() }

// BeginTurn starts an asynchronous turn, returning its event stream.
func (t *ThreadLoop) BeginTurn(ctx context.Context, threadID, userText string) (<-chan core.StreamEvent, error) {
	return t.runner.BeginTurn(ctx, threadID, userText)
}

// RunTurn is a synchronous helper that drains a turn's event stream. It
// returns the assistant's accumulated text, all events observed, and a
// non-nil error if the turn ended with a terminal error event.
func (t *ThreadLoop) RunTurn(ctx context.Context, threadID, userText string) (string, []core.StreamEvent, error) {
	ch, err := t.BeginTurn(ctx, threadID, userText)
	if err != nil {
		return "", nil, err
	}

	var (
		text   strings.Builder
		events []core.StreamEvent
	)
	for {
		select {
		case <-ctx.Done():
			return text.String(), events, ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return text.String(), events, nil
			}
			events = append(events, ev)
			switch ev.Kind {
			case core.EventToken:
				text.WriteString(ev.Content)
			case core.EventError:
				return text.String(), events, fmt.Errorf("%s: %s", ev.Code, ev.Message)
			}
		}
	}
}

// History returns the persisted message log of a thread.
func (t *ThreadLoop) History(ctx context.Context, threadID string) ([]core.Message, error) {
	return t.runner.History(ctx, threadID)
}

// State returns the persisted conversation state of a thread.
func (t *ThreadLoop) State(ctx context.Context, threadID string) (core.ConversationState, error) {
	return t.runner.State(ctx, threadID)
}

// CancelTurn aborts the thread's in-flight turn, if any.
func (t *ThreadLoop) CancelTurn(threadID string) bool {
	return t.runner.CancelTurn(threadID)
}

// Close shuts down external tool sources and clears the registry.
func (t *ThreadLoop) Close() error {
	var errs []error
	for _, src := range t.sources {
		if err := src.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.SourceName(), err))
		}
	}
	t.registry.Close()
	return errors.Join(errs...)
}
