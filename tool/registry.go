package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/logging"
	"github.com/threadloop/threadloop/model"
)

// Definition pairs a registered tool with its origin and compiled schema.
type Definition struct {
	Tool   Tool
	Origin core.ToolOrigin

	schema *jsonschema.Schema
}

// Registry holds the tools available to a thread. Registration compiles each
// tool's schema once; lookups and validation are read-only afterwards.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	order  []string
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		defs:   make(map[string]Definition),
		logger: logger,
	}
}

// Register adds a locally implemented tool. It fails if the name is taken or
// the schema does not compile.
func (r *Registry) Register(t Tool) error {
	return r.register(t, core.ToolOriginLocal)
}

// RegisterExternal adds a tool proxied from an external source.
func (r *Registry) RegisterExternal(t Tool) error {
	return r.register(t, core.ToolOriginExternal)
}

func (r *Registry) register(t Tool, origin core.ToolOrigin) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}

	schema, err := compileSchema(name, t.InputSchema())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	r.defs[name] = Definition{Tool: t, Origin: origin, schema: schema}
	r.order = append(r.order, name)

	r.logger.Debug("tool.registered", "tool", name, "origin", string(origin))

	return nil
}

// Lookup returns the definition for a tool name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns the declarations handed to the model, in registration
// order.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		out = append(out, model.ToolDefinition{
			Name:        name,
			Description: def.Tool.Description(),
			InputSchema: def.Tool.InputSchema(),
		})
	}
	return out
}

// Validate checks args against the tool's compiled schema. A nil schema
// accepts anything. The returned error message names the violated
// constraints so the model can repair its call.
func (r *Registry) Validate(name string, args map[string]any) error {
	def, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	if def.schema == nil {
		return nil
	}

	if err := def.schema.Validate(normalizeForSchema(args)); err != nil {
		return fmt.Errorf("%s", validationMessage(err))
	}

	return nil
}

// normalizeForSchema round-trips values through JSON typing rules the way
// the validator expects (e.g. ints become float64).
func normalizeForSchema(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// Discover pulls tools from external sources and registers them. Each source
// gets its own timeout; a failing or slow source is logged and skipped so
// one bad server never blocks the others or startup. Returns the number of
// tools registered.
func (r *Registry) Discover(ctx context.Context, timeout time.Duration, sources ...Source) int {
	registered := 0

	for _, src := range sources {
		srcCtx := ctx
		cancel := func() {}
		if timeout > 0 {
			srcCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		tools, err := src.Discover(srcCtx)
		cancel()
		if err != nil {
			r.logger.Warn("tool.discovery.failed", "source", src.SourceName(), "error", err.Error())
			continue
		}

		for _, t := range tools {
			if err := r.RegisterExternal(t); err != nil {
				r.logger.Warn("tool.discovery.register_failed", "source", src.SourceName(), "tool", t.Name(), "error", err.Error())
				continue
			}
			registered++
		}

		r.logger.Info("tool.discovery.completed", "source", src.SourceName(), "tools", len(tools))
	}

	return registered
}

// Close clears the registry. Sources passed to Discover are shut down by
// their owner, not the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defs = make(map[string]Definition)
	r.order = nil
}
