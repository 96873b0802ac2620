// Package anthropic provides a model.Invoker backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/model"
)

// Options configures the Anthropic invoker (temperature, model id, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Invoker wraps the Anthropic Messages API behind the generic model.Invoker
// interface.
type Invoker struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Invoker = (*Invoker)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// New creates a new Anthropic invoker using the official client.
func New(optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Invoker{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic invoker from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Invoker{client: client, opts: opts}
}

// Invoke implements model.Invoker with a blocking Messages call.
func (m *Invoker) Invoke(ctx context.Context, msgs []core.Message, tools []model.ToolDefinition) (core.AssistantMessage, error) {
	params := m.buildParams(msgs, tools)

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return core.AssistantMessage{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var (
		text  string
		calls []core.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			var args json.RawMessage
			if toolBlock.Input != nil {
				if b, err := json.Marshal(toolBlock.Input); err == nil {
					args = b
				}
			}
			calls = append(calls, core.ToolCall{ID: toolBlock.ID, Name: toolBlock.Name, Args: args})
		}
	}

	return core.NewAssistantMessage(text, calls...), nil
}

// Stream implements model.Invoker. The SDK's event stream is not wired up
// yet, so the call degrades to a single terminal chunk carrying the full
// message. Consumers still observe the same contract: zero or more deltas,
// then exactly one final message.
func (m *Invoker) Stream(ctx context.Context, msgs []core.Message, tools []model.ToolDefinition) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		msg, err := m.Invoke(ctx, msgs, tools)
		if err != nil {
			errCh <- err
			return
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- model.Chunk{Message: &msg}:
		}
	}()

	return out, errCh
}

func (m *Invoker) buildParams(msgs []core.Message, tools []model.ToolDefinition) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(msgs),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	if systemBlocks := extractSystemBlocks(msgs); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	return params
}

// buildMessages converts the conversation log to the Anthropic message
// format. Tool results become tool_result blocks inside user messages,
// which is how the Messages API expects them.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, m := range msgs {
		switch v := m.(type) {
		case core.SystemMessage:
			// Handled separately via the system parameter.
		case core.UserMessage:
			if v.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(v.Content)))
			}
		case core.AssistantMessage:
			var content []anthropic.ContentBlockParamUnion
			if v.Content != "" {
				content = append(content, anthropic.NewTextBlock(v.Content))
			}
			for _, tc := range v.ToolCalls {
				var input any
				if len(tc.Args) > 0 {
					if err := json.Unmarshal(tc.Args, &input); err != nil {
						input = string(tc.Args)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case core.ToolMessage:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(v.CallID, v.Content, v.IsError),
			))
		}
	}

	return messages
}

func extractSystemBlocks(msgs []core.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range msgs {
		if sm, ok := m.(core.SystemMessage); ok && sm.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: sm.Content})
		}
	}
	return blocks
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tdef.InputSchema != nil {
			if properties, exists := tdef.InputSchema["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tdef.InputSchema["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var names []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							names = append(names, s)
						}
					}
					inputSchema.Required = names
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Name)
	}

	return out
}

// Info returns metadata describing this Anthropic invoker.
func (m *Invoker) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
