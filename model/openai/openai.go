// Package openai provides a model.Invoker backed by the OpenAI Chat
// Completions API (including streaming + function/tool calling). It adapts
// ThreadLoop's message log into the SDK's message format and back.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"

	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) so complete calls can be reconstructed when the finish reason
// arrives.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI invoker.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Invoker wraps the OpenAI Chat Completions API behind the generic
// model.Invoker interface.
type Invoker struct {
	client *openai.Client
	opts   Options
}

var _ model.Invoker = (*Invoker)(nil)

// New creates an OpenAI invoker using the official client, configured from
// the environment.
func New(optFns ...func(o *Options)) *Invoker {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI invoker from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, opts: opts}
}

// Invoke implements model.Invoker with a blocking completion call.
func (m *Invoker) Invoke(ctx context.Context, msgs []core.Message, tools []model.ToolDefinition) (core.AssistantMessage, error) {
	params := m.buildParams(msgs, tools)

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.AssistantMessage{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.AssistantMessage{}, fmt.Errorf("openai: no choices returned")
	}

	ch0 := resp.Choices[0]
	calls := make([]core.ToolCall, 0, len(ch0.Message.ToolCalls))
	for _, tc := range ch0.Message.ToolCalls {
		calls = append(calls, core.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}

	return core.NewAssistantMessage(ch0.Message.Content, calls...), nil
}

// Stream implements model.Invoker; text deltas are forwarded as they
// arrive and the complete assistant message is emitted last.
func (m *Invoker) Stream(ctx context.Context, msgs []core.Message, tools []model.ToolDefinition) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(msgs, tools)
		stream := m.client.Chat.Completions.NewStreaming(ctx, params)

		var textBuilder strings.Builder
		toolAgg := map[int64]*aggCall{}
		done := false

		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content != "" {
					textBuilder.WriteString(ch.Delta.Content)
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- model.Chunk{Delta: ch.Delta.Content}:
					}
				}
				for _, tc := range ch.Delta.ToolCalls {
					ac, ok := toolAgg[tc.Index]
					if !ok {
						ac = &aggCall{}
						toolAgg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					if tc.Function.Arguments != "" {
						ac.args += tc.Function.Arguments
					}
				}
				if ch.FinishReason != "" {
					done = true
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
			return
		}
		if !done {
			errCh <- fmt.Errorf("openai: stream ended without finish reason")
			return
		}

		indexes := make([]int64, 0, len(toolAgg))
		for idx := range toolAgg {
			indexes = append(indexes, idx)
		}
		sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

		calls := make([]core.ToolCall, 0, len(indexes))
		for _, idx := range indexes {
			ac := toolAgg[idx]
			calls = append(calls, core.ToolCall{ID: ac.id, Name: ac.name, Args: json.RawMessage(ac.args)})
		}

		final := core.NewAssistantMessage(textBuilder.String(), calls...)
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- model.Chunk{Message: &final}:
		}
	}()

	return out, errCh
}

// buildParams assembles the request parameters including tool definitions.
func (m *Invoker) buildParams(msgs []core.Message, tools []model.ToolDefinition) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(msgs),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(tools) == 0 {
		return params
	}
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tdef := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.InputSchema,
			},
		}
	}
	params.Tools = out
	return params
}

// buildMessages converts the conversation log into OpenAI chat messages.
// Tool results map 1:1 onto tool messages keyed by call id, so ordering in
// the log is preserved as-is.
func buildMessages(msgs []core.Message) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range msgs {
		switch v := m.(type) {
		case core.SystemMessage:
			messages = append(messages, openai.SystemMessage(v.Content))
		case core.UserMessage:
			messages = append(messages, openai.UserMessage(v.Content))
		case core.AssistantMessage:
			if !v.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(v.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(v.ToolCalls))
			for i, tc := range v.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Args),
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case core.ToolMessage:
			messages = append(messages, openai.ToolMessage(v.Content, v.CallID))
		}
	}
	return messages
}

// Info returns metadata describing this OpenAI invoker.
func (m *Invoker) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
