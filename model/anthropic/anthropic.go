// Package anthropic implements model.Model over the Anthropic Messages API
// (chat and function/tool calling).
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/trendwise/stylist/logging"
	"github.com/trendwise/stylist/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropicsdk.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string

	// Logger receives per-call latency and outcome entries.
	Logger logging.Logger
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropicsdk.Client
	logger logging.Logger
	opts   Options
}

var _ model.Model = (*Model)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropicsdk.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Logger:      logging.NoOpLogger{},
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropicsdk.NewClient(clientOpts...)

	return &Model{client: &client, logger: opts.Logger, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropicsdk.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Model{client: client, logger: opts.Logger, opts: opts}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic", SupportsTools: true}
}

// Chat implements model.Model.
func (m *Model) Chat(ctx context.Context, msgs []model.Message) (model.Message, error) {
	reply, _, err := m.complete(ctx, msgs, nil)
	return reply, err
}

// ChatWithTools implements model.Model.
func (m *Model) ChatWithTools(ctx context.Context, msgs []model.Message, defs []model.ToolDefinition) (model.Message, []model.ToolCall, error) {
	return m.complete(ctx, msgs, defs)
}

// ChatStream implements model.Model. The Messages API reply is delivered as
// a single chunk; token-level streaming for this provider is a followup.
func (m *Model) ChatStream(ctx context.Context, msgs []model.Message) (<-chan string, <-chan error) {
	textCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(textCh)
		defer close(errCh)
		reply, err := m.Chat(ctx, msgs)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case textCh <- reply.Content:
		}
	}()
	return textCh, errCh
}

// StructuredChat implements model.Model via schema-instructed chat with one
// corrective retry (the Messages API has no constrained output mode).
func (m *Model) StructuredChat(ctx context.Context, msgs []model.Message, out any) error {
	return model.ChatStructured(ctx, m.Chat, msgs, out)
}

func (m *Model) complete(ctx context.Context, msgs []model.Message, defs []model.ToolDefinition) (model.Message, []model.ToolCall, error) {
	params := anthropicsdk.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(msgs),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropicsdk.Float(m.opts.Temperature),
	}
	if system := extractSystem(msgs); len(system) > 0 {
		params.System = system
	}
	if len(defs) > 0 {
		params.Tools = buildTools(defs)
	}

	started := time.Now()
	resp, err := m.client.Messages.New(ctx, params)
	logging.LogModelCall(m.logger, string(m.opts.Model), time.Since(started), err)
	if err != nil {
		return model.Message{}, nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var (
		text  string
		calls []model.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if data, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(data)
				}
			}
			calls = append(calls, model.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	reply := model.Assistant(text)
	reply.ToolCalls = calls
	return reply, calls, nil
}

// buildMessages converts the normalized history into Anthropic message params.
// System messages are handled separately; tool results become tool_result
// blocks on user messages.
func buildMessages(msgs []model.Message) []anthropicsdk.MessageParam {
	var messages []anthropicsdk.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleSystem:
			continue
		case model.RoleAssistant:
			var blocks []anthropicsdk.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &input)
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropicsdk.NewAssistantMessage(blocks...))
			}
		case model.RoleTool:
			messages = append(messages, anthropicsdk.NewUserMessage(
				anthropicsdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			if msg.Content != "" {
				messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
			}
		}
	}
	return messages
}

func extractSystem(msgs []model.Message) []anthropicsdk.TextBlockParam {
	var blocks []anthropicsdk.TextBlockParam
	for _, msg := range msgs {
		if msg.Role == model.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropicsdk.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

func buildTools(defs []model.ToolDefinition) []anthropicsdk.ToolUnionParam {
	tools := make([]anthropicsdk.ToolUnionParam, len(defs))
	for i, def := range defs {
		schema := anthropicsdk.ToolInputSchemaParam{}
		if def.Parameters != nil {
			schema.Properties = def.Parameters["properties"]
			if required, ok := def.Parameters["required"].([]string); ok {
				schema.Required = required
			}
		}
		tools[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        def.Name,
				Description: anthropicsdk.String(def.Description),
				InputSchema: schema,
			},
		}
	}
	return tools
}
