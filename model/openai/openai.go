// Package openai implements model.Model over the OpenAI Chat Completions API
// (streaming, function/tool calling and json-schema constrained output).
package openai

import (
	"context"
	"fmt"
	"time"

	openaisdk "github.com/openai/openai-go"

	"github.com/trendwise/stylist/internal/util"
	"github.com/trendwise/stylist/logging"
	"github.com/trendwise/stylist/model"
)

// Options configure the OpenAI model adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64

	// Logger receives per-call latency and outcome entries.
	Logger logging.Logger
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openaisdk.Client
	logger logging.Logger
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a new OpenAI model using the official client (configured
// from the environment).
func NewModel(optFns ...func(o *Options)) *Model {
	client := openaisdk.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openaisdk.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openaisdk.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Model{client: client, logger: opts.Logger, opts: opts}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai", SupportsTools: true}
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

// ChatStream implements model.Model; text deltas are forwarded as they arrive.
func (m *Model) ChatStream(ctx context.Context, msgs []model.Message) (<-chan string, <-chan error) {
	textCh := make(chan string, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(textCh)
		defer close(errCh)

		params := m.buildParams(msgs, nil)
		started := time.Now()
		stream := m.client.Chat.Completions.NewStreaming(ctx, params)
		defer func() { logging.LogModelCall(m.logger, m.opts.Model, time.Since(started), stream.Err()) }()
		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case textCh <- ch.Delta.Content:
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
		}
	}()

	return textCh, errCh
}

// StructuredChat implements model.Model using the API's native json-schema
// response format, with one corrective retry on a reply that fails to decode.
func (m *Model) StructuredChat(ctx context.Context, msgs []model.Message, out any) error {
	schema := util.SchemaFor(out)

	chat := func(ctx context.Context, conversation []model.Message) (model.Message, error) {
		params := m.buildParams(conversation, nil)
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openaisdk.ResponseFormatJSONSchemaParam{
				JSONSchema: openaisdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: schema,
				},
			},
		}
		started := time.Now()
		resp, err := m.client.Chat.Completions.New(ctx, params)
		logging.LogModelCall(m.logger, m.opts.Model, time.Since(started), err)
		if err != nil {
			return model.Message{}, fmt.Errorf("openai api error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return model.Message{}, fmt.Errorf("openai: no choices returned")
		}
		return model.Assistant(resp.Choices[0].Message.Content), nil
	}

	return model.ChatStructured(ctx, chat, msgs, out)
}

func (m *Model) complete(ctx context.Context, msgs []model.Message, defs []model.ToolDefinition) (model.Message, []model.ToolCall, error) {
	params := m.buildParams(msgs, defs)
	started := time.Now()
	resp, err := m.client.Chat.Completions.New(ctx, params)
	logging.LogModelCall(m.logger, m.opts.Model, time.Since(started), err)
	if err != nil {
		return model.Message{}, nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Message{}, nil, fmt.Errorf("openai: no choices returned")
	}

	ch0 := resp.Choices[0]
	reply := model.Assistant(ch0.Message.Content)
	var calls []model.ToolCall
	for _, tc := range ch0.Message.ToolCalls {
		calls = append(calls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	reply.ToolCalls = calls
	return reply, calls, nil
}

// buildParams assembles the request including message history, prior tool
// calls with their responses, and tool definitions.
func (m *Model) buildParams(msgs []model.Message, defs []model.ToolDefinition) openaisdk.ChatCompletionNewParams {
	var messages []openaisdk.ChatCompletionMessageParamUnion
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(msg.Content))
		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, openaisdk.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openaisdk.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				toolCalls[i] = openaisdk.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			messages = append(messages, openaisdk.ChatCompletionMessageParamUnion{
				OfAssistant: &openaisdk.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case model.RoleTool:
			messages = append(messages, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			messages = append(messages, openaisdk.UserMessage(msg.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openaisdk.Float(m.opts.Temperature),
		MaxCompletionTokens: openaisdk.Int(m.opts.MaxCompletionTokens),
	}
	if len(defs) == 0 {
		return params
	}

	tools := make([]openaisdk.ChatCompletionToolParam, len(defs))
	for i, def := range defs {
		schema := def.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		tools[i] = openaisdk.ChatCompletionToolParam{
			Type: "function",
			Function: openaisdk.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openaisdk.String(def.Description),
				Parameters:  schema,
			},
		}
	}
	params.Tools = tools
	return params
}
