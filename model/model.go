// Package model abstracts LLM providers behind a small chat interface used by
// the assistant's workflow steps: plain chat, streaming chat, tool calling and
// schema-constrained structured output.
package model

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation. Unified across vendors so downstream
// logic does not need per-provider branching.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls carries function call requests on assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// System builds a system message.
func System(text string) Message { return Message{Role: RoleSystem, Content: text} }

// User builds a user message.
func User(text string) Message { return Message{Role: RoleUser, Content: text} }

// Assistant builds an assistant message.
func Assistant(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// ToolResult builds a tool-role message answering the identified call.
func ToolResult(callID, text string) Message {
	return Message{Role: RoleTool, Content: text, ToolCallID: callID}
}

// ToolCall represents a function call request surfaced by a model provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// ArgsMap parses the raw argument JSON into a map. An empty argument string
// yields an empty map.
func (tc ToolCall) ArgsMap() (map[string]any, error) {
	if tc.Arguments == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the interface workflow steps use to drive generation.
type Model interface {
	// Info returns information about the model implementation.
	Info() Info

	// Chat returns the assistant's reply to the conversation.
	Chat(ctx context.Context, msgs []Message) (Message, error)

	// ChatStream streams the assistant's reply as text chunks. The text
	// channel is closed when the reply is complete; at most one error is
	// delivered on the error channel.
	ChatStream(ctx context.Context, msgs []Message) (<-chan string, <-chan error)

	// ChatWithTools lets the model choose between answering and requesting
	// tool invocations.
	ChatWithTools(ctx context.Context, msgs []Message, defs []ToolDefinition) (Message, []ToolCall, error)

	// StructuredChat decodes the model's reply into out, whose JSON schema
	// is derived from its struct type. Model output is an untrusted
	// boundary: replies that fail to decode get one corrective retry before
	// the call fails.
	StructuredChat(ctx context.Context, msgs []Message, out any) error
}
