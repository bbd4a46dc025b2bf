package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockReply is one scripted model turn.
type MockReply struct {
	Content   string
	ToolCalls []ToolCall
	Err       error
}

// Mock is a lightweight in-memory Model for tests and examples. Replies can
// be scripted as a FIFO queue, matched by substring of the latest message, or
// left to a deterministic echo fallback.
type Mock struct {
	mu       sync.Mutex
	queue    []MockReply
	contains map[string]MockReply
	calls    int
}

// NewMock constructs an empty Mock.
func NewMock() *Mock {
	return &Mock{contains: make(map[string]MockReply)}
}

// Queue appends scripted replies consumed in order before any matching rules.
func (m *Mock) Queue(replies ...MockReply) {
	m.mu.Lock()
	m.queue = append(m.queue, replies...)
	m.mu.Unlock()
}

// RespondWhenContains registers a canned reply used when the latest message
// content contains substr.
func (m *Mock) RespondWhenContains(substr string, reply MockReply) {
	m.mu.Lock()
	m.contains[substr] = reply
	m.mu.Unlock()
}

// Calls returns how many chat calls the mock has served.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Info implements Model.
func (m *Mock) Info() Info {
	return Info{Name: "mock", Provider: "mock", SupportsTools: true}
}

func (m *Mock) nextReply(msgs []Message) MockReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.queue) > 0 {
		reply := m.queue[0]
		m.queue = m.queue[1:]
		return reply
	}

	var latest string
	if len(msgs) > 0 {
		latest = msgs[len(msgs)-1].Content
	}
	for substr, reply := range m.contains {
		if containsFold(latest, substr) {
			return reply
		}
	}
	return MockReply{Content: fmt.Sprintf("Mock response to: %s", latest)}
}

// Chat implements Model.
func (m *Mock) Chat(ctx context.Context, msgs []Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	reply := m.nextReply(msgs)
	if reply.Err != nil {
		return Message{}, reply.Err
	}
	return Assistant(reply.Content), nil
}

// ChatStream implements Model; the reply is emitted in small chunks.
func (m *Mock) ChatStream(ctx context.Context, msgs []Message) (<-chan string, <-chan error) {
	textCh := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(textCh)
		defer close(errCh)
		reply := m.nextReply(msgs)
		if reply.Err != nil {
			errCh <- reply.Err
			return
		}
		const chunk = 8
		runes := []rune(reply.Content)
		for i := 0; i < len(runes); i += chunk {
			end := i + chunk
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case textCh <- string(runes[i:end]):
			}
		}
	}()
	return textCh, errCh
}

// ChatWithTools implements Model.
func (m *Mock) ChatWithTools(ctx context.Context, msgs []Message, defs []ToolDefinition) (Message, []ToolCall, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, nil, err
	}
	reply := m.nextReply(msgs)
	if reply.Err != nil {
		return Message{}, nil, reply.Err
	}
	msg := Assistant(reply.Content)
	msg.ToolCalls = reply.ToolCalls
	return msg, reply.ToolCalls, nil
}

// StructuredChat implements Model by decoding scripted replies, with the
// same corrective retry real providers get.
func (m *Mock) StructuredChat(ctx context.Context, msgs []Message, out any) error {
	return ChatStructured(ctx, m.Chat, msgs, out)
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
