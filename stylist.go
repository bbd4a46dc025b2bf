// Package stylist provides a high-level façade over the conversational
// shopping assistant: an event-driven workflow engine, a catalog search
// child workflow, approval-gated tools and a framed event stream. Most
// applications interact with this package by:
//  1. Creating a Stylist via New() with a model and a catalog searcher
//  2. Running turns with Chat (synchronous) or ChatStream (streaming handle)
//  3. Serving the HTTP surface through server.NewHandler
//
// All defaults are safe for local development and testing: in-memory
// sessions, a static trends provider and the built-in catalog tools.
// Production deployments supply durable stores and live providers through
// the assistant options.
package stylist

import (
	"context"

	"github.com/trendwise/stylist/assistant"
	"github.com/trendwise/stylist/catalog"
	"github.com/trendwise/stylist/model"
	"github.com/trendwise/stylist/session"
	"github.com/trendwise/stylist/workflow"
)

// Stylist bundles the assistant with convenience entry points.
type Stylist struct {
	assistant *assistant.Assistant
}

// New creates a Stylist over the given model and catalog searcher. Options
// are forwarded to the assistant.
func New(m model.Model, searcher catalog.Searcher, optFns ...func(o *assistant.Options)) (*Stylist, error) {
	a, err := assistant.New(m, searcher, optFns...)
	if err != nil {
		return nil, err
	}
	return &Stylist{assistant: a}, nil
}

// Assistant exposes the underlying assistant, e.g. for server wiring.
func (s *Stylist) Assistant() *assistant.Assistant { return s.assistant }

// ChatStream starts one turn and returns the live run handle together with
// the session it runs against. The caller consumes handle.Events() and the
// terminal result; the turn is not recorded into the session history until
// RecordTurn is called.
func (s *Stylist) ChatStream(ctx context.Context, sessionID, customerToken, text string) (*workflow.RunHandle, *session.Session, error) {
	sess, err := s.assistant.Session(ctx, sessionID, customerToken)
	if err != nil {
		return nil, nil, err
	}
	handle, err := s.assistant.Ask(ctx, sess, text)
	if err != nil {
		return nil, nil, err
	}
	return handle, sess, nil
}

// Chat runs one turn synchronously: events are drained, the terminal reply
// is returned and the exchange is recorded into the session history.
func (s *Stylist) Chat(ctx context.Context, sessionID, customerToken, text string) (assistant.Reply, error) {
	handle, sess, err := s.ChatStream(ctx, sessionID, customerToken, text)
	if err != nil {
		return assistant.Reply{}, err
	}

	go func() {
		for range handle.Events() {
		}
	}()

	result, err := handle.Result()
	if err != nil {
		return assistant.Reply{}, err
	}
	reply, _ := result.(assistant.Reply)
	if err := s.assistant.RecordTurn(ctx, sess, text, reply); err != nil {
		return reply, err
	}
	return reply, nil
}
