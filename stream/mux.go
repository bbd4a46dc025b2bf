package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/trendwise/stylist/assistant"
	"github.com/trendwise/stylist/catalog"
	"github.com/trendwise/stylist/logging"
	"github.com/trendwise/stylist/workflow"
)

// GenericErrorMessage is the only error text that ever reaches the wire.
// Internal error details stay in the server logs.
const GenericErrorMessage = "An unexpected error occurred while processing your request, preventing the creation of a final answer. Please try again."

// MuxOptions configures a Multiplexer.
type MuxOptions struct {
	Logger logging.Logger
}

// Multiplexer frames a run's event stream into wire envelopes, in the order
// the run emitted them. One Serve call handles one run.
type Multiplexer struct {
	logger logging.Logger
}

// NewMultiplexer creates a Multiplexer.
func NewMultiplexer(optFns ...func(o *MuxOptions)) *Multiplexer {
	opts := MuxOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Multiplexer{logger: opts.Logger}
}

// Serve consumes the run's events and terminal result, writing one frame per
// line to w. The first frame is always an empty text envelope so clients see
// the stream opening immediately. A write failure or ctx cancellation is
// treated as a client disconnect: the run is cancelled cooperatively and no
// error is returned. Run failures surface as a single generic error frame.
func (m *Multiplexer) Serve(ctx context.Context, handle *workflow.RunHandle, w io.Writer) error {
	flusher, _ := w.(http.Flusher)
	errorSent := false
	write := func(env Envelope) error {
		frame, err := env.Encode()
		if err != nil {
			m.logger.Warn("unencodable envelope", "kind", env.Kind, "error", err)
			if errorSent {
				return nil
			}
			errorSent = true
			if frame, err = Error(GenericErrorMessage).Encode(); err != nil {
				return nil
			}
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if err := write(Text("")); err != nil {
		handle.Cancel()
		return nil
	}
	emit := func(ev workflow.Event) error {
		envs := m.envelopes(ev, &errorSent)
		for _, env := range envs {
			if err := write(env); err != nil {
				return err
			}
		}
		return nil
	}

loop:
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("client disconnected, cancelling run", "run_id", handle.RunID())
			handle.Cancel()
			return nil
		case ev, ok := <-handle.Events():
			if !ok {
				break loop
			}
			if err := emit(ev); err != nil {
				m.logger.Info("stream write failed, cancelling run", "run_id", handle.RunID())
				handle.Cancel()
				return nil
			}
		}
	}

	_, err := handle.Result()
	if err != nil && !errors.Is(err, workflow.ErrCancelled) {
		m.logger.Error("run failed", "run_id", handle.RunID(), "error", err)
		if !errorSent {
			if werr := write(Error(GenericErrorMessage)); werr != nil {
				return nil
			}
			errorSent = true
		}
	}

	usage := map[string]any{"promptTokens": 0, "completionTokens": 0}
	finishReason := "stop"
	if err != nil {
		finishReason = "error"
	}
	if werr := write(Envelope{Kind: KindStepFinish, Payload: map[string]any{
		"finishReason": finishReason,
		"usage":        usage,
		"isContinued":  false,
	}}); werr != nil {
		return nil
	}
	if werr := write(Envelope{Kind: KindMessageFinish, Payload: map[string]any{
		"finishReason": finishReason,
		"usage":        usage,
	}}); werr != nil {
		return nil
	}
	return nil
}

// envelopes maps one workflow event onto zero or more wire frames. Events
// internal to the engine or the branch plumbing produce nothing.
func (m *Multiplexer) envelopes(ev workflow.Event, errorSent *bool) []Envelope {
	switch typed := ev.(type) {
	case assistant.TextDeltaEvent:
		return []Envelope{Text(typed.Delta)}

	case assistant.AgentRunEvent:
		return []Envelope{Annotation([]any{map[string]any{
			"type": "agent",
			"data": map[string]any{
				"agent": typed.DisplayName(),
				"type":  "text",
				"text":  typed.Message,
			},
		}})}

	case catalog.OffersFoundEvent:
		return []Envelope{Data([]any{map[string]any{
			"type": "offers",
			"data": typed.Offers,
		}})}

	case catalog.OffersFilteredEvent:
		cards := make([]string, 0, len(typed.Offers))
		for _, offer := range typed.Offers {
			cards = append(cards, offer.MarkdownCard())
		}
		text := typed.Description
		if text == "" {
			text = "Лучшие предложения отобраны."
		}
		envs := []Envelope{Annotation([]any{map[string]any{
			"type": "agent",
			"data": map[string]any{
				"agent": assistant.AgentDisplayName(assistant.AgentCatalog),
				"type":  "text",
				"text":  text,
			},
		}})}
		if len(cards) > 0 {
			envs = append(envs, Text(strings.Join(cards, "\n\n")+"\n\n"))
		}
		return envs

	case assistant.ToolCallEvent:
		return []Envelope{{Kind: KindToolCallStart, Payload: map[string]any{
			"toolCallId": typed.InvocationID,
			"toolName":   typed.Name,
			"args":       typed.Args,
		}}}

	case assistant.ToolResultEvent:
		return []Envelope{{Kind: KindToolResult, Payload: map[string]any{
			"toolCallId": typed.InvocationID,
			"result":     typed.Text,
		}}}

	case workflow.ErrorEvent:
		if *errorSent {
			return nil
		}
		*errorSent = true
		return []Envelope{Error(GenericErrorMessage)}

	default:
		m.logger.Debug("event kind not framed", "kind", ev.Kind())
		return nil
	}
}
