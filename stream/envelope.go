// Package stream frames workflow events into the prefixed wire protocol chat
// clients consume: one `<prefix>:<json>\n` line per envelope, with a reserved
// prefix per envelope kind.
package stream

import (
	"encoding/json"
	"fmt"
)

// EnvelopeKind classifies a wire frame.
type EnvelopeKind string

// Envelope kinds and their reserved wire prefixes.
const (
	KindText          EnvelopeKind = "text"
	KindData          EnvelopeKind = "data"
	KindAnnotation    EnvelopeKind = "annotation"
	KindToolCallStart EnvelopeKind = "tool_call_start"
	KindToolResult    EnvelopeKind = "tool_result"
	KindError         EnvelopeKind = "error"
	KindStepFinish    EnvelopeKind = "step_finish"
	KindMessageFinish EnvelopeKind = "message_finish"
)

var prefixes = map[EnvelopeKind]string{
	KindText:          "0",
	KindData:          "2",
	KindAnnotation:    "8",
	KindToolCallStart: "b",
	KindToolResult:    "a",
	KindError:         "3",
	KindStepFinish:    "e",
	KindMessageFinish: "d",
}

// Envelope is one frame: a kind plus a JSON-encodable payload. Text and
// error payloads are strings (JSON string escaping keeps quotes and newlines
// intact on the wire); the rest are objects.
type Envelope struct {
	Kind    EnvelopeKind
	Payload any
}

// Text builds a text envelope.
func Text(s string) Envelope { return Envelope{Kind: KindText, Payload: s} }

// Data builds a data envelope.
func Data(payload any) Envelope { return Envelope{Kind: KindData, Payload: payload} }

// Annotation builds an annotation envelope.
func Annotation(payload any) Envelope { return Envelope{Kind: KindAnnotation, Payload: payload} }

// Error builds an error envelope.
func Error(msg string) Envelope { return Envelope{Kind: KindError, Payload: msg} }

// Encode renders the envelope as a single wire frame.
func (e Envelope) Encode() ([]byte, error) {
	prefix, ok := prefixes[e.Kind]
	if !ok {
		return nil, fmt.Errorf("stream: unknown envelope kind %q", e.Kind)
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("stream: encode %s payload: %w", e.Kind, err)
	}
	frame := make([]byte, 0, len(prefix)+len(body)+2)
	frame = append(frame, prefix...)
	frame = append(frame, ':')
	frame = append(frame, body...)
	frame = append(frame, '\n')
	return frame, nil
}

// DecodeFrame parses one wire frame back into an envelope. Used by tests and
// stream-consuming clients.
func DecodeFrame(frame []byte) (Envelope, error) {
	for kind, prefix := range prefixes {
		if len(frame) > len(prefix)+1 && string(frame[:len(prefix)]) == prefix && frame[len(prefix)] == ':' {
			body := frame[len(prefix)+1:]
			if n := len(body); n > 0 && body[n-1] == '\n' {
				body = body[:n-1]
			}
			var payload any
			if err := json.Unmarshal(body, &payload); err != nil {
				return Envelope{}, fmt.Errorf("stream: decode %s frame: %w", kind, err)
			}
			return Envelope{Kind: kind, Payload: payload}, nil
		}
	}
	return Envelope{}, fmt.Errorf("stream: unrecognized frame %q", frame)
}
