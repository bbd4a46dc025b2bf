package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trendwise/stylist/internal/util"
)

// DecodeJSON unmarshals a model reply into out, tolerating markdown code
// fences and surrounding prose around the JSON object.
func DecodeJSON(raw string, out any) error {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return json.Unmarshal([]byte(text[start:end+1]), out)
	}
	return fmt.Errorf("model: reply is not valid JSON: %q", truncate(raw, 200))
}

// StructuredInstruction builds the system message directing the model to
// answer with a single JSON object matching out's schema.
func StructuredInstruction(out any) (Message, error) {
	schema := util.SchemaFor(out)
	data, err := json.Marshal(schema)
	if err != nil {
		return Message{}, fmt.Errorf("model: marshal schema: %w", err)
	}
	return System(fmt.Sprintf(
		"Respond with a single JSON object matching this JSON schema. No prose, no code fences.\nSchema: %s",
		data,
	)), nil
}

// ChatStructured drives structured output over a plain chat call for
// providers without native schema-constrained modes. Decode failures get one
// corrective retry carrying the decode error back to the model.
func ChatStructured(
	ctx context.Context,
	chat func(ctx context.Context, msgs []Message) (Message, error),
	msgs []Message,
	out any,
) error {
	instr, err := StructuredInstruction(out)
	if err != nil {
		return err
	}
	conversation := append([]Message{instr}, msgs...)

	reply, err := chat(ctx, conversation)
	if err != nil {
		return err
	}
	decodeErr := DecodeJSON(reply.Content, out)
	if decodeErr == nil {
		return nil
	}

	conversation = append(conversation,
		reply,
		User(fmt.Sprintf("The previous reply was not valid: %v. Respond again with only the JSON object.", decodeErr)),
	)
	reply, err = chat(ctx, conversation)
	if err != nil {
		return err
	}
	if err := DecodeJSON(reply.Content, out); err != nil {
		return fmt.Errorf("model: structured output failed after retry: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
