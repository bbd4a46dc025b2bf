package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))), &buf
}

func TestWithRunAttachesIdentifiers(t *testing.T) {
	logger, buf := captureLogger()

	WithRun(logger, "sess-1", "run-1").Info("step completed")

	out := buf.String()
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "session_id=sess-1")
}

func TestWithRunSkipsEmptySession(t *testing.T) {
	logger, buf := captureLogger()

	WithRun(logger, "", "run-2").Info("step completed")

	out := buf.String()
	assert.Contains(t, out, "run_id=run-2")
	assert.NotContains(t, out, "session_id")
}

func TestWithRunKeepsCustomLoggersUnchanged(t *testing.T) {
	logger := NoOpLogger{}
	require.Equal(t, Logger(logger), WithRun(logger, "sess-1", "run-1"))
}

func TestLogModelCallRecordsOutcome(t *testing.T) {
	logger, buf := captureLogger()

	LogModelCall(logger, "gpt-4o-mini", 120*time.Millisecond, nil)
	assert.Contains(t, buf.String(), "model call completed")
	assert.Contains(t, buf.String(), "model=gpt-4o-mini")

	buf.Reset()
	LogModelCall(logger, "gpt-4o-mini", time.Millisecond, errors.New("rate limited"))
	assert.Contains(t, buf.String(), "model call failed")
	assert.Contains(t, buf.String(), "rate limited")
}
