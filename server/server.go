// Package server exposes the assistant over HTTP: a streaming chat endpoint
// speaking the prefixed data-stream protocol and an out-of-band approval
// endpoint routed to the live run.
package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trendwise/stylist/assistant"
	"github.com/trendwise/stylist/logging"
	"github.com/trendwise/stylist/stream"
	"github.com/trendwise/stylist/tool"
)

// Options configures a Handler.
type Options struct {
	Logger logging.Logger
}

// Handler handles HTTP requests.
type Handler struct {
	assistant *assistant.Assistant
	mux       *stream.Multiplexer
	runs      *runRegistry
	logger    logging.Logger
}

// NewHandler creates a new handler around the assistant.
func NewHandler(a *assistant.Assistant, optFns ...func(o *Options)) *Handler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handler{
		assistant: a,
		mux:       stream.NewMultiplexer(func(o *stream.MuxOptions) { o.Logger = opts.Logger }),
		runs:      newRunRegistry(),
		logger:    opts.Logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/chat", h.Chat)
	e.POST("/api/runs/:run_id/approvals/:invocation_id", h.DecideApproval)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

type chatRequest struct {
	Message       string `json:"message"`
	SessionID     string `json:"session_id"`
	CustomerToken string `json:"customer_token"`
}

// Chat runs one conversational turn and streams the framed events back. The
// run id travels in the X-Run-Id header so the client can post approvals
// while the stream is open.
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctx := c.Request().Context()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess, err := h.assistant.Session(ctx, sessionID, req.CustomerToken)
	if err != nil {
		h.logger.Error("load session failed", "session_id", sessionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
	}

	handle, err := h.assistant.Ask(ctx, sess, req.Message)
	if err != nil {
		var verr *tool.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Error()})
		}
		h.logger.Error("start run failed", "session_id", sessionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to start run"})
	}

	h.runs.add(handle)
	defer h.runs.remove(handle.RunID())

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("X-Vercel-AI-Data-Stream", "v1")
	header.Set("X-Run-Id", handle.RunID())
	header.Set("X-Session-Id", sessionID)
	c.Response().WriteHeader(http.StatusOK)

	if err := h.mux.Serve(ctx, handle, c.Response()); err != nil {
		return err
	}

	if result, runErr := handle.Result(); runErr == nil {
		if reply, ok := result.(assistant.Reply); ok {
			if err := h.assistant.RecordTurn(ctx, sess, req.Message, reply); err != nil {
				h.logger.Warn("record turn failed", "session_id", sessionID, "error", err)
			}
		}
	}
	return nil
}

type approvalRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// DecideApproval resolves a suspended tool invocation of a live run.
func (h *Handler) DecideApproval(c echo.Context) error {
	runID := c.Param("run_id")
	invocationID := strings.TrimSpace(c.Param("invocation_id"))

	handle, ok := h.runs.get(runID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	if invocationID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invocation id required"})
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	handle.Send(assistant.ApprovalEvent{
		InvocationID: invocationID,
		Approved:     req.Approved,
		Reason:       req.Reason,
	})
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}
