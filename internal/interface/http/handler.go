package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/internal/domain/view"
)

// Handler wires the HTTP transport to the widget services.
type Handler struct {
	viewSvc    view.Service
	chatSvc    chat.Service
	summarySvc summarizer.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(viewSvc view.Service, chatSvc chat.Service, summarySvc summarizer.Service, logger *slog.Logger) *Handler {
	return &Handler{
		viewSvc:    viewSvc,
		chatSvc:    chatSvc,
		summarySvc: summarySvc,
		logger:     logger.With("component", "http.handler"),
	}
}

// Snapshot is the combined state of both widgets of a view.
type Snapshot struct {
	View    view.View        `json:"view"`
	Chat    chat.State       `json:"chat"`
	Summary summarizer.State `json:"summary"`
}

// OpenView allocates a page session for API clients that do not render /chat.
func (h *Handler) OpenView(c *gin.Context) {
	v, err := h.viewSvc.Open(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err, "open_view_failed"))
		return
	}
	c.JSON(http.StatusCreated, Snapshot{View: v, Chat: chat.State{Transcript: []chat.Message{}}})
}

// GetView returns both widgets' state.
func (h *Handler) GetView(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := h.viewSvc.Touch(ctx, c.Param("id"))
	if err != nil {
		abortWithError(c, fromDomainError(err, "view_failed"))
		return
	}
	chatState, err := h.chatSvc.State(ctx, v.ID)
	if err != nil {
		abortWithError(c, fromDomainError(err, "view_failed"))
		return
	}
	summaryState, err := h.summarySvc.State(ctx, v.ID)
	if err != nil {
		abortWithError(c, fromDomainError(err, "view_failed"))
		return
	}
	c.JSON(http.StatusOK, Snapshot{View: v, Chat: withTranscript(chatState), Summary: summaryState})
}

// SubmitChat handles the chat form. Blank messages are accepted and change nothing.
func (h *Handler) SubmitChat(c *gin.Context) {
	var req chat.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	v, err := h.viewSvc.Touch(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, fromDomainError(err, "chat_failed"))
		return
	}

	state, err := h.chatSvc.Submit(c.Request.Context(), v.ID, req.Message)
	if err != nil {
		abortWithError(c, fromDomainError(err, "chat_failed"))
		return
	}
	c.JSON(http.StatusOK, withTranscript(state))
}

// SubmitSummary handles the video summarizer form.
func (h *Handler) SubmitSummary(c *gin.Context) {
	var req summarizer.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	v, err := h.viewSvc.Touch(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, fromDomainError(err, "summarize_failed"))
		return
	}

	state, err := h.summarySvc.Submit(c.Request.Context(), v.ID, req.URL)
	if err != nil {
		abortWithError(c, fromDomainError(err, "summarize_failed"))
		return
	}
	c.JSON(http.StatusOK, state)
}

// CloseView discards a page session. Browsers call it from a pagehide beacon.
func (h *Handler) CloseView(c *gin.Context) {
	if err := h.viewSvc.Close(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, fromDomainError(err, "close_view_failed"))
		return
	}
	c.Status(http.StatusNoContent)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// withTranscript keeps the JSON transcript an array for empty views.
func withTranscript(state chat.State) chat.State {
	if state.Transcript == nil {
		state.Transcript = []chat.Message{}
	}
	return state
}
