package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/sparky-web/internal/domain/chat"
)

const pageTitle = "Sparky Chat & Summarizer"

type chatPageData struct {
	Title      string
	ViewID     string
	Transcript []chat.Message
}

// Landing renders the entry page with its single link to the chat view.
func (h *Handler) Landing(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Title": pageTitle})
}

// ChatPage opens a fresh view for every render, so a reload starts an empty transcript.
func (h *Handler) ChatPage(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := h.viewSvc.Open(ctx)
	if err != nil {
		abortWithError(c, fromDomainError(err, "open_view_failed"))
		return
	}
	state, err := h.chatSvc.State(ctx, v.ID)
	if err != nil {
		abortWithError(c, fromDomainError(err, "open_view_failed"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "chat.html", chatPageData{
		Title:      pageTitle,
		ViewID:     v.ID,
		Transcript: state.Transcript,
	})
}
