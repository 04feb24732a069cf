package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/internal/http/dto"
	"lumen.app/companion/internal/http/middleware"
	"lumen.app/companion/internal/service"
)

type SessionHandler struct {
	chatService service.ChatService
}

func NewSessionHandler(chatService service.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

func (h *SessionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	session, err := h.chatService.CreateSession(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToChatSessionResponse(session, true))
}

func (h *SessionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	sessions, err := h.chatService.ListSessions(ctx, user.ID, parseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]*dto.ChatSessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, dto.ToChatSessionResponse(&sessions[i], false))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h *SessionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	session, err := h.chatService.GetSession(ctx, middleware.GetUser(ctx).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToChatSessionResponse(session, true))
}

// SetStyle records an explicit style. It stays in force for the rest of the
// conversation.
func (h *SessionHandler) SetStyle(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetStyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	style, err := h.chatService.SetStyle(ctx, middleware.GetUser(ctx).ID, id, req.Style)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "style": style})
}
