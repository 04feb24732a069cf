package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/internal/http/dto"
	"lumen.app/companion/internal/http/middleware"
	"lumen.app/companion/internal/service"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat runs discussion mode for backend "all" and single-backend mode
// otherwise. Failures keep the response shape with success=false.
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, dto.ChatResponse{Error: err.Error()})
		return
	}

	user := middleware.GetUser(ctx)
	result, err := h.chatService.Chat(ctx, service.ChatRequest{
		UserID:    user.ID,
		SessionID: req.SessionID,
		Prompt:    req.Prompt,
		Backend:   req.Backend,
		Style:     req.Style,
		Surface:   service.Surface(req.Surface),
	})
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "chat failed", "error", err, "status", status)
		}
		c.JSON(status, dto.ChatResponse{
			Error:    msg,
			Duration: time.Since(start).Milliseconds(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ToChatResponse(result))
}
