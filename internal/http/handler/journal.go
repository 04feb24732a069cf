package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/internal/http/dto"
	"lumen.app/companion/internal/http/middleware"
	"lumen.app/companion/internal/service"
)

type SummaryHandler struct {
	summaryService service.SummaryService
}

func NewSummaryHandler(summaryService service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaryService: summaryService}
}

func (h *SummaryHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.DateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	summary, err := h.summaryService.Summarize(ctx, middleware.GetUser(ctx).ID, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToSummaryResponse(summary))
}

func (h *SummaryHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	summary, err := h.summaryService.Get(ctx, middleware.GetUser(ctx).ID, c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToSummaryResponse(summary))
}

type MemoryHandler struct {
	memoryService service.MemoryService
}

func NewMemoryHandler(memoryService service.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// Create queues generation; the memory shows up in Get once the worker is done.
func (h *MemoryHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.DateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.memoryService.Enqueue(ctx, middleware.GetUser(ctx).ID, req.Date); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.MemoryQueuedResponse{Date: req.Date, Status: "queued"})
}

func (h *MemoryHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	memories, err := h.memoryService.List(ctx, middleware.GetUser(ctx).ID, parseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]*dto.MemoryResponse, 0, len(memories))
	for i := range memories {
		resp = append(resp, dto.ToMemoryResponse(&memories[i]))
	}
	c.JSON(http.StatusOK, gin.H{"memories": resp})
}

func (h *MemoryHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	memory, err := h.memoryService.Get(ctx, middleware.GetUser(ctx).ID, c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToMemoryResponse(memory))
}
