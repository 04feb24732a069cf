package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/service"
	"lumen.app/companion/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// errorStatus maps service errors to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	var backendErr *brain.BackendError
	switch {
	case errors.Is(err, brain.ErrAllBackendsFailed):
		return http.StatusBadGateway, brain.ErrAllBackendsFailed.Error()
	case errors.As(err, &backendErr):
		return http.StatusBadGateway, backendErr.Error()
	case errors.Is(err, brain.ErrEmptyPrompt),
		errors.Is(err, brain.ErrNoBackends),
		errors.Is(err, service.ErrUnknownBackend),
		errors.Is(err, service.ErrUnknownSurface),
		errors.Is(err, service.ErrInvalidStyle),
		errors.Is(err, service.ErrInvalidDate):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrNoConversations):
		return http.StatusNotFound, service.ErrNoConversations.Error()
	case errors.Is(err, service.ErrSummaryUnavailable):
		return http.StatusServiceUnavailable, service.ErrSummaryUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "error", err)
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
