package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/internal/http/dto"
)

type BackendHandler struct {
	resp dto.BackendsResponse
}

func NewBackendHandler(backends, profiles []string) *BackendHandler {
	return &BackendHandler{resp: dto.BackendsResponse{Backends: backends, Profiles: profiles}}
}

func (h *BackendHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.resp)
}
