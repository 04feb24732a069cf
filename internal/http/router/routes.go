package router

import (
	"github.com/gin-gonic/gin"

	"lumen.app/companion/internal/http/handler"
)

func AuthRouter(rg *gin.RouterGroup, h *handler.AuthHandler, requireSession gin.HandlerFunc) {
	rg.GET("/login", h.Login)
	rg.GET("/callback", h.Callback)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", requireSession, h.Me)
}

func ChatRouter(rg *gin.RouterGroup, h *handler.ChatHandler) {
	rg.POST("", h.Chat)
}

func SessionRouter(rg *gin.RouterGroup, h *handler.SessionHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id/style", h.SetStyle)
}

func SummaryRouter(rg *gin.RouterGroup, h *handler.SummaryHandler) {
	rg.POST("", h.Create)
	rg.GET("/:date", h.Get)
}

func MemoryRouter(rg *gin.RouterGroup, h *handler.MemoryHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:date", h.Get)
}

func BackendRouter(rg *gin.RouterGroup, h *handler.BackendHandler) {
	rg.GET("", h.List)
}
