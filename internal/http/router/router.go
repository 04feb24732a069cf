package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen.app/companion/core/config"
	"lumen.app/companion/internal/http/handler"
	"lumen.app/companion/internal/http/middleware"
	"lumen.app/companion/internal/service"
)

type RouterConfig struct {
	DashboardURL string
	IsProduction bool
	RateLimit    config.RateLimitConfig
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireSession := middleware.RequireSession(services.Auth())

	authHandler := handler.NewAuthHandler(services.Auth(), cfg.DashboardURL, cfg.IsProduction)
	AuthRouter(router.Group("/auth"), authHandler, requireSession)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	v1 := router.Group("/api/v1", requireSession, limiter.Middleware())
	{
		ChatRouter(v1.Group("/chat"), handler.NewChatHandler(services.Chat()))
		SessionRouter(v1.Group("/sessions"), handler.NewSessionHandler(services.Chat()))
		SummaryRouter(v1.Group("/summaries"), handler.NewSummaryHandler(services.Summaries()))
		MemoryRouter(v1.Group("/memories"), handler.NewMemoryHandler(services.Memories()))
		BackendRouter(v1.Group("/backends"), handler.NewBackendHandler(services.Backends(), services.Pipelines().Names()))
	}
}
