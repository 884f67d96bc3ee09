package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/v1pung/url-alias/internal/middleware"
	"github.com/v1pung/url-alias/internal/service"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	authService service.AuthService,
	rateLimiter *middleware.RateLimiter,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	linkHandler := NewLinkHandler(linkService, logger)
	authHandler := NewAuthHandler(authService, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)
		v1.POST("/auth/register", authHandler.Register)

		// Приватные операции: HTTP Basic
		private := v1.Group("")
		private.Use(middleware.BasicAuth(authService))
		{
			private.POST("/links", linkHandler.CreateLink)
			private.GET("/links", linkHandler.GetLinks)
			private.PATCH("/links/:code/deactivate", linkHandler.DeactivateLink)
			private.GET("/stats", linkHandler.GetStats)
		}
	}

	// Публичный редирект - без аутентификации, с rate limit-ом
	router.GET("/:code", rateLimiter.Middleware(), linkHandler.Redirect)

	return router
}
