package http

import (
	"github.com/gin-gonic/gin"

	"github.com/sloanfm/biscuit/internal/platform/logger"
	"github.com/sloanfm/biscuit/internal/platform/metrics"
)

// NewRouter wires the middleware chain and the API routes.
func NewRouter(handler *Handler, jwtSecret string, log *logger.Logger, mm *metrics.MetricsManager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(log, mm))
	router.Use(SessionMiddleware(jwtSecret, log))

	router.GET("/healthz", handler.Healthz)

	api := router.Group("/api")
	{
		api.GET("/feed", handler.GetFeed)
		api.GET("/search", handler.SearchReleases)

		api.POST("/reviews", handler.CreateReview)
		api.DELETE("/reviews/:releaseId", handler.DeleteReview)
		api.POST("/reviews/:id/like", handler.ToggleLike)
		api.GET("/reviews/:id/like", handler.GetLikeStatus)
	}

	return router
}
