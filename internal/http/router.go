package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/lifeos/memoryd/internal/http/handlers"
	httpMW "github.com/lifeos/memoryd/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware   *httpMW.AuthMiddleware
	AuthHandler      *httpH.AuthHandler
	VideoHandler     *httpH.VideoHandler
	MemoryHandler    *httpH.MemoryHandler
	HighlightHandler *httpH.HighlightHandler
	InsightHandler   *httpH.InsightHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS())

	r.GET("/healthcheck", httpH.Health)

	if cfg.AuthHandler != nil {
		r.POST("/auth/register", cfg.AuthHandler.Register)
		r.POST("/auth/login", cfg.AuthHandler.Login)
	}

	protected := r.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.GET("/auth/me", cfg.AuthHandler.Me)
		}

		if cfg.VideoHandler != nil {
			protected.GET("/videos", cfg.VideoHandler.List)
			protected.GET("/videos/:id", cfg.VideoHandler.Get)
			protected.DELETE("/videos/:id", cfg.VideoHandler.Delete)
		}

		if cfg.MemoryHandler != nil {
			protected.POST("/memory/create", cfg.MemoryHandler.Create)
			protected.POST("/memory/search", cfg.MemoryHandler.Search)
			protected.POST("/memory/chatbot", cfg.MemoryHandler.Chatbot)
			protected.DELETE("/memory/delete", cfg.MemoryHandler.Delete)
		}

		if cfg.HighlightHandler != nil {
			protected.GET("/highlights/list", cfg.HighlightHandler.List)
		}

		if cfg.InsightHandler != nil {
			protected.GET("/insights/recent", cfg.InsightHandler.Recent)
			protected.GET("/insights/summary", cfg.InsightHandler.Summary)
		}
	}

	return r
}
