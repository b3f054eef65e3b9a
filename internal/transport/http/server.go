package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/auth"
	"github.com/skillbridge/messaging-server/internal/blob"
	"github.com/skillbridge/messaging-server/internal/config"
	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/metrics"
	"github.com/skillbridge/messaging-server/internal/store"
)

// NewRouter assembles the gin engine with the socket endpoint, the
// authenticated REST group and the operational routes.
func NewRouter(hub *core.Hub, st store.MessageStore, blobs blob.Store, verifier *auth.Verifier, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, verifier, cfg.SendRateLimit, logger)))

	// Locally stored attachments are served straight from disk. S3 URLs
	// resolve to the bucket and never hit this server.
	if local, ok := blobs.(*blob.LocalStore); ok {
		router.Static("/uploads", local.Dir())
	}

	handlers := NewHandlers(st, hub, blobs, cfg.MaxUploadBytes, logger)

	api := router.Group("/api", AuthMiddleware(verifier, logger))
	{
		api.GET("/conversations", handlers.GetConversations)
		api.GET("/messages", handlers.GetMessages)
		api.PUT("/messages/:id/read", handlers.MarkRead)
		api.POST("/messages/upload", handlers.Upload)
	}

	return router
}

// NewServer wraps the router in an http.Server bound to the configured address.
func NewServer(router *gin.Engine, cfg config.Config) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
