package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/sparky-web/internal/infra/config"
	"github.com/yanqian/sparky-web/pkg/metrics"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, registry *metrics.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.SetHTMLTemplate(loadTemplates())
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger, registry),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)

	// Rendering /chat allocates a view, so it shares the API's per-client budget.
	limit := rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger)

	router.GET("/", handler.Landing)
	router.GET("/chat", limit, handler.ChatPage)
	router.StaticFS("/static", staticFS())
	router.GET("/healthz", handler.Health)
	if cfg.Metrics.Enabled && registry != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(registry.Handler()))
	}

	api := router.Group("/api/v1", limit)
	{
		api.POST("/views", handler.OpenView)
		api.GET("/views/:id", handler.GetView)
		api.POST("/views/:id/chat", handler.SubmitChat)
		api.POST("/views/:id/summary", handler.SubmitSummary)
		api.POST("/views/:id/close", handler.CloseView)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
