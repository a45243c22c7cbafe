// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"metaquery/internal/domain"
	"metaquery/internal/infrastructure/http/v1/handlers"
	"metaquery/internal/infrastructure/http/v1/middleware"
	"metaquery/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Backend is pinged by the readiness probe (optional)
	Backend handlers.Pinger

	// Gatherer exposes metrics on /metrics when set
	Gatherer prometheus.Gatherer

	// Entities are mounted under /api/v1
	Entities []EntityRoute
}

// EntityRoute mounts the query endpoints of one entity.
type EntityRoute struct {
	Path     string
	Register func(rg *gin.RouterGroup)
}

// Route builds the EntityRoute serving svc under path:
//
//	GET /api/v1/{path}        one page of matching records
//	GET /api/v1/{path}/count  number of matching records
func Route[R any](path string, svc *domain.QueryService[R]) EntityRoute {
	return EntityRoute{
		Path: path,
		Register: func(rg *gin.RouterGroup) {
			handlers.NewQueryHandler(handlers.NewBaseHandler(), svc).RegisterRoutes(rg)
		},
	}
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters: ErrorHandler renders what Recovery records)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Backend)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	for _, e := range cfg.Entities {
		e.Register(v1.Group("/" + e.Path))
	}

	return router
}
