package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/docflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docflow-backend/internal/http/middleware"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	DocumentHandler   *httpH.DocumentHandler
	LeaseHandler      *httpH.LeaseHandler
	ConnectionHandler *httpH.ConnectionHandler
	RealtimeHandler   *httpH.RealtimeHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("docflow"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.DocumentHandler != nil {
			api.POST("/documents", cfg.DocumentHandler.Ingest)
			api.GET("/documents/:id/state", cfg.DocumentHandler.GetState)
			api.POST("/documents/:id/advance", cfg.DocumentHandler.Advance)
			api.POST("/documents/:id/retry", cfg.DocumentHandler.Retry)
			api.GET("/documents/:id/transitions", cfg.DocumentHandler.ListTransitions)
		}

		if cfg.LeaseHandler != nil {
			api.POST("/documents/:id/lease", cfg.LeaseHandler.Acquire)
			api.GET("/documents/:id/lease", cfg.LeaseHandler.GetByDocument)
			api.POST("/leases/:id/renew", cfg.LeaseHandler.Renew)
			api.DELETE("/leases/:id", cfg.LeaseHandler.Release)
		}

		if cfg.ConnectionHandler != nil {
			api.POST("/similarity/search", cfg.ConnectionHandler.Search)
			api.POST("/documents/:id/connections/propose", cfg.ConnectionHandler.Propose)
			api.GET("/documents/:id/connections", cfg.ConnectionHandler.List)
			api.GET("/connections/map", cfg.ConnectionHandler.Map)
		}

		if cfg.RealtimeHandler != nil {
			api.GET("/events/stream", cfg.RealtimeHandler.Stream)
		}
	}

	return r
}
