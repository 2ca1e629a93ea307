package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/delivery/http/middleware"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/usecase"
)

// RouterDeps carries everything the router wires into handlers.
type RouterDeps struct {
	DeleteUC      *usecase.QueueDeletionUsecase
	BatchUC       *usecase.QueueBatchUsecase
	GetJobUC      *usecase.GetJobUsecase
	CancelUC      *usecase.CancelJobUsecase
	AuditUC       *usecase.AuditHistoryUsecase
	RestoreUC     *usecase.RestoreUsecase
	MaintenanceUC *usecase.MaintenanceUsecase
	StatusUC      *usecase.SystemStatusUsecase
	Hub           *notify.Hub
	HealthChecks  map[string]HealthCheck
	Gatherer      prometheus.Gatherer
	Logger        *zap.Logger

	RateLimitPerMin int
	BodyLimit       int64
}

// NewRouter creates and configures the Gin router with all routes and middleware.
// ctx bounds background work started by middleware.
func NewRouter(ctx context.Context, deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		cascade := v1.Group("/cascade")
		cascade.Use(middleware.Identity())
		if deps.RateLimitPerMin > 0 {
			cascade.Use(middleware.RateLimiter(ctx, deps.RateLimitPerMin))
		}
		if deps.BodyLimit > 0 {
			cascade.Use(middleware.JSONBody(deps.BodyLimit))
		}

		h := NewCascadeHandler(deps.DeleteUC, deps.BatchUC, deps.GetJobUC, deps.CancelUC, deps.AuditUC, deps.RestoreUC, deps.Logger)
		cascade.POST("/delete/batch", h.DeleteBatch)
		cascade.POST("/delete/:id", h.Delete)
		cascade.GET("/job/:jobId", h.GetJob)
		cascade.GET("/audit/:id", h.AuditHistory)

		events := NewEventsHandler(deps.Hub, deps.Logger)
		cascade.GET("/events", events.Stream)

		admin := cascade.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			a := NewAdminHandler(deps.MaintenanceUC, deps.StatusUC, deps.Logger)
			admin.GET("/queue/status", a.QueueStatus)
			admin.GET("/metrics", a.Metrics)
			admin.POST("/cleanup/orphans", a.CleanupOrphans)
			admin.POST("/integrity/validate", a.ValidateIntegrity)
			admin.POST("/job/:jobId/cancel", h.CancelJob)
			admin.POST("/restore/:id", h.Restore)
		}
	}

	return router
}
