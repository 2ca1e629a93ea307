package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/delivery/http/middleware"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/usecase"
)

// AdminHandler serves the administrator-only queue and maintenance endpoints.
type AdminHandler struct {
	maintenanceUC *usecase.MaintenanceUsecase
	statusUC      *usecase.SystemStatusUsecase
	logger        *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(maintenanceUC *usecase.MaintenanceUsecase, statusUC *usecase.SystemStatusUsecase, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		maintenanceUC: maintenanceUC,
		statusUC:      statusUC,
		logger:        logger,
	}
}

// QueueStatus handles GET /api/v1/cascade/queue/status
func (h *AdminHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.statusUC.Status())
}

// Metrics handles GET /api/v1/cascade/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.statusUC.Metrics())
}

// CleanupOrphans handles POST /api/v1/cascade/cleanup/orphans
func (h *AdminHandler) CleanupOrphans(c *gin.Context) {
	h.queue(c, domain.JobOrphanedReferenceCleanup)
}

// ValidateIntegrity handles POST /api/v1/cascade/integrity/validate
func (h *AdminHandler) ValidateIntegrity(c *gin.Context) {
	h.queue(c, domain.JobIntegrityValidation)
}

func (h *AdminHandler) queue(c *gin.Context, t domain.JobType) {
	var req usecase.MaintenanceRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	job, err := h.maintenanceUC.Execute(c.Request.Context(), t, &req, middleware.ActorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": job.ID})
}
