package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/delivery/http/middleware"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/usecase"
)

// CascadeHandler handles deletion, job, audit and restore requests.
type CascadeHandler struct {
	deleteUC  *usecase.QueueDeletionUsecase
	batchUC   *usecase.QueueBatchUsecase
	getJobUC  *usecase.GetJobUsecase
	cancelUC  *usecase.CancelJobUsecase
	auditUC   *usecase.AuditHistoryUsecase
	restoreUC *usecase.RestoreUsecase
	logger    *zap.Logger
}

// NewCascadeHandler creates a new CascadeHandler.
func NewCascadeHandler(
	deleteUC *usecase.QueueDeletionUsecase,
	batchUC *usecase.QueueBatchUsecase,
	getJobUC *usecase.GetJobUsecase,
	cancelUC *usecase.CancelJobUsecase,
	auditUC *usecase.AuditHistoryUsecase,
	restoreUC *usecase.RestoreUsecase,
	logger *zap.Logger,
) *CascadeHandler {
	return &CascadeHandler{
		deleteUC:  deleteUC,
		batchUC:   batchUC,
		getJobUC:  getJobUC,
		cancelUC:  cancelUC,
		auditUC:   auditUC,
		restoreUC: restoreUC,
		logger:    logger,
	}
}

// Delete handles POST /api/v1/cascade/delete/:id
func (h *CascadeHandler) Delete(c *gin.Context) {
	var req usecase.DeletionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := h.deleteUC.Execute(c.Request.Context(), c.Param("id"), &req, middleware.ActorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// DeleteBatch handles POST /api/v1/cascade/delete/batch
func (h *CascadeHandler) DeleteBatch(c *gin.Context) {
	var req usecase.BatchDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := h.batchUC.Execute(c.Request.Context(), &req, middleware.ActorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetJob handles GET /api/v1/cascade/job/:jobId
func (h *CascadeHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	resp, err := h.getJobUC.Execute(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelJob handles POST /api/v1/cascade/job/:jobId/cancel
func (h *CascadeHandler) CancelJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	job, err := h.cancelUC.Execute(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// AuditHistory handles GET /api/v1/cascade/audit/:id?limit&offset
func (h *CascadeHandler) AuditHistory(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	page, err := h.auditUC.Execute(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Restore handles POST /api/v1/cascade/restore/:id
func (h *CascadeHandler) Restore(c *gin.Context) {
	var req usecase.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	res, err := h.restoreUC.Execute(c.Request.Context(), c.Param("id"), &req, middleware.ActorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
