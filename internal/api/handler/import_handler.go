package handler

import (
	"errors"
	"net/http"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/fennelouski/cardoncue/internal/logger"
	"github.com/fennelouski/cardoncue/internal/repository"
	"github.com/fennelouski/cardoncue/internal/service"
	"github.com/gin-gonic/gin"
)

// ImportHandler exposes the import queue over HTTP: enqueue, the
// card-creation coverage check, the batch trigger, status, and removal.
type ImportHandler struct {
	queue     *service.QueueService
	processor *service.Processor
	logger    *logger.Logger
}

// NewImportHandler creates a new import handler.
// Parameters:
//   - queue: queue intake/status service.
//   - processor: batch processor invoked by the trigger endpoint.
//   - log: logger instance.
// Returns:
//   - *ImportHandler: initialized handler.
func NewImportHandler(queue *service.QueueService, processor *service.Processor, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		queue:     queue,
		processor: processor,
		logger:    log,
	}
}

// EnqueueRequest represents the enqueue API request.
type EnqueueRequest struct {
	MerchantName string  `json:"merchant_name" binding:"required"`
	Priority     int     `json:"priority"`
	AnchorLat    float64 `json:"anchor_lat"`
	AnchorLon    float64 `json:"anchor_lon"`
	RadiusKm     float64 `json:"radius_km" binding:"required"`
	AddedReason  string  `json:"added_reason"`
}

// EnqueueResponse represents the enqueue API response.
type EnqueueResponse struct {
	Job       *domain.ImportJob `json:"job"`
	Duplicate bool              `json:"duplicate"`
}

// Enqueue handles POST /api/v1/import/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ImportHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, created, err := h.queue.Enqueue(c.Request.Context(), service.EnqueueRequest{
		MerchantName: req.MerchantName,
		Priority:     req.Priority,
		Anchor:       domain.GeoPoint{Lat: req.AnchorLat, Lon: req.AnchorLon},
		RadiusKm:     req.RadiusKm,
		AddedReason:  req.AddedReason,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, EnqueueResponse{Job: job, Duplicate: !created})
}

// EnsureRequest represents the card-creation coverage check request.
type EnsureRequest struct {
	MerchantName string  `json:"merchant_name" binding:"required"`
	AnchorLat    float64 `json:"anchor_lat"`
	AnchorLon    float64 `json:"anchor_lon"`
	RadiusKm     float64 `json:"radius_km" binding:"required"`
}

// Ensure handles POST /api/v1/import/ensure. It always answers 202 on valid
// input: card creation must never block on, or fail because of, resolution.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ImportHandler) Ensure(c *gin.Context) {
	var req EnsureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, enqueued, err := h.queue.EnsureCoverage(c.Request.Context(),
		req.MerchantName,
		domain.GeoPoint{Lat: req.AnchorLat, Lon: req.AnchorLon},
		req.RadiusKm)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Store trouble must not surface to the card-creation flow.
		logger.CtxWarn(c.Request.Context(), "Coverage check failed, continuing: %v", err)
		c.JSON(http.StatusAccepted, gin.H{"enqueued": false})
		return
	}

	resp := gin.H{"enqueued": enqueued}
	if job != nil {
		resp["job_id"] = job.ID
	}
	c.JSON(http.StatusAccepted, resp)
}

// ProcessRequest represents the batch trigger request body.
type ProcessRequest struct {
	BatchSize int `json:"batch_size"`
}

// Process handles POST /api/v1/import/process. It is intended to be called by
// an external periodic scheduler, or manually; either way it drains at most
// one batch and returns per-job detail.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ImportHandler) Process(c *gin.Context) {
	var req ProcessRequest
	// Body is optional; a bare POST runs the configured batch size.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.processor.ProcessBatch(c.Request.Context(), req.BatchSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/import/status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ImportHandler) Status(c *gin.Context) {
	filter := domain.JobStatus(c.Query("status"))
	switch filter {
	case "", domain.JobStatusPending, domain.JobStatusProcessing,
		domain.JobStatusCompleted, domain.JobStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}

	stats, err := h.queue.Stats(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Remove handles DELETE /api/v1/import/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ImportHandler) Remove(c *gin.Context) {
	id := c.Param("id")
	if err := h.queue.Remove(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ClearCompleted handles DELETE /api/v1/import/completed. The confirm
// query parameter is required to make bulk deletion an explicit act.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ImportHandler) ClearCompleted(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pass confirm=true to clear completed jobs"})
		return
	}

	removed, err := h.queue.ClearCompleted(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// isValidationError reports whether err is a request-shape problem rather
// than a store failure.
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrEmptyMerchantName) ||
		errors.Is(err, domain.ErrInvalidRadius) ||
		errors.Is(err, domain.ErrInvalidCoordinate)
}
