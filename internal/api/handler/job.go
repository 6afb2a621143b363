package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avelar/docindex/internal/api/middleware"
	"github.com/avelar/docindex/internal/billing"
	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/service"
)

// JobHandler handles indexing job endpoints.
type JobHandler struct {
	indexing *service.IndexingService
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - indexing: indexing service instance.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(indexing *service.IndexingService) *JobHandler {
	return &JobHandler{indexing: indexing}
}

type createJobRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	FileID    string `json:"file_id" binding:"required"`
	MimeType  string `json:"mime_type"`
	NeedsOCR  bool   `json:"needs_ocr"`
	CreatedBy string `json:"created_by"`
}

// CreateJob handles POST /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	job, err := h.indexing.CreateJob(c.Request.Context(), &service.CreateJobRequest{
		ProjectID: req.ProjectID,
		FileID:    req.FileID,
		CreatedBy: req.CreatedBy,
		MimeType:  req.MimeType,
		NeedsOCR:  req.NeedsOCR,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.GetLogger(c).WithFields(logger.Fields{
		logger.FieldJobID:     job.ID,
		logger.FieldProjectID: job.ProjectID,
		logger.FieldFileID:    job.FileID,
	}).Info("Indexing job accepted")

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": job.Status,
		"phase":  job.PhaseCurrent,
	})
}

// GetProgress handles GET /api/v1/jobs/:id.
func (h *JobHandler) GetProgress(c *gin.Context) {
	timelineLimit := 0
	if raw := c.Query("timeline_limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeline_limit must be a non-negative integer"})
			return
		}
		timelineLimit = parsed
	}

	progress, err := h.indexing.GetProgress(c.Request.Context(), c.Param("id"), timelineLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// ListJobs handles GET /api/v1/jobs?project_id=...
func (h *JobHandler) ListJobs(c *gin.Context) {
	projectID := c.Query("project_id")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	jobs, err := h.indexing.ListJobs(c.Request.Context(), projectID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// Cancel handles POST /api/v1/jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	if err := h.indexing.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": c.Param("id"), "cancel_requested": true})
}

// writeError maps domain errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, billing.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case domain.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
