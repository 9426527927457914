package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kurihiro0119/bucket-harvest/internal/errors"
	"github.com/kurihiro0119/bucket-harvest/internal/storage"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// Handler handles API requests
type Handler struct {
	store storage.Storage
}

// NewHandler creates a new API handler
func NewHandler(store storage.Storage) *Handler {
	return &Handler{
		store: store,
	}
}

// ListRuns returns archived runs, newest first
// GET /api/v1/runs?owner=&limit=
func (h *Handler) ListRuns(c *gin.Context) {
	owner := c.Query("owner")
	limit := parseIntParam(c.Query("limit"), defaultRunLimit)
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	runs, err := h.store.ListRuns(c.Request.Context(), owner, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": runs,
	})
}

// GetRun returns a single run header
// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": run,
	})
}

// GetRunRepositories returns the ranked repository metrics of a run
// GET /api/v1/runs/:id/repositories
func (h *Handler) GetRunRepositories(c *gin.Context) {
	id := c.Param("id")
	if !h.runExists(c, id) {
		return
	}

	metrics, err := h.store.GetRepositoryMetrics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": metrics,
	})
}

// GetRunIssues returns the issue records of a run
// GET /api/v1/runs/:id/issues
func (h *Handler) GetRunIssues(c *gin.Context) {
	id := c.Param("id")
	if !h.runExists(c, id) {
		return
	}

	issues, err := h.store.GetIssueRecords(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": issues,
	})
}

// GetRunFailures returns the failures of a run
// GET /api/v1/runs/:id/failures
func (h *Handler) GetRunFailures(c *gin.Context) {
	id := c.Param("id")
	if !h.runExists(c, id) {
		return
	}

	failures, err := h.store.GetFailures(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": failures,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// runExists writes a 404 and returns false for unknown runs
func (h *Handler) runExists(c *gin.Context, id string) bool {
	if _, err := h.store.GetRun(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

func parseIntParam(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(s)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
