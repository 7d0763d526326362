package scannermodule

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/curatorapp/curator/internal/modules/scannermodule/scanner"
)

// RegisterRoutes registers the scan endpoints.
func (m *Module) RegisterRoutes(r *gin.Engine) {
	scan := r.Group("/api/scan")
	{
		scan.POST("", m.handleStartScan)
		scan.POST("/resume/:scanJobId", m.handleResumeScan)
		scan.GET("/status", m.handleScanStatus)
		scan.GET("/job/:scanJobId", m.handleGetJob)
		scan.GET("/jobs", m.handleListJobs)
		scan.POST("/cleanup-stale-jobs", m.handleCleanupStaleJobs)
	}
}

type scanRequest struct {
	Path    string              `json:"path" binding:"required"`
	Options scanner.ScanOptions `json:"options"`
}

// handleStartScan accepts a scan request and returns 202 immediately. The
// response says whether the scan started or waits in the queue.
func (m *Module) handleStartScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	result, err := m.scheduler.Enqueue(req.Path, req.Options)
	if err != nil {
		var verr *scanner.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          verr.Reason,
				"recommendation": verr.Recommendation,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (m *Module) handleResumeScan(c *gin.Context) {
	jobID, err := parseJobID(c.Param("scanJobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan job id"})
		return
	}

	result, err := m.scheduler.Resume(jobID)
	if err != nil {
		var verr *scanner.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          verr.Reason,
				"recommendation": verr.Recommendation,
			})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (m *Module) handleGetJob(c *gin.Context) {
	jobID, err := parseJobID(c.Param("scanJobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan job id"})
		return
	}

	job, err := m.scheduler.Job(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (m *Module) handleListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := m.scheduler.RecentJobs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (m *Module) handleCleanupStaleJobs(c *gin.Context) {
	removed, err := m.scheduler.CleanupStaleJobs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func parseJobID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}
