package scannermodule

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// handleScanStatus reports the scheduler's current occupancy: the running
// job, if any, and how many requests wait behind it.
func (m *Module) handleScanStatus(c *gin.Context) {
	status := gin.H{
		"active":      false,
		"queueLength": m.scheduler.QueueLength(),
	}

	task := m.scheduler.ActiveTask()
	if task != nil {
		status["active"] = true
		status["scanJobId"] = task.JobID

		job, err := m.scheduler.Job(task.JobID)
		if err == nil {
			status["job"] = job
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, status)
}
