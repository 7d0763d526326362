// Package settingsmodule exposes the persisted key/value settings store.
// Metadata provider keys live here so rotation takes effect on the next
// request without a restart.
package settingsmodule

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
)

// Module provides settings storage and its HTTP surface.
type Module struct {
	db *gorm.DB
}

func NewModule(db *gorm.DB) *Module {
	return &Module{db: db}
}

// GetSetting reads a setting. The database is consulted on every call so
// changed values are picked up immediately.
func (m *Module) GetSetting(key string) (string, bool) {
	var setting database.Setting
	err := m.db.First(&setting, "key = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Failed to read setting %s: %v", key, err)
		}
		return "", false
	}
	return setting.Value, true
}

// SetSetting upserts a setting value.
func (m *Module) SetSetting(key, value string) error {
	return m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&database.Setting{Key: key, Value: value}).Error
}

// RegisterRoutes registers the settings endpoints.
func (m *Module) RegisterRoutes(r *gin.Engine) {
	settings := r.Group("/api/settings")
	{
		settings.GET("/:key", m.handleGet)
		settings.PUT("/:key", m.handlePut)
	}
}

func (m *Module) handleGet(c *gin.Context) {
	key := c.Param("key")
	value, ok := m.GetSetting(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

func (m *Module) handlePut(c *gin.Context) {
	key := c.Param("key")
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	if err := m.SetSetting(key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
