package settingsmodule

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/curatorapp/curator/internal/database"
)

func setupModule(t *testing.T) *Module {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewModule(db)
}

func TestSetAndGetSetting(t *testing.T) {
	m := setupModule(t)

	_, ok := m.GetSetting("tmdb_api_key")
	assert.False(t, ok)

	require.NoError(t, m.SetSetting("tmdb_api_key", "secret"))

	value, ok := m.GetSetting("tmdb_api_key")
	assert.True(t, ok)
	assert.Equal(t, "secret", value)
}

func TestSetSettingOverwrites(t *testing.T) {
	m := setupModule(t)

	require.NoError(t, m.SetSetting("tmdb_api_key", "old"))
	require.NoError(t, m.SetSetting("tmdb_api_key", "new"))

	value, _ := m.GetSetting("tmdb_api_key")
	assert.Equal(t, "new", value)
}

func TestSettingsHTTPRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := setupModule(t)
	r := gin.New()
	m.RegisterRoutes(r)

	body, _ := json.Marshal(map[string]string{"value": "secret"})
	req := httptest.NewRequest(http.MethodPut, "/api/settings/tmdb_api_key", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/settings/tmdb_api_key", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "secret", resp["value"])
}

func TestGetUnknownSettingIs404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := setupModule(t)
	r := gin.New()
	m.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/api/settings/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
