package scannermodule

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/events"
)

func setupTestModule(t *testing.T) (*Module, *gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := config.ScannerConfig{
		TVBatchSize:        5,
		MovieBatchSize:     25,
		StaleRunningAfter:  24 * time.Hour,
		FailedRetention:    168 * time.Hour,
		BroadRootSample:    50,
		BroadRootThreshold: 0.7,
	}
	bus := events.NewEventBus(events.DefaultBusConfig())
	m := NewModule(db, cfg, bus, nil)

	r := gin.New()
	m.RegisterRoutes(r)
	return m, r, db
}

func postScan(t *testing.T, r *gin.Engine, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitForCompletion(t *testing.T, m *Module, jobID uint32) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Scheduler().Job(jobID)
		require.NoError(t, err)
		if job.Terminal() {
			require.Equal(t, database.ScanJobCompleted, job.Status, job.StatusMessage)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never finished", jobID)
}

func TestStartScanReturns202(t *testing.T) {
	m, r, _ := setupTestModule(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Heat (1995)"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Heat (1995)", "Heat (1995).mkv"), []byte("x"), 0o644))

	w := postScan(t, r, map[string]interface{}{
		"path":    root,
		"options": map[string]interface{}{"mediaType": "MOVIE"},
	})

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Queued    bool   `json:"queued"`
		ScanJobID uint32 `json:"scanJobId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Queued)
	require.NotZero(t, resp.ScanJobID)

	waitForCompletion(t, m, resp.ScanJobID)
}

func TestStartScanRejectsSystemPath(t *testing.T) {
	_, r, db := setupTestModule(t)

	w := postScan(t, r, map[string]interface{}{
		"path":    "/etc",
		"options": map[string]interface{}{"mediaType": "MOVIE"},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
	assert.NotEmpty(t, resp["recommendation"])

	var count int64
	db.Model(&database.ScanJob{}).Count(&count)
	assert.Zero(t, count)
}

func TestStartScanRejectsInvalidMediaType(t *testing.T) {
	_, r, _ := setupTestModule(t)

	w := postScan(t, r, map[string]interface{}{
		"path":    t.TempDir(),
		"options": map[string]interface{}{"mediaType": "VINYL"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartScanRequiresPath(t *testing.T) {
	_, r, _ := setupTestModule(t)

	w := postScan(t, r, map[string]interface{}{
		"options": map[string]interface{}{"mediaType": "MOVIE"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobNotFound(t *testing.T) {
	_, r, _ := setupTestModule(t)

	req := httptest.NewRequest(http.MethodGet, "/api/scan/job/12345", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanStatusIdle(t *testing.T) {
	_, r, _ := setupTestModule(t)

	req := httptest.NewRequest(http.MethodGet, "/api/scan/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Active      bool `json:"active"`
		QueueLength int  `json:"queueLength"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Active)
	assert.Zero(t, resp.QueueLength)
}

func TestListJobs(t *testing.T) {
	m, r, _ := setupTestModule(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Alien (1979)"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Alien (1979)", "Alien (1979).mkv"), []byte("x"), 0o644))

	w := postScan(t, r, map[string]interface{}{
		"path":    root,
		"options": map[string]interface{}{"mediaType": "MOVIE"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var started struct {
		ScanJobID uint32 `json:"scanJobId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	waitForCompletion(t, m, started.ScanJobID)

	req := httptest.NewRequest(http.MethodGet, "/api/scan/jobs", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var resp struct {
		Jobs []database.ScanJob `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, database.ScanJobCompleted, resp.Jobs[0].Status)
}

func TestCleanupStaleJobsEndpoint(t *testing.T) {
	_, r, db := setupTestModule(t)

	old := time.Now().Add(-48 * time.Hour)
	job := database.ScanJob{
		ScanPath:  "/media/library",
		MediaType: database.MediaTypeMovie,
		Status:    database.ScanJobRunning,
	}
	require.NoError(t, db.Create(&job).Error)
	require.NoError(t, db.Model(&database.ScanJob{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{"created_at": old, "started_at": &old}).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/scan/cleanup-stale-jobs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp["removed"])
}
