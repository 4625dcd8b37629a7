package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalogmirror/internal/database"
	"github.com/mrlokans/catalogmirror/internal/entities"
)

func setupHealthTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	return db
}

func healthRouter(db Pinger) *gin.Engine {
	router := gin.New()
	router.GET("/health", NewHealthController(RouterConfig{Database: db, Version: "1.0.0"}).Status)
	return router
}

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when database is connected", func(t *testing.T) {
		db := setupHealthTestDB(t)
		defer db.Close()

		w := performRequest(healthRouter(db), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.NotEmpty(t, response.Time)
	})

	t.Run("reports unconfigured database as healthy", func(t *testing.T) {
		w := performRequest(healthRouter(nil), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "not configured", response.Checks["database"])
	})

	t.Run("returns unhealthy when database connection is closed", func(t *testing.T) {
		db := setupHealthTestDB(t)
		require.NoError(t, db.Close())

		w := performRequest(healthRouter(db), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "error:")
	})

	t.Run("returns unhealthy when ping fails", func(t *testing.T) {
		w := performRequest(healthRouter(fakePinger{err: errors.New("disk I/O error")}), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "disk I/O error")
	})
}

func TestHealthController_EngineState(t *testing.T) {
	newRouter := func(store *fakeJobStore) *gin.Engine {
		router := gin.New()
		router.GET("/health", NewHealthController(RouterConfig{
			Database: fakePinger{},
			Jobs:     store,
			Driver:   "sqlite",
			SyncType: entities.SyncTypePokepedia,
		}).Status)
		return router
	}

	t.Run("reports driver, sync type and idle engine", func(t *testing.T) {
		store := &fakeJobStore{jobs: map[string]*entities.SyncJob{}}
		w := performRequest(newRouter(store), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "sqlite", response.Driver)
		assert.Equal(t, entities.SyncTypePokepedia, response.SyncType)
		assert.Equal(t, "idle", response.Checks["sync"])
		assert.Equal(t, entities.JobStatusRunning, store.lastFilter.Status)
		assert.Equal(t, entities.SyncTypePokepedia, store.lastFilter.SyncType)
	})

	t.Run("counts running jobs", func(t *testing.T) {
		store := &fakeJobStore{jobs: map[string]*entities.SyncJob{
			"job-1": {JobID: "job-1", Status: entities.JobStatusRunning},
			"job-2": {JobID: "job-2", Status: entities.JobStatusRunning},
		}}
		w := performRequest(newRouter(store), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"sync": "2 running"`)
	})

	t.Run("job store failure is unhealthy", func(t *testing.T) {
		store := &fakeJobStore{listErr: errors.New("database is locked")}
		w := performRequest(newRouter(store), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "database is locked")
	})
}

func TestRouter_PingAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("catalogmirror_chunks_processed_total 0\n"))
	})
	router := NewRouter(RouterConfig{Metrics: metrics, Version: "test"})

	w := performRequest(router, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")

	w = performRequest(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalogmirror_chunks_processed_total")
}

func TestRouter_OmitsRoutesWithoutDependencies(t *testing.T) {
	router := NewRouter(RouterConfig{})

	assert.Equal(t, http.StatusNotFound, performRequest(router, http.MethodPost, "/api/sync", "").Code)
	assert.Equal(t, http.StatusNotFound, performRequest(router, http.MethodGet, "/api/sync/jobs", "").Code)
	assert.Equal(t, http.StatusNotFound, performRequest(router, http.MethodGet, "/api/tasks/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, performRequest(router, http.MethodGet, "/metrics", "").Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	router := NewRouter(RouterConfig{})

	w := performRequest(router, http.MethodGet, "/ping", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := newRequest(http.MethodGet, "/ping")
	req.Header.Set(requestIDHeader, "req-42")
	w = serve(router, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}
