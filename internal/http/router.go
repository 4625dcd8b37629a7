package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Routes whose dependency is missing from cfg are not registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(cfg.Logger))
	router.Use(gin.Recovery())

	// Health endpoints
	health := NewHealthController(cfg)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	// Sync trigger and status endpoints
	if cfg.Sync != nil && cfg.Status != nil && cfg.Reclaimer != nil {
		syncController := NewSyncController(cfg.Sync, cfg.Status, cfg.Reclaimer, cfg.SyncType)
		router.POST("/api/sync", syncController.Trigger)
		router.GET("/api/sync/status", syncController.Status)
		router.GET("/api/sync/local", syncController.Local)
		router.POST("/api/sync/reclaim", syncController.Reclaim)
	}

	// Job store endpoints
	if cfg.Jobs != nil {
		jobsController := NewJobsController(cfg.Jobs, cfg.SyncType)
		router.GET("/api/sync/jobs", jobsController.ListJobs)
		router.GET("/api/sync/jobs/:id", jobsController.GetJob)
		router.POST("/api/sync/jobs/:id/cancel", jobsController.CancelJob)
	}

	// Progress stream
	if cfg.Events != nil {
		eventsController := NewEventsController(cfg.Events)
		router.GET("/api/sync/events", eventsController.Stream)
	}

	// Task management endpoints
	if cfg.Tasks != nil {
		tasksController := NewTasksController(cfg.Tasks)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}
