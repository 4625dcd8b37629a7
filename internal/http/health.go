package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
)

type HealthResponse struct {
	Status   string            `json:"status"`
	Time     string            `json:"time"`
	Version  string            `json:"version,omitempty"`
	Driver   string            `json:"driver,omitempty"`
	SyncType entities.SyncType `json:"sync_type,omitempty"`
	Checks   map[string]string `json:"checks"`
}

// HealthController reports store connectivity and whether the engine has
// running jobs. A failing job query makes the service unhealthy.
type HealthController struct {
	db       Pinger
	jobs     JobStore
	driver   string
	syncType entities.SyncType
	version  string
}

func NewHealthController(cfg RouterConfig) *HealthController {
	return &HealthController{
		db:       cfg.Database,
		jobs:     cfg.Jobs,
		driver:   cfg.Driver,
		syncType: cfg.SyncType,
		version:  cfg.Version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	healthy := true

	if h.db == nil {
		checks["database"] = "not configured"
	} else if err := h.db.Ping(); err != nil {
		checks["database"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.jobs != nil {
		running, err := h.jobs.ListJobs(c.Request.Context(), jobs.Filter{
			SyncType: h.syncType,
			Status:   entities.JobStatusRunning,
		})
		switch {
		case err != nil:
			checks["sync"] = "error: " + err.Error()
			healthy = false
		case len(running) == 0:
			checks["sync"] = "idle"
		default:
			checks["sync"] = fmt.Sprintf("%d running", len(running))
		}
	}

	health := HealthResponse{
		Status:   "healthy",
		Time:     time.Now().Format(time.RFC3339),
		Version:  h.version,
		Driver:   h.driver,
		SyncType: h.syncType,
		Checks:   checks,
	}

	statusCode := http.StatusOK
	if !healthy {
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
