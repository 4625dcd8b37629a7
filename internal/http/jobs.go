package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
)

// JobsController exposes the job store.
type JobsController struct {
	store    JobStore
	syncType entities.SyncType
}

func NewJobsController(store JobStore, syncType entities.SyncType) *JobsController {
	if syncType == "" {
		syncType = entities.SyncTypePokepedia
	}
	return &JobsController{store: store, syncType: syncType}
}

// ListJobs handles GET /api/sync/jobs?phase=&status=&limit=
func (jc *JobsController) ListJobs(c *gin.Context) {
	filter := jobs.Filter{SyncType: jc.syncType}

	if raw := c.Query("phase"); raw != "" {
		phase, err := entities.ParsePhase(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "unknown_phase", err.Error())
			return
		}
		filter.Phase = phase
	}
	if raw := c.Query("status"); raw != "" {
		status := entities.JobStatus(raw)
		if !status.IsActive() && !status.IsTerminal() {
			respondBadRequest(c, "invalid status: "+raw)
			return
		}
		filter.Status = status
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	filter.Limit = limit

	list, err := jc.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "list jobs")
		return
	}
	if list == nil {
		list = []entities.SyncJob{}
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/sync/jobs/:id
func (jc *JobsController) GetJob(c *gin.Context) {
	job, err := jc.store.GetJob(c.Request.Context(), c.Param("id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		respondNotFound(c, "job")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /api/sync/jobs/:id/cancel
// The processor notices the flag before its next chunk and fails the job.
func (jc *JobsController) CancelJob(c *gin.Context) {
	jobID := c.Param("id")
	err := jc.store.RequestCancel(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		respondNotFound(c, "job")
		return
	case errors.Is(err, jobs.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "job_not_active", "job is not active")
		return
	case err != nil:
		respondInternalError(c, err, "cancel job")
		return
	}

	requestLogger(c).WithField("job_id", jobID).Info("Job cancellation requested")
	respondAccepted(c, "cancellation requested", gin.H{"job_id": jobID})
}
