package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

// SyncController handles sync trigger and status endpoints.
type SyncController struct {
	sync      SyncService
	status    StatusSource
	reclaimer Reclaimer
	syncType  entities.SyncType
}

func NewSyncController(sync SyncService, status StatusSource, reclaimer Reclaimer, syncType entities.SyncType) *SyncController {
	if syncType == "" {
		syncType = entities.SyncTypePokepedia
	}
	return &SyncController{sync: sync, status: status, reclaimer: reclaimer, syncType: syncType}
}

// SyncRequest is the body of POST /api/sync. Every field is optional.
type SyncRequest struct {
	Action                string `json:"action"`
	Phase                 string `json:"phase"`
	Priority              string `json:"priority"`
	ContinueUntilComplete bool   `json:"continueUntilComplete"`
	Async                 bool   `json:"async"`
}

// Trigger handles POST /api/sync.
// Without a phase it advances whichever job is active. With "async" the phase
// is queued and the response is 202.
func (sc *SyncController) Trigger(c *gin.Context) {
	var req SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}
	if req.Action != "" && req.Action != "start" {
		respondBadRequest(c, "unsupported action: "+req.Action)
		return
	}

	// A client hanging up must not abort a chunk mid-write.
	ctx := context.WithoutCancel(c.Request.Context())

	if req.Phase == "" {
		if req.Async {
			respondBadRequest(c, "async requests need a phase")
			return
		}
		result, err := sc.sync.AdvanceActive(ctx, req.ContinueUntilComplete)
		if err != nil {
			respondSyncError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	phase, err := entities.ParsePhase(req.Phase)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unknown_phase", err.Error())
		return
	}
	phaseReq := syncer.PhaseRequest{
		Phase:                 phase,
		Priority:              defaultPriority(phase, req.Priority),
		ContinueUntilComplete: req.ContinueUntilComplete,
	}

	if req.Async {
		result, err := sc.sync.EnqueuePhase(ctx, phaseReq)
		if err != nil {
			respondSyncError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, result)
		return
	}

	result, err := sc.sync.RequestPhase(ctx, phaseReq)
	if err != nil {
		respondSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/sync/status.
func (sc *SyncController) Status(c *gin.Context) {
	status, err := sc.status.Poll(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "poll sync status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Local handles GET /api/sync/local.
func (sc *SyncController) Local(c *gin.Context) {
	local, err := sc.status.CheckLocalStatus(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "count local rows")
		return
	}
	c.JSON(http.StatusOK, local)
}

// Reclaim handles POST /api/sync/reclaim.
// It runs the watchdog over one phase, or every phase when none is given.
func (sc *SyncController) Reclaim(c *gin.Context) {
	var phase entities.Phase
	if raw := c.Query("phase"); raw != "" {
		p, err := entities.ParsePhase(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "unknown_phase", err.Error())
			return
		}
		phase = p
	}

	reclaimed, err := sc.reclaimer.ReclaimStale(c.Request.Context(), sc.syncType, phase)
	if err != nil {
		respondInternalError(c, err, "reclaim stale jobs")
		return
	}
	if reclaimed == nil {
		reclaimed = []entities.SyncJob{}
	}
	c.JSON(http.StatusOK, gin.H{
		"reclaimed": reclaimed,
		"count":     len(reclaimed),
	})
}

// defaultPriority makes the master phase critical unless the caller said otherwise.
func defaultPriority(phase entities.Phase, raw string) entities.Priority {
	if raw == "" && phase == entities.PhaseMaster {
		return entities.PriorityCritical
	}
	return entities.ParsePriority(raw)
}

func respondSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, syncer.ErrUnknownPhase):
		respondError(c, http.StatusBadRequest, "unknown_phase", err.Error())
	case errors.Is(err, jobs.ErrDuplicateActiveJob):
		respondError(c, http.StatusConflict, "duplicate_active_job", err.Error())
	case errors.Is(err, syncer.ErrCancelled):
		respondError(c, http.StatusConflict, "cancelled", err.Error())
	case errors.Is(err, syncer.ErrNoQueue):
		respondError(c, http.StatusServiceUnavailable, "queue_disabled", err.Error())
	default:
		respondInternalError(c, err, "sync request")
	}
}
