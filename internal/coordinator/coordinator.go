// Package coordinator is the client side of the sync engine. It decides
// whether the local store needs a sync, requests phases in dependency order and
// turns job rows into a user-facing status with an ETA.
//
// The job store is the source of truth. Pushed events only trigger an earlier
// poll.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/events"
	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

var (
	ErrAlreadySyncing = errors.New("a sync is already in progress")
	ErrStalled        = errors.New("sync made no progress")
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultStaleAfter     = 5 * time.Minute
	defaultStuckThreshold = 10 * time.Minute

	// maxStalledRequests bounds consecutive phase requests that process no chunk.
	maxStalledRequests = 5

	staleCleanupReason = "Stale job detected - no heartbeat in 10+ minutes"
)

type JobReader interface {
	ListActive(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error)
	LatestByPhase(ctx context.Context, syncType entities.SyncType) (map[entities.Phase]*entities.SyncJob, error)
	MarkFailed(ctx context.Context, jobID, reason string) error
}

type LocalCounter interface {
	CountByPhase(ctx context.Context) (map[entities.Phase]int64, error)
}

type PhaseRequester interface {
	RequestPhase(ctx context.Context, req syncer.PhaseRequest) (*syncer.PhaseResult, error)
}

type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// State is the client-observed sync state. StateStopped is derived from a
// stale heartbeat and never stored.
type State string

const (
	StateIdle      State = "idle"
	StateSyncing   State = "syncing"
	StateCompleted State = "completed"
	StateError     State = "error"
	StateStopped   State = "stopped"
)

// Status is the user-facing view of the sync.
type Status struct {
	Phase                  entities.Phase `json:"phase"`
	Progress               float64        `json:"progress"`
	Status                 State          `json:"status"`
	Message                string         `json:"message"`
	EstimatedTimeRemaining *float64       `json:"estimatedTimeRemaining"` // seconds
	IsStale                bool           `json:"isStale"`

	JobID        string    `json:"jobId,omitempty"`
	ItemsSynced  int       `json:"itemsSynced"`
	CurrentChunk int       `json:"currentChunk"`
	TotalChunks  int       `json:"totalChunks"`
	LocalCount   int64     `json:"localCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LocalStatus summarizes the local store.
type LocalStatus struct {
	Counts    map[entities.Phase]int64 `json:"counts"`
	Total     int64                    `json:"total"`
	NeedsSync bool                     `json:"needsSync"`
	NextPhase entities.Phase           `json:"nextPhase,omitempty"`
}

type Coordinator struct {
	jobs       JobReader
	local      LocalCounter
	requester  PhaseRequester
	subscriber Subscriber
	syncType   entities.SyncType
	cfg        config.Coordinator
	stuck      time.Duration
	eta        *Estimator
	log        *logger.Logger
	now        func() time.Time

	mu      sync.RWMutex
	status  Status
	running atomic.Bool
}

func New(jobReader JobReader, local LocalCounter, requester PhaseRequester, syncType entities.SyncType, cfg config.Coordinator, stuckThreshold time.Duration) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if stuckThreshold <= 0 {
		stuckThreshold = defaultStuckThreshold
	}
	return &Coordinator{
		jobs:      jobReader,
		local:     local,
		requester: requester,
		syncType:  syncType,
		cfg:       cfg,
		stuck:     stuckThreshold,
		eta:       NewEstimator(cfg.ETAWindow),
		log:       logger.Default().Component("coordinator"),
		now:       time.Now,
		status:    Status{Status: StateIdle, Message: "Initializing..."},
	}
}

// SetSubscriber makes Watch poll early whenever the progress channel fires.
func (c *Coordinator) SetSubscriber(s Subscriber) {
	c.subscriber = s
}

// Status returns the last computed status.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Syncing reports whether StartSync is running in this process.
func (c *Coordinator) Syncing() bool {
	return c.running.Load()
}

func (c *Coordinator) setStatus(s Status) Status {
	s.UpdatedAt = c.now()
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	return s
}

// CheckLocalStatus counts local rows per phase. A phase without rows needs a
// sync; the first such phase is where StartSync begins.
func (c *Coordinator) CheckLocalStatus(ctx context.Context) (LocalStatus, error) {
	counts, err := c.local.CountByPhase(ctx)
	if err != nil {
		return LocalStatus{}, fmt.Errorf("count local rows: %w", err)
	}
	ls := LocalStatus{Counts: counts}
	for _, phase := range entities.Phases {
		ls.Total += counts[phase]
		if counts[phase] == 0 && !ls.NeedsSync {
			ls.NeedsSync = true
			ls.NextPhase = phase
		}
	}
	return ls, nil
}

// StartSync requests every phase from the first empty one onwards, repeating
// a phase until it completes. Failures are reflected in Status as well as
// returned.
func (c *Coordinator) StartSync(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadySyncing
	}
	defer c.running.Store(false)

	local, err := c.CheckLocalStatus(ctx)
	if err != nil {
		c.fail(err)
		return err
	}
	if !local.NeedsSync {
		c.log.Info("Local store is populated, nothing to sync")
		_, _ = c.Poll(ctx)
		return nil
	}

	phase := local.NextPhase
	c.log.WithField(logger.FieldPhase, phase).Info("Starting sync")
	stalled := 0
	for {
		priority := entities.PriorityStandard
		if phase == entities.PhaseMaster {
			priority = entities.PriorityCritical
		}

		res, err := c.requester.RequestPhase(ctx, syncer.PhaseRequest{
			Phase:                 phase,
			Priority:              priority,
			ContinueUntilComplete: true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err = fmt.Errorf("phase %s: %w", phase, err)
			c.fail(err)
			return err
		}
		if res.Job != nil && res.Job.Status == entities.JobStatusFailed {
			err := fmt.Errorf("phase %s: %s", phase, jobError(res.Job))
			c.fail(err)
			return err
		}
		_, _ = c.Poll(ctx)

		if res.Completed {
			next, ok := phase.Next()
			if !ok {
				c.log.Info("Sync completed")
				return nil
			}
			phase, stalled = next, 0
			continue
		}

		if res.ChunksProcessed > 0 {
			stalled = 0
		} else if stalled++; stalled >= maxStalledRequests {
			err := fmt.Errorf("phase %s: %w after %d requests: %s", phase, ErrStalled, stalled, res.Message)
			c.fail(err)
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay(res)):
		}
	}
}

// retryDelay paces re-requests: immediately after progress, one poll interval
// after an abandoned chunk.
func (c *Coordinator) retryDelay(res *syncer.PhaseResult) time.Duration {
	if res.ChunksProcessed > 0 {
		return 0
	}
	return c.cfg.PollInterval
}

func (c *Coordinator) fail(err error) {
	c.log.WithError(err).Error("Sync failed")
	prev := c.Status()
	c.setStatus(Status{
		Phase:      prev.Phase,
		Progress:   prev.Progress,
		Status:     StateError,
		Message:    fmt.Sprintf("Sync failed: %v", err),
		LocalCount: prev.LocalCount,
	})
}

// CleanupStaleJobs fails running jobs whose heartbeat is older than the server
// threshold and returns how many were failed.
func (c *Coordinator) CleanupStaleJobs(ctx context.Context) (int, error) {
	active, err := c.jobs.ListActive(ctx, c.syncType, "")
	if err != nil {
		return 0, fmt.Errorf("list active jobs: %w", err)
	}
	now := c.now()
	cleaned := 0
	for _, job := range active {
		if job.Status != entities.JobStatusRunning || now.Sub(lastSeen(&job)) <= c.stuck {
			continue
		}
		err := c.jobs.MarkFailed(ctx, job.JobID, staleCleanupReason)
		if errors.Is(err, jobs.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return cleaned, fmt.Errorf("fail stale job %s: %w", job.JobID, err)
		}
		cleaned++
	}
	if cleaned > 0 {
		c.log.WithField(logger.FieldCount, cleaned).Info("Cleaned up stale jobs")
	}
	return cleaned, nil
}

// Poll reads the job store and recomputes the status.
func (c *Coordinator) Poll(ctx context.Context) (Status, error) {
	local, err := c.CheckLocalStatus(ctx)
	if err != nil {
		c.fail(err)
		return c.Status(), err
	}
	active, err := c.jobs.ListActive(ctx, c.syncType, "")
	if err != nil {
		err = fmt.Errorf("list active jobs: %w", err)
		c.fail(err)
		return c.Status(), err
	}

	localCount := local.Counts[entities.PhaseEntity]
	if job := pickActive(active); job != nil {
		st, err := c.activeStatus(ctx, job)
		if err != nil {
			c.fail(err)
			return c.Status(), err
		}
		st.LocalCount = localCount
		return c.setStatus(st), nil
	}

	c.eta.Reset()
	st, err := c.idleStatus(ctx, local)
	if err != nil {
		c.fail(err)
		return c.Status(), err
	}
	st.LocalCount = localCount
	return c.setStatus(st), nil
}

func (c *Coordinator) activeStatus(ctx context.Context, job *entities.SyncJob) (Status, error) {
	now := c.now()
	st := Status{
		Phase:        job.Phase,
		Progress:     job.ProgressPercent,
		JobID:        job.JobID,
		ItemsSynced:  job.ItemsSynced,
		CurrentChunk: job.CurrentChunk,
		TotalChunks:  job.TotalChunks,
	}
	title := job.Phase.Title()

	if job.Status == entities.JobStatusPending {
		st.Status = StateSyncing
		st.Message = fmt.Sprintf("Syncing %s: queued", title)
		return st, nil
	}

	since := now.Sub(lastSeen(job))
	if since > c.cfg.StaleAfter {
		c.eta.Reset()
		completed, err := c.completedSince(ctx, lastSeen(job))
		if err != nil {
			return Status{}, err
		}
		if completed {
			return Status{Status: StateCompleted, Progress: 100, Message: "Sync completed"}, nil
		}
		st.Status = StateStopped
		st.IsStale = true
		st.Message = fmt.Sprintf("Sync appears stopped (no update in %dmin)", int(math.Round(since.Minutes())))
		if job.ItemsSynced > 0 {
			st.Message += fmt.Sprintf(". %d items synced in %s phase", job.ItemsSynced, title)
		} else if job.TotalChunks > 0 {
			st.Message += fmt.Sprintf(". Last: %s phase (%d/%d chunks)", title, job.CurrentChunk, job.TotalChunks)
		}
		return st, nil
	}

	st.Status = StateSyncing
	if remaining, ok := c.eta.Observe(job.JobID, now, job.ProgressPercent); ok {
		seconds := remaining.Seconds()
		st.EstimatedTimeRemaining = &seconds
	}
	if job.TotalChunks > 0 {
		st.Message = fmt.Sprintf("Syncing %s: %d/%d chunks (%.1f%%)", title, job.CurrentChunk, job.TotalChunks, job.ProgressPercent)
	} else {
		st.Message = fmt.Sprintf("Syncing %s (%.1f%%)", title, job.ProgressPercent)
	}
	if job.ItemsSynced > 0 {
		st.Message += fmt.Sprintf(", %d items synced", job.ItemsSynced)
	}
	return st, nil
}

func (c *Coordinator) idleStatus(ctx context.Context, local LocalStatus) (Status, error) {
	latest, err := c.jobs.LatestByPhase(ctx, c.syncType)
	if err != nil {
		return Status{}, fmt.Errorf("latest jobs: %w", err)
	}

	var newest *entities.SyncJob
	for _, job := range latest {
		if newest == nil || job.StartedAt.After(newest.StartedAt) {
			newest = job
		}
	}
	if newest != nil && newest.Status == entities.JobStatusFailed {
		return Status{
			Phase:    newest.Phase,
			Progress: newest.ProgressPercent,
			Status:   StateError,
			Message:  "Sync failed: " + jobError(newest),
			JobID:    newest.JobID,
		}, nil
	}
	if local.NeedsSync {
		return Status{Status: StateIdle, Message: "Ready to sync"}, nil
	}
	return Status{Status: StateCompleted, Progress: 100, Message: "Sync completed"}, nil
}

// completedSince reports whether any phase completed after t.
func (c *Coordinator) completedSince(ctx context.Context, t time.Time) (bool, error) {
	latest, err := c.jobs.LatestByPhase(ctx, c.syncType)
	if err != nil {
		return false, fmt.Errorf("latest jobs: %w", err)
	}
	for _, job := range latest {
		if job.Status == entities.JobStatusCompleted && job.CompletedAt != nil && job.CompletedAt.After(t) {
			return true, nil
		}
	}
	return false, nil
}

// Watch polls until ctx is done. Events from the subscriber trigger an
// immediate poll.
func (c *Coordinator) Watch(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var pushed <-chan events.Event
	if c.subscriber != nil {
		ch, unsubscribe := c.subscriber.Subscribe(16)
		defer unsubscribe()
		pushed = ch
	}

	c.pollAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollAndLog(ctx)
		case _, ok := <-pushed:
			if !ok {
				pushed = nil
				continue
			}
			c.pollAndLog(ctx)
		}
	}
}

func (c *Coordinator) pollAndLog(ctx context.Context) {
	if _, err := c.Poll(ctx); err != nil && ctx.Err() == nil {
		c.log.WithError(err).Warn("Status poll failed")
	}
}

// pickActive prefers the newest running job, then the newest pending one.
func pickActive(active []entities.SyncJob) *entities.SyncJob {
	var best *entities.SyncJob
	for i := range active {
		job := &active[i]
		switch {
		case best == nil:
			best = job
		case job.Status != best.Status:
			if job.Status == entities.JobStatusRunning {
				best = job
			}
		case job.StartedAt.After(best.StartedAt):
			best = job
		}
	}
	return best
}

func lastSeen(job *entities.SyncJob) time.Time {
	if job.LastHeartbeat.IsZero() {
		return job.StartedAt
	}
	return job.LastHeartbeat
}

func jobError(job *entities.SyncJob) string {
	if job.ErrorLog != nil && *job.ErrorLog != "" {
		return *job.ErrorLog
	}
	return "unknown error"
}
