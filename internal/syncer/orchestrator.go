package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/logger"
)

// Reclaimer fails stale jobs before the orchestrator decides anything.
type Reclaimer interface {
	ReclaimStale(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error)
}

// Enqueuer hands a pending job to the asynchronous task queue.
type Enqueuer interface {
	EnqueuePhase(ctx context.Context, jobID string, continueUntilComplete bool) (string, error)
}

type PhaseRequest struct {
	Phase                 entities.Phase
	Priority              entities.Priority
	ContinueUntilComplete bool
}

type PhaseResult struct {
	JobID           string            `json:"job_id"`
	Phase           entities.Phase    `json:"phase,omitempty"`
	TaskID          string            `json:"task_id,omitempty"`
	ChunksProcessed int               `json:"chunksProcessed"`
	Completed       bool              `json:"completed"`
	Message         string            `json:"message"`
	Job             *entities.SyncJob `json:"job,omitempty"`
}

// Orchestrator creates or reuses jobs and drives them chunk by chunk within
// an execution budget. All state lives in the job store, so any invocation
// can resume any job.
type Orchestrator struct {
	jobs      JobStore
	processor *Processor
	watchdog  Reclaimer
	enqueuer  Enqueuer
	cfg       config.Sync
	now       func() time.Time
}

func NewOrchestrator(jobStore JobStore, processor *Processor, watchdog Reclaimer, cfg config.Sync) *Orchestrator {
	if cfg.Type == "" {
		cfg.Type = string(entities.SyncTypePokepedia)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.CriticalChunkSize <= 0 {
		cfg.CriticalChunkSize = 20
	}
	if cfg.ExecutionBudget <= 0 {
		cfg.ExecutionBudget = 50 * time.Second
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 10
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 2 * time.Minute
	}
	if cfg.RecentHeartbeat <= 0 {
		cfg.RecentHeartbeat = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:      jobStore,
		processor: processor,
		watchdog:  watchdog,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetEnqueuer enables EnqueuePhase.
func (o *Orchestrator) SetEnqueuer(e Enqueuer) {
	o.enqueuer = e
}

func (o *Orchestrator) SyncType() entities.SyncType {
	return entities.SyncType(o.cfg.Type)
}

// ChunkSize returns the chunk size used for jobs of priority p.
func (o *Orchestrator) ChunkSize(p entities.Priority) int {
	if p == entities.PriorityCritical {
		return o.cfg.CriticalChunkSize
	}
	return o.cfg.ChunkSize
}

// RequestPhase reclaims stale jobs of the phase, reuses a healthy active job or
// creates one, and processes at least one chunk of it.
func (o *Orchestrator) RequestPhase(ctx context.Context, req PhaseRequest) (*PhaseResult, error) {
	if req.Phase.Index() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, req.Phase)
	}
	if req.Priority == "" {
		req.Priority = entities.PriorityStandard
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "orchestrator",
		logger.FieldSyncType:  o.cfg.Type,
		logger.FieldPhase:     req.Phase,
	})

	if _, err := o.watchdog.ReclaimStale(ctx, o.SyncType(), req.Phase); err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}

	job, err := o.acquire(ctx, req.Phase, req.Priority)
	if err != nil {
		return nil, err
	}
	return o.drive(ctx, job, req.ContinueUntilComplete)
}

// AdvanceActive drives whichever job is active: critical before standard,
// oldest first. It is the phase-less re-entry used by cron and the queue.
func (o *Orchestrator) AdvanceActive(ctx context.Context, continueUntilComplete bool) (*PhaseResult, error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "orchestrator",
		logger.FieldSyncType:  o.cfg.Type,
	})

	if _, err := o.watchdog.ReclaimStale(ctx, o.SyncType(), ""); err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}

	active, err := o.jobs.ListActive(ctx, o.SyncType(), "")
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return &PhaseResult{Message: "no active job"}, nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Status != active[j].Status {
			return active[i].Status == entities.JobStatusRunning
		}
		if ri, rj := active[i].Priority.Rank(), active[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return active[i].StartedAt.Before(active[j].StartedAt)
	})

	for i := range active {
		job := &active[i]
		if job.Status == entities.JobStatusPending {
			job, err = o.jobs.MarkRunning(ctx, job.JobID)
			if errors.Is(err, jobs.ErrDuplicateActiveJob) || errors.Is(err, jobs.ErrInvalidTransition) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		return o.drive(logger.WithField(ctx, logger.FieldPhase, job.Phase), job, continueUntilComplete)
	}
	return &PhaseResult{Message: "no active job"}, nil
}

// EnqueuePhase creates a pending job and hands it to the task queue. A healthy
// active job of the phase is returned instead of queuing a second one.
func (o *Orchestrator) EnqueuePhase(ctx context.Context, req PhaseRequest) (*PhaseResult, error) {
	if o.enqueuer == nil {
		return nil, ErrNoQueue
	}
	if req.Phase.Index() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, req.Phase)
	}
	if req.Priority == "" {
		req.Priority = entities.PriorityStandard
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "orchestrator",
		logger.FieldPhase:     req.Phase,
	})
	log := logger.FromContext(ctx)

	if _, err := o.watchdog.ReclaimStale(ctx, o.SyncType(), req.Phase); err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}

	active, err := o.jobs.ListActive(ctx, o.SyncType(), req.Phase)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if ok, _ := o.healthy(&active[i]); ok {
			return &PhaseResult{
				JobID:   active[i].JobID,
				Phase:   req.Phase,
				Message: fmt.Sprintf("Phase %s already active", req.Phase),
				Job:     &active[i],
			}, nil
		}
	}

	job, err := o.jobs.CreateJob(ctx, jobs.NewJob{
		SyncType:  o.SyncType(),
		Phase:     req.Phase,
		Priority:  req.Priority,
		ChunkSize: o.ChunkSize(req.Priority),
		Status:    entities.JobStatusPending,
	})
	if err != nil {
		return nil, err
	}

	taskID, err := o.enqueuer.EnqueuePhase(ctx, job.JobID, req.ContinueUntilComplete)
	if err != nil {
		if markErr := o.jobs.MarkFailed(ctx, job.JobID, "enqueue failed: "+err.Error()); markErr != nil {
			log.WithError(markErr).Warn("Failed to fail unqueued job")
		}
		return nil, fmt.Errorf("enqueue phase %s: %w", req.Phase, err)
	}

	log.WithFields(logger.Fields{logger.FieldJobID: job.JobID, logger.FieldTaskID: taskID}).Info("Phase queued")
	return &PhaseResult{
		JobID:   job.JobID,
		Phase:   req.Phase,
		TaskID:  taskID,
		Message: fmt.Sprintf("Phase %s queued", req.Phase),
		Job:     job,
	}, nil
}

// RunJob drives one specific job, starting it first when it is pending.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string, continueUntilComplete bool) (*PhaseResult, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "orchestrator",
		logger.FieldJobID:     job.JobID,
		logger.FieldPhase:     job.Phase,
	})

	switch job.Status {
	case entities.JobStatusPending:
		started, err := o.jobs.MarkRunning(ctx, job.JobID)
		if errors.Is(err, jobs.ErrDuplicateActiveJob) {
			reason := "superseded by an already running job"
			if markErr := o.jobs.MarkFailed(ctx, job.JobID, reason); markErr != nil {
				return nil, markErr
			}
			return &PhaseResult{JobID: job.JobID, Phase: job.Phase, Message: reason}, nil
		}
		if err != nil {
			return nil, err
		}
		job = started
	case entities.JobStatusCompleted:
		return o.result(job, 0), nil
	case entities.JobStatusFailed:
		return &PhaseResult{JobID: job.JobID, Phase: job.Phase, Message: fmt.Sprintf("Phase %s failed", job.Phase), Job: job}, nil
	}

	return o.drive(ctx, job, continueUntilComplete)
}

// acquire returns a running job for phase, reusing a healthy one when possible.
func (o *Orchestrator) acquire(ctx context.Context, phase entities.Phase, priority entities.Priority) (*entities.SyncJob, error) {
	log := logger.FromContext(ctx)

	for attempt := 0; attempt < 2; attempt++ {
		active, err := o.jobs.ListActive(ctx, o.SyncType(), phase)
		if err != nil {
			return nil, err
		}

		// Running jobs first, then the newest.
		sort.SliceStable(active, func(i, j int) bool {
			if active[i].Status != active[j].Status {
				return active[i].Status == entities.JobStatusRunning
			}
			return active[i].StartedAt.After(active[j].StartedAt)
		})

		for i := range active {
			candidate := &active[i]
			ok, reason := o.healthy(candidate)
			if !ok {
				log.WithFields(logger.Fields{logger.FieldJobID: candidate.JobID, logger.FieldReason: reason}).
					Warn("Active job unhealthy, replacing it")
				if err := o.jobs.MarkFailed(ctx, candidate.JobID, reason); err != nil && !errors.Is(err, jobs.ErrInvalidTransition) {
					return nil, err
				}
				continue
			}
			if candidate.Status == entities.JobStatusPending {
				started, err := o.jobs.MarkRunning(ctx, candidate.JobID)
				if errors.Is(err, jobs.ErrDuplicateActiveJob) || errors.Is(err, jobs.ErrInvalidTransition) {
					continue
				}
				if err != nil {
					return nil, err
				}
				candidate = started
			}
			log.WithField(logger.FieldJobID, candidate.JobID).Debug("Reusing active job")
			return candidate, nil
		}

		job, err := o.jobs.CreateJob(ctx, jobs.NewJob{
			SyncType:  o.SyncType(),
			Phase:     phase,
			Priority:  priority,
			ChunkSize: o.ChunkSize(priority),
		})
		if errors.Is(err, jobs.ErrDuplicateActiveJob) {
			// Lost the race to another invocation; its job is reused on the next pass.
			continue
		}
		if err != nil {
			return nil, err
		}
		log.WithField(logger.FieldJobID, job.JobID).Info("Created sync job")
		return job, nil
	}
	return nil, jobs.ErrDuplicateActiveJob
}

// healthy reports whether an active job may be reused. A job is healthy while
// inside its grace period, or when it has synced at least one item and its
// heartbeat is recent. Chunks where every item failed do not count as progress.
func (o *Orchestrator) healthy(job *entities.SyncJob) (bool, string) {
	now := o.now()
	if now.Sub(job.StartedAt) <= o.cfg.GracePeriod {
		return true, ""
	}
	if since := now.Sub(job.LastHeartbeat); since > o.cfg.RecentHeartbeat {
		return false, fmt.Sprintf("heartbeat stale for %s, replaced", since.Round(time.Second))
	}
	if job.ItemsSynced == 0 {
		return false, fmt.Sprintf("no items synced %s after start, replaced", now.Sub(job.StartedAt).Round(time.Second))
	}
	return true, ""
}

// drive processes chunks of job until it completes, the budget runs out or,
// without continueUntilComplete, after the first chunk.
func (o *Orchestrator) drive(ctx context.Context, job *entities.SyncJob, continueUntilComplete bool) (*PhaseResult, error) {
	ctx = logger.WithField(ctx, logger.FieldJobID, job.JobID)
	log := logger.FromContext(ctx)

	deadline := o.now().Add(o.cfg.ExecutionBudget)
	processed, lastBeat := 0, 0

	for {
		res, err := o.processor.ProcessChunk(ctx, job.JobID)
		switch {
		case errors.Is(err, ErrChunkAbandoned):
			result := o.result(res.Job, processed)
			result.Message = fmt.Sprintf("Chunk %d abandoned after upstream failure, will retry", res.Chunk)
			return result, nil
		case errors.Is(err, jobs.ErrStaleChunk):
			job, err = o.jobs.GetJob(ctx, job.JobID)
			if err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			job = res.Job
			if !res.NoOp {
				processed++
			}
		}

		if job.Status != entities.JobStatusRunning || !continueUntilComplete {
			break
		}
		if ctx.Err() != nil || !o.now().Before(deadline) {
			log.WithField("chunks", processed).Info("Execution budget exhausted, job will resume on next invocation")
			break
		}
		if processed-lastBeat >= o.cfg.HeartbeatEvery {
			lastBeat = processed
			if err := o.jobs.TouchHeartbeat(ctx, job.JobID); err != nil {
				log.WithError(err).Warn("Failed to touch heartbeat")
			}
		}
	}

	return o.result(job, processed), nil
}

func (o *Orchestrator) result(job *entities.SyncJob, processed int) *PhaseResult {
	r := &PhaseResult{
		JobID:           job.JobID,
		Phase:           job.Phase,
		ChunksProcessed: processed,
		Completed:       job.Status == entities.JobStatusCompleted,
		Job:             job,
	}
	switch job.Status {
	case entities.JobStatusCompleted:
		r.Message = fmt.Sprintf("Phase %s completed", job.Phase)
	case entities.JobStatusFailed:
		r.Message = fmt.Sprintf("Phase %s failed", job.Phase)
	default:
		r.Message = fmt.Sprintf("Processed %d chunks, %d/%d complete", processed, job.CurrentChunk, job.TotalChunks)
	}
	return r
}
