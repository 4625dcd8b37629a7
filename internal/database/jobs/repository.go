// Package jobs is the Job Store: the durable sync_jobs table and the only
// place job state changes.
//
// Every write is a single-row update guarded by the job's current status, so
// status never regresses and current_chunk never decreases. Each successful
// write publishes an event on the progress channel.
//
// # Usage
//
//	repo := jobs.NewRepository(db.DB, broker)
//	job, err := repo.CreateJob(ctx, jobs.NewJob{
//		SyncType: entities.SyncTypePokepedia,
//		Phase:    entities.PhaseMaster,
//		Priority: entities.PriorityCritical,
//		ChunkSize: 20,
//	})
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/events"
)

var (
	ErrJobNotFound        = errors.New("sync job not found")
	ErrInvalidTransition  = errors.New("invalid sync job status transition")
	ErrStaleChunk         = errors.New("sync job chunk was advanced concurrently")
	ErrDuplicateActiveJob = errors.New("a running sync job already exists for this phase")
)

var activeStatuses = []entities.JobStatus{entities.JobStatusPending, entities.JobStatusRunning}

// Repository handles all sync job database operations.
type Repository struct {
	db        *gorm.DB
	publisher events.Publisher
	now       func() time.Time
}

// NewRepository creates a job store. A nil publisher discards events.
func NewRepository(db *gorm.DB, publisher events.Publisher) *Repository {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Repository{db: db, publisher: publisher, now: time.Now}
}

// NewJob describes a job to create.
type NewJob struct {
	SyncType  entities.SyncType
	Phase     entities.Phase
	Priority  entities.Priority
	ChunkSize int
	// Status defaults to running; pending is used for queued requests.
	Status entities.JobStatus
}

// ProgressUpdate is the result of one processed chunk.
type ProgressUpdate struct {
	// ExpectedChunk is the current_chunk the worker read before processing.
	ExpectedChunk int
	NewChunk      int
	SyncedDelta   int
	FailedDelta   int
	// TotalChunks and TotalItems replace the stored values when positive.
	TotalChunks int
	TotalItems  int
}

// Filter narrows ListJobs.
type Filter struct {
	SyncType entities.SyncType
	Phase    entities.Phase
	Status   entities.JobStatus
	Limit    int
}

// CreateJob inserts a fresh job at chunk 0 with unknown totals.
func (r *Repository) CreateJob(ctx context.Context, nj NewJob) (*entities.SyncJob, error) {
	if nj.Phase.Index() < 0 {
		return nil, fmt.Errorf("create job: unknown phase %q", nj.Phase)
	}
	if nj.ChunkSize <= 0 {
		return nil, fmt.Errorf("create job: chunk size must be positive, got %d", nj.ChunkSize)
	}
	status := nj.Status
	if status == "" {
		status = entities.JobStatusRunning
	}
	if !status.IsActive() {
		return nil, fmt.Errorf("create job: %w: cannot start in %s", ErrInvalidTransition, status)
	}
	priority := nj.Priority
	if priority == "" {
		priority = entities.PriorityStandard
	}

	now := r.now()
	job := &entities.SyncJob{
		JobID:         uuid.NewString(),
		SyncType:      nj.SyncType,
		Phase:         nj.Phase,
		Status:        status,
		ChunkSize:     nj.ChunkSize,
		Priority:      priority,
		StartedAt:     now,
		LastHeartbeat: now,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateActiveJob
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	r.publishProgress(job)
	return job, nil
}

// GetJob loads a job by id.
func (r *Repository) GetJob(ctx context.Context, jobID string) (*entities.SyncJob, error) {
	var job entities.SyncJob
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindActiveJob returns the newest running or pending job for the phase, or nil.
func (r *Repository) FindActiveJob(ctx context.Context, syncType entities.SyncType, phase entities.Phase) (*entities.SyncJob, error) {
	var job entities.SyncJob
	err := r.db.WithContext(ctx).
		Where("sync_type = ? AND phase = ? AND status IN ?", syncType, phase, activeStatuses).
		Order("started_at DESC").
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListActive returns running and pending jobs, oldest first. An empty phase
// matches every phase.
func (r *Repository) ListActive(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error) {
	q := r.db.WithContext(ctx).Where("sync_type = ? AND status IN ?", syncType, activeStatuses)
	if phase != "" {
		q = q.Where("phase = ?", phase)
	}
	var jobs []entities.SyncJob
	if err := q.Order("started_at ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListJobs returns jobs newest first.
func (r *Repository) ListJobs(ctx context.Context, f Filter) ([]entities.SyncJob, error) {
	q := r.db.WithContext(ctx).Model(&entities.SyncJob{})
	if f.SyncType != "" {
		q = q.Where("sync_type = ?", f.SyncType)
	}
	if f.Phase != "" {
		q = q.Where("phase = ?", f.Phase)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var jobs []entities.SyncJob
	if err := q.Order("started_at DESC").Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// LatestByPhase returns the most recent job of every phase that has one.
func (r *Repository) LatestByPhase(ctx context.Context, syncType entities.SyncType) (map[entities.Phase]*entities.SyncJob, error) {
	latest := make(map[entities.Phase]*entities.SyncJob, len(entities.Phases))
	for _, phase := range entities.Phases {
		var job entities.SyncJob
		err := r.db.WithContext(ctx).
			Where("sync_type = ? AND phase = ?", syncType, phase).
			Order("started_at DESC").
			Order("created_at DESC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		latest[phase] = &job
	}
	return latest, nil
}

// UpdateProgress records one processed chunk. The write only applies while the
// job is running and still at ExpectedChunk; otherwise ErrStaleChunk or
// ErrInvalidTransition is returned and nothing changes. Reaching the chunk total
// completes the job in the same write.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, u ProgressUpdate) (*entities.SyncJob, error) {
	if u.NewChunk < u.ExpectedChunk {
		return nil, fmt.Errorf("update progress: chunk may not decrease (%d -> %d)", u.ExpectedChunk, u.NewChunk)
	}

	var updated entities.SyncJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job entities.SyncJob
		if err := tx.Where("job_id = ?", jobID).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if job.Status != entities.JobStatusRunning {
			return fmt.Errorf("%w: job is %s", ErrInvalidTransition, job.Status)
		}
		if job.CurrentChunk != u.ExpectedChunk {
			return ErrStaleChunk
		}

		totalChunks := job.TotalChunks
		if u.TotalChunks > 0 {
			totalChunks = u.TotalChunks
		}
		totalItems := job.EndID
		if u.TotalItems > 0 {
			totalItems = u.TotalItems
		}
		synced := job.ItemsSynced + u.SyncedDelta

		now := r.now()
		updates := map[string]any{
			"current_chunk":  u.NewChunk,
			"total_chunks":   totalChunks,
			"end_id":         totalItems,
			"items_synced":   gorm.Expr("items_synced + ?", u.SyncedDelta),
			"items_failed":   gorm.Expr("items_failed + ?", u.FailedDelta),
			"last_heartbeat": now,
		}
		if totalChunks > 0 && u.NewChunk >= totalChunks {
			updates["status"] = entities.JobStatusCompleted
			updates["progress_percent"] = 100.0
			updates["completed_at"] = now
		} else {
			updates["progress_percent"] = entities.EstimateProgress(u.NewChunk, totalChunks, synced, totalItems, job.ChunkSize)
		}

		res := tx.Model(&entities.SyncJob{}).
			Where("job_id = ? AND status = ? AND current_chunk = ?", jobID, entities.JobStatusRunning, u.ExpectedChunk).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleChunk
		}
		return tx.Where("job_id = ?", jobID).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}

	r.publishProgress(&updated)
	if updated.Status == entities.JobStatusCompleted {
		r.publisher.Publish(events.Event{Type: events.TypeComplete, JobID: updated.JobID, Phase: updated.Phase})
	}
	return &updated, nil
}

// MarkRunning moves a pending job to running and restarts its clocks.
func (r *Repository) MarkRunning(ctx context.Context, jobID string) (*entities.SyncJob, error) {
	now := r.now()
	job, err := r.transition(ctx, jobID, []entities.JobStatus{entities.JobStatusPending}, map[string]any{
		"status":         entities.JobStatusRunning,
		"started_at":     now,
		"last_heartbeat": now,
	})
	if err != nil && isDuplicateKey(err) {
		return nil, ErrDuplicateActiveJob
	}
	return job, err
}

// MarkFailed terminates an active job with reason stored in error_log.
func (r *Repository) MarkFailed(ctx context.Context, jobID, reason string) error {
	job, err := r.transition(ctx, jobID, activeStatuses, map[string]any{
		"status":       entities.JobStatusFailed,
		"error_log":    reason,
		"completed_at": r.now(),
	})
	if err != nil {
		return err
	}
	r.publisher.Publish(events.Event{Type: events.TypeFailed, JobID: job.JobID, Phase: job.Phase, Reason: reason})
	return nil
}

// MarkCompleted terminates a running job successfully.
func (r *Repository) MarkCompleted(ctx context.Context, jobID string) error {
	job, err := r.transition(ctx, jobID, []entities.JobStatus{entities.JobStatusRunning}, map[string]any{
		"status":           entities.JobStatusCompleted,
		"progress_percent": 100.0,
		"completed_at":     r.now(),
	})
	if err != nil {
		return err
	}
	r.publisher.Publish(events.Event{Type: events.TypeComplete, JobID: job.JobID, Phase: job.Phase})
	return nil
}

// TouchHeartbeat refreshes last_heartbeat of an active job.
func (r *Repository) TouchHeartbeat(ctx context.Context, jobID string) error {
	_, err := r.transition(ctx, jobID, activeStatuses, map[string]any{
		"last_heartbeat": r.now(),
	})
	return err
}

// RequestCancel flags an active job; the processor fails it before its next chunk.
func (r *Repository) RequestCancel(ctx context.Context, jobID string) error {
	_, err := r.transition(ctx, jobID, activeStatuses, map[string]any{
		"cancel_requested": true,
	})
	return err
}

// transition applies updates only while the job is in one of from.
func (r *Repository) transition(ctx context.Context, jobID string, from []entities.JobStatus, updates map[string]any) (*entities.SyncJob, error) {
	res := r.db.WithContext(ctx).Model(&entities.SyncJob{}).
		Where("job_id = ? AND status IN ?", jobID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, jobID, job.Status)
	}
	return job, nil
}

func (r *Repository) publishProgress(job *entities.SyncJob) {
	r.publisher.Publish(events.Event{
		Type:            events.TypeProgress,
		JobID:           job.JobID,
		Phase:           job.Phase,
		Current:         job.ItemsSynced,
		Total:           job.EndID,
		ProgressPercent: job.ProgressPercent,
	})
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
