// Package watchdog fails active sync jobs that stopped making progress so a
// replacement can be created.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/metrics"
)

const (
	ReasonHeartbeat = "heartbeat"
	ReasonProgress  = "progress"

	defaultStuckThreshold      = 10 * time.Minute
	defaultNoProgressThreshold = 5 * time.Minute
)

type Store interface {
	ListActive(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error)
	MarkFailed(ctx context.Context, jobID, reason string) error
}

type Watchdog struct {
	jobs    Store
	cfg     config.Watchdog
	metrics *metrics.Collectors
	now     func() time.Time
}

func New(store Store, cfg config.Watchdog, m *metrics.Collectors) *Watchdog {
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = defaultStuckThreshold
	}
	if cfg.NoProgressThreshold <= 0 {
		cfg.NoProgressThreshold = defaultNoProgressThreshold
	}
	return &Watchdog{jobs: store, cfg: cfg, metrics: m, now: time.Now}
}

// Verdict is the watchdog's judgement of one job.
type Verdict struct {
	Stale  bool
	Label  string // ReasonHeartbeat or ReasonProgress
	Reason string
}

// Evaluate applies the staleness rules to job at now. The no-progress rule
// only applies to running jobs that have not finished a single item.
func (w *Watchdog) Evaluate(job *entities.SyncJob, now time.Time) Verdict {
	if since := now.Sub(job.LastHeartbeat); since > w.cfg.StuckThreshold {
		return Verdict{
			Stale:  true,
			Label:  ReasonHeartbeat,
			Reason: fmt.Sprintf("no heartbeat for %s (threshold %s)", since.Round(time.Second), w.cfg.StuckThreshold),
		}
	}
	if job.Status != entities.JobStatusRunning {
		return Verdict{}
	}
	if since := now.Sub(job.StartedAt); job.ItemsSynced == 0 && job.CurrentChunk == 0 && since > w.cfg.NoProgressThreshold {
		return Verdict{
			Stale:  true,
			Label:  ReasonProgress,
			Reason: fmt.Sprintf("no progress since start %s ago (threshold %s)", since.Round(time.Second), w.cfg.NoProgressThreshold),
		}
	}
	return Verdict{}
}

// ReclaimStale fails every stale active job of syncType and phase (every phase
// when empty) and returns them.
func (w *Watchdog) ReclaimStale(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error) {
	active, err := w.jobs.ListActive(ctx, syncType, phase)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}

	log := logger.FromContext(ctx).Component("watchdog")
	now := w.now()

	var reclaimed []entities.SyncJob
	for i := range active {
		job := active[i]
		verdict := w.Evaluate(&job, now)
		if !verdict.Stale {
			continue
		}

		if err := w.jobs.MarkFailed(ctx, job.JobID, verdict.Reason); err != nil {
			if errors.Is(err, jobs.ErrInvalidTransition) {
				// Finished or failed by someone else in the meantime.
				continue
			}
			return reclaimed, fmt.Errorf("fail stale job %s: %w", job.JobID, err)
		}

		w.metrics.JobReclaimed(verdict.Label)
		log.WithFields(logger.Fields{
			logger.FieldJobID:  job.JobID,
			logger.FieldPhase:  job.Phase,
			logger.FieldReason: verdict.Reason,
		}).Warn("Reclaimed stale sync job")

		job.Status = entities.JobStatusFailed
		reason := verdict.Reason
		job.ErrorLog = &reason
		reclaimed = append(reclaimed, job)
	}
	return reclaimed, nil
}
