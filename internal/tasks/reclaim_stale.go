package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/logger"
)

// Reclaimer fails stale sync jobs.
type Reclaimer interface {
	ReclaimStale(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error)
}

// ReclaimStaleTask runs the watchdog over every phase.
type ReclaimStaleTask struct {
	SyncType entities.SyncType `json:"sync_type,omitempty"`
}

func (t ReclaimStaleTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reclaim_stale",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func ReclaimStaleProcessor(reclaimer Reclaimer) backlite.QueueProcessor[ReclaimStaleTask] {
	return func(ctx context.Context, task ReclaimStaleTask) error {
		if reclaimer == nil {
			return fmt.Errorf("reclaimer not configured")
		}
		syncType := task.SyncType
		if syncType == "" {
			syncType = entities.SyncTypePokepedia
		}

		reclaimed, err := reclaimer.ReclaimStale(ctx, syncType, "")
		if err != nil {
			return fmt.Errorf("reclaim stale jobs: %w", err)
		}

		logger.Default().Component("tasks").WithField(logger.FieldCount, len(reclaimed)).Info("Reclaimed stale jobs")
		return nil
	}
}

func NewReclaimStaleQueue(reclaimer Reclaimer) backlite.Queue {
	return backlite.NewQueue(ReclaimStaleProcessor(reclaimer))
}
