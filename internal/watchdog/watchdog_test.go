package watchdog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/database"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/metrics"
)

func setupTest(t *testing.T) (*Watchdog, *jobs.Repository, *gorm.DB, *metrics.Collectors) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "watchdog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := jobs.NewRepository(db.DB, nil)
	m := metrics.New()
	return New(repo, config.Watchdog{}, m), repo, db.DB, m
}

func createJob(t *testing.T, repo *jobs.Repository, phase entities.Phase, status entities.JobStatus) *entities.SyncJob {
	t.Helper()
	job, err := repo.CreateJob(context.Background(), jobs.NewJob{
		SyncType:  entities.SyncTypePokepedia,
		Phase:     phase,
		ChunkSize: 100,
		Status:    status,
	})
	require.NoError(t, err)
	return job
}

func backdate(t *testing.T, db *gorm.DB, jobID string, updates map[string]any) {
	t.Helper()
	require.NoError(t, db.Model(&entities.SyncJob{}).Where("job_id = ?", jobID).Updates(updates).Error)
}

func TestEvaluate(t *testing.T) {
	w := New(nil, config.Watchdog{}, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		job   entities.SyncJob
		stale bool
		label string
	}{
		{
			name: "healthy",
			job:  entities.SyncJob{Status: entities.JobStatusRunning, StartedAt: now.Add(-time.Minute), LastHeartbeat: now},
		},
		{
			name:  "heartbeat older than threshold",
			job:   entities.SyncJob{Status: entities.JobStatusRunning, ItemsSynced: 500, CurrentChunk: 5, StartedAt: now.Add(-time.Hour), LastHeartbeat: now.Add(-11 * time.Minute)},
			stale: true,
			label: ReasonHeartbeat,
		},
		{
			name:  "no progress after start",
			job:   entities.SyncJob{Status: entities.JobStatusRunning, StartedAt: now.Add(-6 * time.Minute), LastHeartbeat: now.Add(-time.Minute)},
			stale: true,
			label: ReasonProgress,
		},
		{
			name: "slow but producing",
			job:  entities.SyncJob{Status: entities.JobStatusRunning, ItemsSynced: 20, StartedAt: now.Add(-9 * time.Minute), LastHeartbeat: now.Add(-9 * time.Minute)},
		},
		{
			name: "pending job ignores the progress rule",
			job:  entities.SyncJob{Status: entities.JobStatusPending, StartedAt: now.Add(-8 * time.Minute), LastHeartbeat: now.Add(-8 * time.Minute)},
		},
		{
			name:  "pending job with stale heartbeat",
			job:   entities.SyncJob{Status: entities.JobStatusPending, StartedAt: now.Add(-12 * time.Minute), LastHeartbeat: now.Add(-12 * time.Minute)},
			stale: true,
			label: ReasonHeartbeat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := w.Evaluate(&tt.job, now)
			assert.Equal(t, tt.stale, v.Stale)
			assert.Equal(t, tt.label, v.Label)
		})
	}
}

func TestReclaimStale_StaleHeartbeat(t *testing.T) {
	w, repo, db, m := setupTest(t)
	ctx := context.Background()

	job := createJob(t, repo, entities.PhaseMaster, entities.JobStatusRunning)
	backdate(t, db, job.JobID, map[string]any{
		"current_chunk":  3,
		"items_synced":   300,
		"last_heartbeat": time.Now().Add(-11 * time.Minute),
	})

	reclaimed, err := w.ReclaimStale(ctx, entities.SyncTypePokepedia, entities.PhaseMaster)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, job.JobID, reclaimed[0].JobID)

	stored, err := repo.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorLog)
	assert.Contains(t, *stored.ErrorLog, "heartbeat")
	assert.Contains(t, *stored.ErrorLog, "11m")

	assert.Equal(t, 1.0, gathered(t, m, ReasonHeartbeat))
}

func TestReclaimStale_NoProgress(t *testing.T) {
	w, repo, db, m := setupTest(t)
	ctx := context.Background()

	job := createJob(t, repo, entities.PhaseReference, entities.JobStatusRunning)
	backdate(t, db, job.JobID, map[string]any{
		"started_at": time.Now().Add(-6 * time.Minute),
	})

	reclaimed, err := w.ReclaimStale(ctx, entities.SyncTypePokepedia, entities.PhaseReference)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)

	stored, err := repo.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorLog)
	assert.Contains(t, *stored.ErrorLog, "progress")
	assert.Equal(t, 1.0, gathered(t, m, ReasonProgress))
}

func TestReclaimStale_ScopedToPhase(t *testing.T) {
	w, repo, db, _ := setupTest(t)
	ctx := context.Background()

	master := createJob(t, repo, entities.PhaseMaster, entities.JobStatusRunning)
	species := createJob(t, repo, entities.PhaseSpecies, entities.JobStatusRunning)
	for _, id := range []string{master.JobID, species.JobID} {
		backdate(t, db, id, map[string]any{"last_heartbeat": time.Now().Add(-20 * time.Minute)})
	}

	reclaimed, err := w.ReclaimStale(ctx, entities.SyncTypePokepedia, entities.PhaseMaster)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, master.JobID, reclaimed[0].JobID)

	all, err := w.ReclaimStale(ctx, entities.SyncTypePokepedia, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, species.JobID, all[0].JobID)
}

func TestReclaimStale_LeavesHealthyJobs(t *testing.T) {
	w, repo, _, _ := setupTest(t)
	ctx := context.Background()

	job := createJob(t, repo, entities.PhaseMaster, entities.JobStatusRunning)

	reclaimed, err := w.ReclaimStale(ctx, entities.SyncTypePokepedia, "")
	require.NoError(t, err)
	assert.Empty(t, reclaimed)

	stored, err := repo.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusRunning, stored.Status)
}

func gathered(t *testing.T, m *metrics.Collectors, reason string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "catalogmirror_jobs_reclaimed_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "reason" && label.GetValue() == reason {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
