package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func startClient(t *testing.T, client *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go client.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		client.Stop(stopCtx)
		cancel()
	})
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []RequestPhaseTask
	err   error
	ran   chan struct{}
}

func (f *fakeRunner) RunJob(_ context.Context, jobID string, continueUntilComplete bool) (*syncer.PhaseResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, RequestPhaseTask{JobID: jobID, ContinueUntilComplete: continueUntilComplete})
	f.mu.Unlock()
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &syncer.PhaseResult{JobID: jobID, Phase: entities.PhaseMaster, ChunksProcessed: 2, Message: "Processed 2 chunks, 2/13 complete"}, nil
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "catalog.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = os.Stat(filepath.Join(tmpDir, "catalog-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")

	assert.NoError(t, client.Close())
}

func TestClientStartStop(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

func TestStopWithoutStart(t *testing.T) {
	client := newTestClient(t)
	assert.True(t, client.Stop(context.Background()))
}

func TestEnqueuePhase_RunsJob(t *testing.T) {
	client := newTestClient(t)
	runner := &fakeRunner{ran: make(chan struct{}, 1)}
	client.Register(NewRequestPhaseQueue(runner))
	startClient(t, client)

	taskID, err := client.EnqueuePhase(context.Background(), "job-1", true)
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}

	runner.mu.Lock()
	assert.Equal(t, []RequestPhaseTask{{JobID: "job-1", ContinueUntilComplete: true}}, runner.calls)
	runner.mu.Unlock()

	assert.Eventually(t, func() bool {
		status, err := client.Status(context.Background(), taskID)
		return err == nil && status == backlite.TaskStatusSuccess
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRequestPhaseProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("missing job is dropped", func(t *testing.T) {
		process := RequestPhaseProcessor(&fakeRunner{err: jobs.ErrJobNotFound})
		assert.NoError(t, process(ctx, RequestPhaseTask{JobID: "gone"}))
	})

	t.Run("other errors retry", func(t *testing.T) {
		boom := errors.New("database is locked")
		process := RequestPhaseProcessor(&fakeRunner{err: boom})
		assert.ErrorIs(t, process(ctx, RequestPhaseTask{JobID: "job-1"}), boom)
	})

	t.Run("nil runner", func(t *testing.T) {
		assert.Error(t, RequestPhaseProcessor(nil)(ctx, RequestPhaseTask{JobID: "job-1"}))
	})
}

type fakeReclaimer struct {
	mu       sync.Mutex
	syncType entities.SyncType
	phase    entities.Phase
	ran      chan struct{}
}

func (f *fakeReclaimer) ReclaimStale(_ context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error) {
	f.mu.Lock()
	f.syncType, f.phase = syncType, phase
	f.mu.Unlock()
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	return []entities.SyncJob{{JobID: "stale"}}, nil
}

func TestEnqueueReclaim_UsesConfiguredSyncType(t *testing.T) {
	client := newTestClient(t)
	r := &fakeReclaimer{phase: "sentinel", ran: make(chan struct{}, 1)}
	client.Register(NewReclaimStaleQueue(r))
	startClient(t, client)

	_, err := client.EnqueueReclaim(context.Background(), entities.SyncType("berries"))
	require.NoError(t, err)

	select {
	case <-r.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("reclaim task was not executed within timeout")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, entities.SyncType("berries"), r.syncType)
	assert.Equal(t, entities.Phase(""), r.phase)
}

func TestReclaimStaleProcessor_CoversEveryPhase(t *testing.T) {
	r := &fakeReclaimer{phase: "sentinel"}
	require.NoError(t, ReclaimStaleProcessor(r)(context.Background(), ReclaimStaleTask{}))
	assert.Equal(t, entities.SyncTypePokepedia, r.syncType)
	assert.Equal(t, entities.Phase(""), r.phase)
}

func TestQueueConfigs(t *testing.T) {
	cfg := RequestPhaseTask{}.Config()
	assert.Equal(t, "request_phase", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)

	cfg = ReclaimStaleTask{}.Config()
	assert.Equal(t, "reclaim_stale", cfg.Name)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestFromSettings(t *testing.T) {
	assert.Equal(t, DefaultConfig(), FromSettings(config.Tasks{}))

	cfg := FromSettings(config.Tasks{Workers: 4, ReleaseAfter: time.Minute})
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusString(backlite.TaskStatusPending))
	assert.Equal(t, "success", StatusString(backlite.TaskStatusSuccess))
	assert.Equal(t, "not_found", StatusString(backlite.TaskStatusNotFound))
}

func TestParamFields(t *testing.T) {
	fields := paramFields([]any{"id", "abc", "queue", "request_phase", "dangling"})
	assert.Equal(t, "abc", fields["id"])
	assert.Equal(t, "request_phase", fields["queue"])
	assert.Equal(t, "dangling", fields["extra"])
}
