package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/catalogmirror/internal/coordinator"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/syncer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSync struct {
	mu       sync.Mutex
	requests []syncer.PhaseRequest
	enqueued []syncer.PhaseRequest
	advanced []bool
	err      error
}

func (f *fakeSync) RequestPhase(_ context.Context, req syncer.PhaseRequest) (*syncer.PhaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &syncer.PhaseResult{JobID: "job-1", Phase: req.Phase, ChunksProcessed: 1, Message: "Processed 1 chunks, 1/13 complete"}, nil
}

func (f *fakeSync) AdvanceActive(_ context.Context, continueUntilComplete bool) (*syncer.PhaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanced = append(f.advanced, continueUntilComplete)
	if f.err != nil {
		return nil, f.err
	}
	return &syncer.PhaseResult{Message: "no active job"}, nil
}

func (f *fakeSync) EnqueuePhase(_ context.Context, req syncer.PhaseRequest) (*syncer.PhaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, req)
	if f.err != nil {
		return nil, f.err
	}
	return &syncer.PhaseResult{JobID: "job-2", Phase: req.Phase, TaskID: "task-1", Message: "Phase " + string(req.Phase) + " queued"}, nil
}

type fakeJobStore struct {
	jobs       map[string]*entities.SyncJob
	lastFilter jobs.Filter
	cancelled  []string
	cancelErr  error
	listErr    error
}

func (f *fakeJobStore) ListJobs(_ context.Context, filter jobs.Filter) ([]entities.SyncJob, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []entities.SyncJob
	for _, job := range f.jobs {
		out = append(out, *job)
	}
	return out, nil
}

func (f *fakeJobStore) GetJob(_ context.Context, jobID string) (*entities.SyncJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) RequestCancel(_ context.Context, jobID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	if _, ok := f.jobs[jobID]; !ok {
		return jobs.ErrJobNotFound
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

type fakeReclaimer struct {
	syncType  entities.SyncType
	phase     entities.Phase
	reclaimed []entities.SyncJob
	err       error
}

func (f *fakeReclaimer) ReclaimStale(_ context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error) {
	f.syncType, f.phase = syncType, phase
	return f.reclaimed, f.err
}

type fakeStatus struct {
	status coordinator.Status
	local  coordinator.LocalStatus
	err    error
}

func (f *fakeStatus) Poll(context.Context) (coordinator.Status, error) {
	return f.status, f.err
}

func (f *fakeStatus) CheckLocalStatus(context.Context) (coordinator.LocalStatus, error) {
	return f.local, f.err
}

type fakeTasks struct {
	status backlite.TaskStatus
	err    error
}

func (f *fakeTasks) Status(context.Context, string) (backlite.TaskStatus, error) {
	return f.status, f.err
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping() error {
	return f.err
}

func performRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
