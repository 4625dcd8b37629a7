package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrlokans/catalogmirror/internal/archive"
	"github.com/mrlokans/catalogmirror/internal/database/catalog"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/metrics"
	"github.com/mrlokans/catalogmirror/internal/pokeapi"
)

const cancelReason = "cancelled by operator"

// Fetcher is the upstream API as the processor uses it.
type Fetcher interface {
	Count(ctx context.Context, kind string) (int, error)
	ListPage(ctx context.Context, kind string, offset, limit int) (*pokeapi.ResourceList, error)
	FetchDetails(ctx context.Context, urls []string) []pokeapi.Detail
}

// JobStore is the subset of the job repository the sync engine needs.
type JobStore interface {
	CreateJob(ctx context.Context, nj jobs.NewJob) (*entities.SyncJob, error)
	GetJob(ctx context.Context, jobID string) (*entities.SyncJob, error)
	ListActive(ctx context.Context, syncType entities.SyncType, phase entities.Phase) ([]entities.SyncJob, error)
	UpdateProgress(ctx context.Context, jobID string, u jobs.ProgressUpdate) (*entities.SyncJob, error)
	MarkRunning(ctx context.Context, jobID string) (*entities.SyncJob, error)
	MarkFailed(ctx context.Context, jobID, reason string) error
	MarkCompleted(ctx context.Context, jobID string) error
	TouchHeartbeat(ctx context.Context, jobID string) error
}

// ChunkResult is the outcome of one ProcessChunk call.
type ChunkResult struct {
	Chunk     int
	Synced    int
	Failed    int
	Completed bool
	// NoOp is set when the job was already complete and nothing was done.
	NoOp bool
	Job  *entities.SyncJob
}

// Processor advances a job by exactly one chunk.
type Processor struct {
	jobs    JobStore
	fetcher Fetcher
	catalog *catalog.Repository
	archive archive.Archiver
	metrics *metrics.Collectors
}

// NewProcessor wires a processor. archiver and m may be nil.
func NewProcessor(jobStore JobStore, fetcher Fetcher, catalogRepo *catalog.Repository, archiver archive.Archiver, m *metrics.Collectors) *Processor {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	return &Processor{
		jobs:    jobStore,
		fetcher: fetcher,
		catalog: catalogRepo,
		archive: archiver,
		metrics: m,
	}
}

// ProcessChunk reads the job, processes its current chunk and records the
// result. Errors:
//   - ErrChunkAbandoned: upstream listing failed, job left running at the same chunk.
//   - jobs.ErrStaleChunk: another worker recorded this chunk first.
//   - *StoreWriteError: the job has been marked failed.
//   - ErrCancelled: the job had a cancel request and has been marked failed.
func (p *Processor) ProcessChunk(ctx context.Context, jobID string) (*ChunkResult, error) {
	job, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:     job.JobID,
		logger.FieldPhase:     job.Phase,
		logger.FieldComponent: "processor",
	})
	log := logger.FromContext(ctx)

	switch job.Status {
	case entities.JobStatusCompleted:
		return &ChunkResult{Chunk: job.CurrentChunk, Completed: true, NoOp: true, Job: job}, nil
	case entities.JobStatusRunning:
	default:
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotRunning, job.JobID, job.Status)
	}

	if job.IsFinished() {
		if err := p.jobs.MarkCompleted(ctx, job.JobID); err != nil && !errors.Is(err, jobs.ErrInvalidTransition) {
			return nil, err
		}
		job, err = p.jobs.GetJob(ctx, job.JobID)
		if err != nil {
			return nil, err
		}
		return &ChunkResult{Chunk: job.CurrentChunk, Completed: true, NoOp: true, Job: job}, nil
	}

	if job.CancelRequested {
		if err := p.jobs.MarkFailed(ctx, job.JobID, cancelReason); err != nil {
			return nil, err
		}
		log.Info("Job cancelled before next chunk")
		return nil, ErrCancelled
	}

	started := time.Now()
	chunk := job.CurrentChunk

	plan, err := p.plan(ctx, job)
	if err != nil {
		return p.abandon(ctx, job, err)
	}

	listings := make([]*pokeapi.ResourceList, len(plan.Segments))
	for i, seg := range plan.Segments {
		list, err := p.fetcher.ListPage(ctx, string(seg.Kind), seg.Offset, seg.Limit)
		if err != nil {
			return p.abandon(ctx, job, err)
		}
		listings[i] = list
	}

	var total itemCounts
	for i, seg := range plan.Segments {
		urls := make([]string, 0, len(listings[i].Results))
		for _, r := range listings[i].Results {
			urls = append(urls, r.URL)
		}

		details := p.fetcher.FetchDetails(ctx, urls)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.archiveDetails(ctx, seg.Kind, details)

		counts, err := p.store(ctx, job.Phase, seg.Kind, details)
		if err != nil {
			return nil, p.failOnStoreError(ctx, job, err)
		}
		total.synced += counts.synced
		total.failed += counts.failed
	}

	updated, err := p.jobs.UpdateProgress(ctx, job.JobID, jobs.ProgressUpdate{
		ExpectedChunk: chunk,
		NewChunk:      chunk + 1,
		SyncedDelta:   total.synced,
		FailedDelta:   total.failed,
		TotalChunks:   plan.TotalChunks,
		TotalItems:    plan.TotalItems,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrStaleChunk) {
			log.WithField(logger.FieldChunk, chunk).Warn("Chunk already recorded by another worker")
		}
		return nil, err
	}

	took := time.Since(started)
	p.metrics.ObserveChunk(string(job.Phase), total.synced, total.failed, took)
	log.WithFields(logger.Fields{
		logger.FieldChunk:      chunk,
		"total_chunks":         updated.TotalChunks,
		logger.FieldSynced:     total.synced,
		logger.FieldFailed:     total.failed,
		logger.FieldDurationMs: took.Milliseconds(),
	}).Info("Chunk processed")

	return &ChunkResult{
		Chunk:     chunk,
		Synced:    total.synced,
		Failed:    total.failed,
		Completed: updated.Status == entities.JobStatusCompleted,
		Job:       updated,
	}, nil
}

// plan fetches the upstream count of every kind of the phase and places the
// job's current chunk in that item space.
func (p *Processor) plan(ctx context.Context, job *entities.SyncJob) (chunkPlan, error) {
	kinds, err := PhaseKinds(job.Phase)
	if err != nil {
		return chunkPlan{}, err
	}
	counts := make([]int, len(kinds))
	for i, kind := range kinds {
		n, err := p.fetcher.Count(ctx, string(kind))
		if err != nil {
			return chunkPlan{}, fmt.Errorf("count %s: %w", kind, err)
		}
		counts[i] = n
	}
	return planChunk(kinds, counts, job.CurrentChunk, job.ChunkSize), nil
}

// abandon leaves the job at its current chunk and keeps its heartbeat fresh.
func (p *Processor) abandon(ctx context.Context, job *entities.SyncJob, cause error) (*ChunkResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(cause, ErrUnknownPhase) {
		return nil, cause
	}
	if err := p.jobs.TouchHeartbeat(ctx, job.JobID); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to touch heartbeat of abandoned chunk")
	}
	logger.FromContext(ctx).WithError(cause).
		WithField(logger.FieldChunk, job.CurrentChunk).
		Warn("Chunk abandoned, will retry on next invocation")
	return &ChunkResult{Chunk: job.CurrentChunk, Job: job}, fmt.Errorf("%w: %w", ErrChunkAbandoned, cause)
}

func (p *Processor) failOnStoreError(ctx context.Context, job *entities.SyncJob, err error) error {
	var storeErr *StoreWriteError
	if !errors.As(err, &storeErr) {
		return err
	}
	logger.FromContext(ctx).WithError(err).Error("Local store write failed, failing job")
	if markErr := p.jobs.MarkFailed(ctx, job.JobID, storeErr.Error()); markErr != nil {
		logger.FromContext(ctx).WithError(markErr).Error("Failed to mark job failed")
	}
	return err
}

func (p *Processor) archiveDetails(ctx context.Context, kind Kind, details []pokeapi.Detail) {
	if _, ok := p.archive.(archive.Noop); ok {
		return
	}
	for _, d := range details {
		if d.Err != nil || d.ID == 0 {
			continue
		}
		if err := p.archive.Put(ctx, string(kind), d.ID, d.Body); err != nil {
			p.metrics.ArchiveError()
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldKind, kind).Warn("Failed to archive payload")
		}
	}
}
