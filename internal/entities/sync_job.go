package entities

import (
	"fmt"
	"time"
)

type SyncType string

const (
	SyncTypePokepedia SyncType = "pokepedia"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsActive reports whether a job in this status may still be advanced.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityStandard Priority = "standard"
)

// Rank orders priorities for scheduling, lower runs first.
func (p Priority) Rank() int {
	if p == PriorityCritical {
		return 0
	}
	return 1
}

// ParsePriority maps an empty or unknown value to PriorityStandard.
func ParsePriority(s string) Priority {
	if Priority(s) == PriorityCritical {
		return PriorityCritical
	}
	return PriorityStandard
}

// SyncJob is one attempt to run one phase of one sync type to completion.
type SyncJob struct {
	JobID           string     `gorm:"primaryKey;size:36" json:"job_id"`
	SyncType        SyncType   `gorm:"size:50;index:idx_sync_jobs_type_phase" json:"sync_type"`
	Phase           Phase      `gorm:"size:32;index:idx_sync_jobs_type_phase" json:"phase"`
	Status          JobStatus  `gorm:"size:20;index" json:"status"`
	CurrentChunk    int        `gorm:"not null;default:0" json:"current_chunk"`
	TotalChunks     int        `gorm:"not null;default:0" json:"total_chunks"`
	ChunkSize       int        `gorm:"not null" json:"chunk_size"`
	StartID         int        `json:"start_id"`
	EndID           int        `json:"end_id"`
	ItemsSynced     int        `gorm:"not null;default:0" json:"items_synced"`
	ItemsFailed     int        `gorm:"not null;default:0" json:"items_failed"`
	ProgressPercent float64    `gorm:"not null;default:0" json:"progress_percent"`
	Priority        Priority   `gorm:"size:20" json:"priority"`
	CancelRequested bool       `gorm:"not null;default:false" json:"cancel_requested"`
	StartedAt       time.Time  `json:"started_at"`
	LastHeartbeat   time.Time  `json:"last_heartbeat"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ErrorLog        *string    `gorm:"type:text" json:"error_log,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}

// IsFinished reports whether every chunk of a known total has been processed.
func (j *SyncJob) IsFinished() bool {
	return j.TotalChunks > 0 && j.CurrentChunk >= j.TotalChunks
}

func (j *SyncJob) String() string {
	return fmt.Sprintf("%s[%s %d/%d %s]", j.JobID, j.Phase, j.CurrentChunk, j.TotalChunks, j.Status)
}

// assumedChunks stands in for total_chunks before the upstream count is known.
const assumedChunks = 10

// EstimateProgress derives progress_percent for a job that is not completed.
// With a known chunk total it is current/total. Otherwise items_synced is measured
// against end_id (the item total) or an assumed total, and capped below 100.
func EstimateProgress(currentChunk, totalChunks, itemsSynced, totalItems, chunkSize int) float64 {
	if totalChunks > 0 {
		return min(100, float64(currentChunk)/float64(totalChunks)*100)
	}
	var pct float64
	switch {
	case totalItems > 0:
		pct = float64(itemsSynced) / float64(totalItems) * 100
	case chunkSize > 0:
		pct = float64(itemsSynced) / float64(chunkSize*assumedChunks) * 100
	}
	return min(99, pct)
}
