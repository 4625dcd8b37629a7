package logger

// Fields is a set of structured log fields.
type Fields map[string]any

// Context-level fields, propagated through the call chain.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldPhase     = "phase"
	FieldSyncType  = "sync_type"
	FieldComponent = "component"
	FieldKind      = "kind"
	FieldTaskID    = "task_id"
)

// Entry-level fields used for aggregation.
const (
	FieldChunk      = "chunk"
	FieldSynced     = "synced"
	FieldFailed     = "failed"
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldReason     = "reason"
	FieldAttempt    = "attempt"
)
