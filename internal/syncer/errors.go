package syncer

import (
	"errors"
	"fmt"
)

var (
	// ErrChunkAbandoned means the upstream listing could not be read; the job
	// stays running at the same chunk for a later invocation.
	ErrChunkAbandoned = errors.New("chunk abandoned after upstream failure")
	ErrJobNotRunning  = errors.New("sync job is not running")
	ErrUnknownPhase   = errors.New("unknown sync phase")
	ErrCancelled      = errors.New("sync job cancelled by operator")
	ErrNoQueue        = errors.New("task queue is not configured")
)

// StoreWriteError is a local-store failure. It fails the whole job.
type StoreWriteError struct {
	Kind Kind
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("local store write failed for %s: %v", e.Kind, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}
