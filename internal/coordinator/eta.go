package coordinator

import (
	"sync"
	"time"
)

const defaultETAWindow = 10

type sample struct {
	at       time.Time
	progress float64
}

// Estimator extrapolates time remaining from recent progress samples of one job.
// Observing a different job clears the window.
type Estimator struct {
	mu      sync.Mutex
	window  int
	key     string
	samples []sample
}

func NewEstimator(window int) *Estimator {
	if window < 2 {
		window = defaultETAWindow
	}
	return &Estimator{window: window}
}

// Observe records progress (0-100) for key at the given time and returns the
// estimated time until 100%. ok is false until the window holds two samples
// with forward progress.
func (e *Estimator) Observe(key string, at time.Time, progress float64) (remaining time.Duration, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if key != e.key {
		e.key = key
		e.samples = e.samples[:0]
	}
	e.samples = append(e.samples, sample{at: at, progress: progress})
	if len(e.samples) > e.window {
		e.samples = e.samples[len(e.samples)-e.window:]
	}
	if len(e.samples) < 2 {
		return 0, false
	}

	first, last := e.samples[0], e.samples[len(e.samples)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	delta := last.progress - first.progress
	if elapsed <= 0 || delta <= 0 {
		return 0, false
	}

	rate := delta / elapsed
	seconds := max(0, (100-last.progress)/rate)
	return time.Duration(seconds * float64(time.Second)), true
}

// Reset drops every sample.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.key = ""
	e.samples = e.samples[:0]
}

// Len returns the number of samples in the window.
func (e *Estimator) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples)
}
