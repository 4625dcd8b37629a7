// Package events is the in-process progress channel.
//
// Delivery is best effort: a subscriber whose buffer is full misses events.
// Consumers treat an event as a hint to re-read the job row, never as state.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrlokans/catalogmirror/internal/entities"
)

type Type string

const (
	TypeProgress Type = "sync_progress"
	TypeComplete Type = "sync_complete"
	TypeFailed   Type = "sync_failed"
)

// Event is one message on the progress channel.
type Event struct {
	Type            Type           `json:"type"`
	JobID           string         `json:"job_id"`
	Phase           entities.Phase `json:"phase"`
	Current         int            `json:"current,omitempty"`
	Total           int            `json:"total,omitempty"`
	ProgressPercent float64        `json:"progress_percent,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	At              time.Time      `json:"at"`
}

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

const defaultBuffer = 64

// Broker fans events out to subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool

	dropped atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

var _ Publisher = (*Broker)(nil)

// Subscribe registers a listener. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every subscriber with buffer space.
func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone. Later publishes are ignored.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
