package analytics

import (
	"sync"
	"time"

	"TrapFlow/internal/domain/models"
)

// EventRing is a bounded FIFO ring of trap events. Writes are append-only;
// reads return snapshot copies.
type EventRing struct {
	mu     sync.RWMutex
	events []models.TrapEvent
	size   int
}

// NewEventRing creates a ring holding at most size events.
func NewEventRing(size int) *EventRing {
	if size <= 0 {
		size = 200
	}
	return &EventRing{size: size}
}

// Append adds an event, evicting the oldest when full.
func (r *EventRing) Append(e models.TrapEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	if len(r.events) > r.size {
		r.events = r.events[len(r.events)-r.size:]
	}
}

// Snapshot returns a copy of all held events, oldest first.
func (r *EventRing) Snapshot() []models.TrapEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.TrapEvent, len(r.events))
	copy(out, r.events)
	return out
}

// CountSince reports how many events carry a timestamp at or after cutoff.
func (r *EventRing) CountSince(cutoff time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.events {
		if !e.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}

// Len reports the current number of held events.
func (r *EventRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
