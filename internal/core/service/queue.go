package service

import (
	"time"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// pendingEntry is one parked task together with everything its later
// admission needs, so no re-ranking happens at drain time.
type pendingEntry struct {
	task       *domain.Task
	distanceKm float64
	enqueuedAt time.Time
}

// pendingQueue is the FIFO of tasks waiting for resources on one node. Not
// safe for concurrent use; the owning node's lock guards it.
type pendingQueue struct {
	entries []pendingEntry
}

func (q *pendingQueue) push(e pendingEntry) {
	q.entries = append(q.entries, e)
}

// head peeks at the oldest entry without removing it.
func (q *pendingQueue) head() (pendingEntry, bool) {
	if len(q.entries) == 0 {
		return pendingEntry{}, false
	}
	return q.entries[0], true
}

// pop removes the oldest entry. Callers check head first.
func (q *pendingQueue) pop() pendingEntry {
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e
}

func (q *pendingQueue) len() int {
	return len(q.entries)
}
