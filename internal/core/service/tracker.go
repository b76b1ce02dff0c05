package service

import "sync"

// tracker is the run wide registry: the processed task id set that makes
// completion delivery idempotent, plus the ingestion counter. It has its own
// mutex; this lock and a node lock are never held at the same time.
type tracker struct {
	mu        sync.Mutex
	processed map[string]struct{}
	ingested  int
}

func newTracker() *tracker {
	return &tracker{processed: make(map[string]struct{})}
}

// markProcessed records the task id and reports whether this was the first
// completion for it. Duplicates leave the set unchanged.
func (t *tracker) markProcessed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.processed[id]; dup {
		return false
	}
	t.processed[id] = struct{}{}
	return true
}

func (t *tracker) markIngested() {
	t.mu.Lock()
	t.ingested++
	t.mu.Unlock()
}

func (t *tracker) counts() (ingested, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ingested, len(t.processed)
}
