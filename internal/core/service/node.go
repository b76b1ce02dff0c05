package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// node is the runtime state of one offload target: the resource ledger, the
// pending FIFO and the set of currently assigned tasks. One mutex guards all
// three, so admission, release and drain are atomic with respect to each
// other and snapshots are always consistent.
type node struct {
	spec domain.NodeSpec

	mu        sync.Mutex
	available domain.Resources
	assigned  map[string]struct{}
	pending   pendingQueue
	completed int

	log *zap.Logger
}

func newNode(spec domain.NodeSpec, log *zap.Logger) *node {
	return &node{
		spec:      spec,
		available: spec.Capacity,
		assigned:  make(map[string]struct{}),
		log:       log.With(zap.String("node", spec.Name)),
	}
}

func (n *node) name() string { return n.spec.Name }

func (n *node) location() domain.Location { return n.spec.Location }

func (n *node) capacity() domain.Resources { return n.spec.Capacity }

// loadFactor is the MIPS consumption in 0..1. Caller holds n.mu.
func (n *node) loadFactor() float64 {
	if n.spec.Capacity.MIPS <= 0 {
		return 0
	}
	return 1 - n.available.MIPS/n.spec.Capacity.MIPS
}

// canAdmit checks all four resource dimensions at once. Caller holds n.mu.
func (n *node) canAdmit(req domain.Resources) bool {
	return n.available.Covers(req)
}

// admit reserves the task's requirements. Caller holds n.mu and has already
// checked canAdmit.
func (n *node) admit(t *domain.Task) {
	n.available = n.available.Sub(t.Required)
	n.assigned[t.ID] = struct{}{}
}

// tryAdmit atomically checks and reserves resources for the task. The
// returned load factor is the node's MIPS consumption right after the
// reservation, which is what the estimator wants to see.
func (n *node) tryAdmit(t *domain.Task) (bool, float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.canAdmit(t.Required) {
		n.log.Debug("Rejected task, insufficient resources",
			zap.String("task_id", t.ID),
			zap.Float64("free_mips", n.available.MIPS),
			zap.Float64("required_mips", t.Required.MIPS))
		return false, 0
	}
	n.admit(t)
	return true, n.loadFactor()
}

// enqueue parks the task at the tail of the pending FIFO. The queue never
// rejects, whatever the task asks for.
func (n *node) enqueue(t *domain.Task, distanceKm float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	t.EnqueuedAt = now
	n.pending.push(pendingEntry{task: t, distanceKm: distanceKm, enqueuedAt: now})
	n.log.Info("Task parked in pending queue",
		zap.String("task_id", t.ID),
		zap.Int("queue_length", n.pending.len()))
}

// drainedTask is a pending task admitted during a release, carrying the
// inputs its own completion needs.
type drainedTask struct {
	task       *domain.Task
	queueTime  time.Duration
	loadFactor float64
	distanceKm float64
}

// releaseAndDrain gives the finished task's resources back, then admits
// queued tasks from the head while they fit, stopping at the first head that
// does not. Removal from the assigned set, the release and the drain all
// happen under one lock acquisition.
func (n *node) releaseAndDrain(t *domain.Task) []drainedTask {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.assigned[t.ID]; !ok {
		n.log.Warn("Release for task not in assigned set", zap.String("task_id", t.ID))
		return nil
	}
	delete(n.assigned, t.ID)
	n.available = n.available.Add(t.Required)
	n.completed++

	var drained []drainedTask
	now := time.Now()
	for {
		head, ok := n.pending.head()
		if !ok || !n.canAdmit(head.task.Required) {
			break
		}
		n.pending.pop()
		n.admit(head.task)
		drained = append(drained, drainedTask{
			task:       head.task,
			queueTime:  now.Sub(head.enqueuedAt),
			loadFactor: n.loadFactor(),
			distanceKm: head.distanceKm,
		})
	}
	return drained
}

// snapshot returns a consistent view of the ledger and queue.
func (n *node) snapshot() domain.NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()

	return domain.NodeStatus{
		Name:           n.spec.Name,
		Capacity:       n.spec.Capacity,
		Available:      n.available,
		LoadPercent:    n.loadFactor() * 100,
		QueueLength:    n.pending.len(),
		AssignedTasks:  len(n.assigned),
		CompletedTasks: n.completed,
		UpdatedAt:      time.Now(),
	}
}

// counts feeds the scheduler's conservation totals.
func (n *node) counts() (running, queued int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.assigned), n.pending.len()
}
