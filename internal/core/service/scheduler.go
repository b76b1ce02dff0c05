package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
	"github.com/fogsched/fogsched/internal/core/port"
)

// Totals is the conservation view across the whole scheduler: every ingested
// task is running, queued or completed.
type Totals struct {
	Ingested  int
	Running   int
	Queued    int
	Completed int
}

// Scheduler owns the node runtimes and drives tasks through the admission
// cascade: nearest node first, then the rest of the distance ranking, then
// the unconditional enqueue at the nearest node. Completions are timer
// driven; each admitted task gets its own completion unit.
type Scheduler struct {
	nodes      []*node
	byName     map[string]*node
	estimator  port.ServiceTimeEstimator
	defaultLoc domain.Location
	tracker    *tracker

	cbMu      sync.RWMutex
	callbacks []port.CompletionCallback

	inflight sync.WaitGroup

	log *zap.Logger
}

// NewScheduler validates the node inventory and builds the runtime state. An
// empty inventory, a duplicate node name or a node without compute capacity
// is a configuration defect and fails fast here.
func NewScheduler(
	specs []domain.NodeSpec,
	estimator port.ServiceTimeEstimator,
	defaultLoc domain.Location,
	log *zap.Logger,
) (*Scheduler, error) {
	if len(specs) == 0 {
		return nil, errors.New("scheduler: node inventory is empty")
	}
	if estimator == nil {
		return nil, errors.New("scheduler: estimator is required")
	}
	if !defaultLoc.Valid() {
		return nil, fmt.Errorf("scheduler: default location out of range: lat=%v lon=%v", defaultLoc.Lat, defaultLoc.Lon)
	}

	s := &Scheduler{
		byName:     make(map[string]*node, len(specs)),
		estimator:  estimator,
		defaultLoc: defaultLoc,
		tracker:    newTracker(),
		log:        log,
	}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, errors.New("scheduler: node with empty name")
		}
		if _, dup := s.byName[spec.Name]; dup {
			return nil, fmt.Errorf("scheduler: duplicate node name %q", spec.Name)
		}
		if spec.Capacity.MIPS <= 0 {
			return nil, fmt.Errorf("scheduler: node %q has no compute capacity", spec.Name)
		}
		if !spec.Location.Valid() {
			log.Warn("Node location out of range, using default",
				zap.String("node", spec.Name),
				zap.Float64("lat", spec.Location.Lat),
				zap.Float64("lon", spec.Location.Lon))
			spec.Location = defaultLoc
		}
		n := newNode(spec, log)
		s.nodes = append(s.nodes, n)
		s.byName[spec.Name] = n
	}
	return s, nil
}

// RegisterCompletionCallback adds an observer for completion events.
// Callbacks run synchronously on the completing goroutine, after the node
// ledger has been settled, with no scheduler lock held.
func (s *Scheduler) RegisterCompletionCallback(cb port.CompletionCallback) {
	if cb == nil {
		return
	}
	s.cbMu.Lock()
	s.callbacks = append(s.callbacks, cb)
	s.cbMu.Unlock()
}

// Run dispatches every task in creation time order, one cascade pass each.
// Cancelling ctx stops new admissions only; completions already scheduled
// keep running and can be observed with Wait. Returns how many tasks were
// dispatched.
func (s *Scheduler) Run(ctx context.Context, tasks []*domain.Task) (int, error) {
	// 1. Creation time order, ties keep input order.
	ordered := make([]*domain.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	// 2. One sequential cascade pass per task.
	for i, t := range ordered {
		if err := ctx.Err(); err != nil {
			s.log.Warn("Dispatch stopped, shutdown requested",
				zap.Int("dispatched", i),
				zap.Int("remaining", len(ordered)-i))
			return i, err
		}
		s.Place(t)
	}
	return len(ordered), nil
}

// Place drives one task through the admission cascade. The returned
// placement names the node that admitted the task, or the nearest node whose
// pending queue now holds it. It never fails.
func (s *Scheduler) Place(t *domain.Task) domain.Placement {
	s.tracker.markIngested()
	origin := sanitizeLocation(t.Location, s.defaultLoc)
	ranked := s.rankByDistance(origin)

	placement := domain.Placement{TaskID: t.ID}
	for i, rn := range ranked {
		tier := tierForRank(i)
		ok, load := rn.node.tryAdmit(t)
		placement.Attempts = append(placement.Attempts, domain.Attempt{
			Node:       rn.node.name(),
			Tier:       tier,
			DistanceKm: rn.distanceKm,
			Admitted:   ok,
		})
		s.log.Info("Admission attempt",
			zap.String("task_id", t.ID),
			zap.String("node", rn.node.name()),
			zap.String("tier", string(tier)),
			zap.Float64("distance_km", rn.distanceKm),
			zap.Bool("admitted", ok))
		if ok {
			t.StartedAt = time.Now()
			placement.Node = rn.node.name()
			s.scheduleCompletion(rn.node, t, 0, load, rn.distanceKm)
			return placement
		}
	}

	// 3. No capacity anywhere: the nearest node keeps the task in FIFO
	// order until a release frees enough resources.
	nearest := ranked[0]
	nearest.node.enqueue(t, nearest.distanceKm)
	placement.Node = nearest.node.name()
	placement.Queued = true
	placement.Attempts = append(placement.Attempts, domain.Attempt{
		Node:       nearest.node.name(),
		Tier:       domain.TierFallback,
		DistanceKm: nearest.distanceKm,
	})
	s.log.Info("Task queued at nearest node",
		zap.String("task_id", t.ID),
		zap.String("node", nearest.node.name()),
		zap.Float64("distance_km", nearest.distanceKm))
	return placement
}

// rankByDistance orders the nodes by ascending great circle distance from
// origin. Equal distances keep the configured node order.
func (s *Scheduler) rankByDistance(origin domain.Location) []rankedNode {
	ranked := make([]rankedNode, len(s.nodes))
	for i, n := range s.nodes {
		ranked[i] = rankedNode{node: n, distanceKm: Distance(origin, n.location())}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].distanceKm < ranked[j].distanceKm
	})
	return ranked
}

type rankedNode struct {
	node       *node
	distanceKm float64
}

func tierForRank(i int) domain.AdmissionTier {
	switch i {
	case 0:
		return domain.TierPrimary
	case 1:
		return domain.TierSecondary
	default:
		return domain.TierRemaining
	}
}

// scheduleCompletion models the task's time on the node and arms a timer for
// it. Runs without any node lock held.
func (s *Scheduler) scheduleCompletion(n *node, t *domain.Task, queueTime time.Duration, loadFactor, distanceKm float64) {
	est := s.estimator.Estimate(domain.EstimateRequest{
		SizeMI:      t.SizeMI,
		ComputeRate: n.capacity().MIPS,
		LoadFactor:  loadFactor,
		DistanceKm:  distanceKm,
	})

	s.log.Debug("Completion scheduled",
		zap.String("task_id", t.ID),
		zap.String("node", n.name()),
		zap.Duration("transmission", est.Transmission),
		zap.Duration("processing", est.Processing),
		zap.Float64("energy_wh", est.EnergyWh))

	s.inflight.Add(1)
	time.AfterFunc(est.Transmission+est.Processing, func() {
		defer s.inflight.Done()
		s.complete(n, t, queueTime, est)
	})
}

// complete is the completion unit body. Order matters: idempotency gate,
// release and drain under the node lock, new completion units for drained
// tasks, then callbacks with no lock held.
func (s *Scheduler) complete(n *node, t *domain.Task, queueTime time.Duration, est domain.Estimate) {
	// 1. Exactly one completion per task id, across all nodes.
	if !s.tracker.markProcessed(t.ID) {
		s.log.Warn("Duplicate completion suppressed", zap.String("task_id", t.ID))
		return
	}

	// 2. Give resources back and admit whatever now fits, head first.
	drained := n.releaseAndDrain(t)
	t.CompletedAt = time.Now()

	for _, d := range drained {
		d.task.StartedAt = time.Now()
		s.log.Info("Queued task admitted after release",
			zap.String("task_id", d.task.ID),
			zap.String("node", n.name()),
			zap.Duration("queue_time", d.queueTime))
		s.scheduleCompletion(n, d.task, d.queueTime, d.loadFactor, d.distanceKm)
	}

	// 3. Fan the event out to the observers.
	event := domain.CompletionEvent{
		TaskID:           t.ID,
		TaskName:         t.Name,
		Node:             n.name(),
		QueueTime:        queueTime,
		TransmissionTime: est.Transmission,
		ProcessingTime:   est.Processing,
		TotalTime:        queueTime + est.Transmission + est.Processing,
		EnergyWh:         est.EnergyWh,
		RequiredMIPS:     t.Required.MIPS,
		CompletedAt:      t.CompletedAt,
	}
	s.notify(event)

	s.log.Info("Task completed",
		zap.String("task_id", t.ID),
		zap.String("node", n.name()),
		zap.Duration("total_time", event.TotalTime),
		zap.Float64("energy_wh", event.EnergyWh))
}

func (s *Scheduler) notify(event domain.CompletionEvent) {
	s.cbMu.RLock()
	callbacks := make([]port.CompletionCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.cbMu.RUnlock()

	for i, cb := range callbacks {
		s.invoke(i, cb, event)
	}
}

// invoke shields the scheduler from its observers: errors are logged, panics
// recovered, the next callback always runs.
func (s *Scheduler) invoke(i int, cb port.CompletionCallback, event domain.CompletionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Completion callback panicked",
				zap.Int("callback", i),
				zap.String("task_id", event.TaskID),
				zap.Any("panic", r))
		}
	}()
	if err := cb(event.Node, event); err != nil {
		s.log.Error("Completion callback failed",
			zap.Int("callback", i),
			zap.String("task_id", event.TaskID),
			zap.Error(err))
	}
}

// Status returns the snapshot for one node.
func (s *Scheduler) Status(name string) (domain.NodeStatus, error) {
	n, ok := s.byName[name]
	if !ok {
		return domain.NodeStatus{}, fmt.Errorf("scheduler: unknown node %q", name)
	}
	return n.snapshot(), nil
}

// Statuses returns snapshots for every node in configuration order.
func (s *Scheduler) Statuses() []domain.NodeStatus {
	statuses := make([]domain.NodeStatus, len(s.nodes))
	for i, n := range s.nodes {
		statuses[i] = n.snapshot()
	}
	return statuses
}

// Totals reports the conservation counters. A task being handed between
// states can make the sum lag the ingested count for an instant; at rest the
// two always agree.
func (s *Scheduler) Totals() Totals {
	ingested, completed := s.tracker.counts()
	totals := Totals{Ingested: ingested, Completed: completed}
	for _, n := range s.nodes {
		running, queued := n.counts()
		totals.Running += running
		totals.Queued += queued
	}
	return totals
}

// Wait blocks until every scheduled completion unit has fired and settled.
// Tasks still parked in pending queues do not hold Wait up; they have no
// completion unit yet.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}
