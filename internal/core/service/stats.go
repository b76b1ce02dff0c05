package service

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// StatsCollector accumulates completion events into per run aggregates. Its
// Record method is registered as a completion callback; Summary and LogReport
// can be read at any point during or after a run.
type StatsCollector struct {
	mu      sync.Mutex
	overall aggregate
	perNode map[string]*aggregate
}

type aggregate struct {
	tasks        int
	queueTime    time.Duration
	transmission time.Duration
	processing   time.Duration
	total        time.Duration
	energyWh     float64
	workloadMIs  float64 // required MIPS x processing seconds
}

func (a *aggregate) add(event domain.CompletionEvent) {
	a.tasks++
	a.queueTime += event.QueueTime
	a.transmission += event.TransmissionTime
	a.processing += event.ProcessingTime
	a.total += event.TotalTime
	a.energyWh += event.EnergyWh
	a.workloadMIs += event.RequiredMIPS * event.ProcessingTime.Seconds()
}

// NodeSummary is the per node slice of the end of run report.
type NodeSummary struct {
	Node        string
	Tasks       int
	AvgTotal    time.Duration
	EnergyWh    float64
	WorkloadMIs float64
}

// Summary is the end of run report.
type Summary struct {
	Tasks           int
	AvgQueueTime    time.Duration
	AvgTransmission time.Duration
	AvgProcessing   time.Duration
	AvgTotal        time.Duration
	TotalEnergyWh   float64
	Nodes           []NodeSummary
}

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{perNode: make(map[string]*aggregate)}
}

// Record implements port.CompletionCallback.
func (c *StatsCollector) Record(node string, event domain.CompletionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overall.add(event)
	agg, ok := c.perNode[node]
	if !ok {
		agg = &aggregate{}
		c.perNode[node] = agg
	}
	agg.add(event)
	return nil
}

// Summary returns averages over everything recorded so far. Node slices come
// back sorted by name so reports are stable.
func (c *StatsCollector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Tasks:         c.overall.tasks,
		TotalEnergyWh: c.overall.energyWh,
	}
	if c.overall.tasks > 0 {
		n := time.Duration(c.overall.tasks)
		s.AvgQueueTime = c.overall.queueTime / n
		s.AvgTransmission = c.overall.transmission / n
		s.AvgProcessing = c.overall.processing / n
		s.AvgTotal = c.overall.total / n
	}

	names := make([]string, 0, len(c.perNode))
	for name := range c.perNode {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		agg := c.perNode[name]
		ns := NodeSummary{
			Node:        name,
			Tasks:       agg.tasks,
			EnergyWh:    agg.energyWh,
			WorkloadMIs: agg.workloadMIs,
		}
		if agg.tasks > 0 {
			ns.AvgTotal = agg.total / time.Duration(agg.tasks)
		}
		s.Nodes = append(s.Nodes, ns)
	}
	return s
}

// LogReport writes the end of run report: one record per node plus an
// overall line.
func (c *StatsCollector) LogReport(log *zap.Logger) {
	s := c.Summary()

	for _, ns := range s.Nodes {
		log.Info("Node workload report",
			zap.String("node", ns.Node),
			zap.Int("tasks", ns.Tasks),
			zap.Duration("avg_total_time", ns.AvgTotal),
			zap.Float64("energy_wh", ns.EnergyWh),
			zap.Float64("workload_mi", ns.WorkloadMIs))
	}
	log.Info("Run report",
		zap.Int("tasks_completed", s.Tasks),
		zap.Duration("avg_queue_time", s.AvgQueueTime),
		zap.Duration("avg_transmission_time", s.AvgTransmission),
		zap.Duration("avg_processing_time", s.AvgProcessing),
		zap.Duration("avg_total_time", s.AvgTotal),
		zap.Float64("total_energy_wh", s.TotalEnergyWh))
}
