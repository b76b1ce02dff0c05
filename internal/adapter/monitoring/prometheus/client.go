package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// Exporter publishes scheduler metrics for Prometheus to scrape: completion
// counters and timing histograms fed by the completion callback, plus per
// node ledger gauges fed by status snapshots.
type Exporter struct {
	registry *prometheus.Registry

	tasksCompleted *prometheus.CounterVec
	taskSeconds    *prometheus.HistogramVec
	energyWh       *prometheus.CounterVec

	nodeLoad      *prometheus.GaugeVec
	nodeFreeMIPS  *prometheus.GaugeVec
	nodeQueueLen  *prometheus.GaugeVec
	nodeRunning   *prometheus.GaugeVec
	nodeCompleted *prometheus.GaugeVec

	log *zap.Logger
}

func NewExporter(log *zap.Logger) *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fogsched_tasks_completed_total",
			Help: "Completed tasks per node.",
		}, []string{"node"}),
		taskSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fogsched_task_total_seconds",
			Help:    "End to end task time (queue + transmission + processing).",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"node"}),
		energyWh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fogsched_energy_wh_total",
			Help: "Estimated energy spent per node, in watt hours.",
		}, []string{"node"}),
		nodeLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fogsched_node_load_percent",
			Help: "MIPS consumption of the node, 0 to 100.",
		}, []string{"node"}),
		nodeFreeMIPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fogsched_node_available_mips",
			Help: "Uncommitted compute rate of the node.",
		}, []string{"node"}),
		nodeQueueLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fogsched_node_queue_depth",
			Help: "Tasks parked in the node's pending queue.",
		}, []string{"node"}),
		nodeRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fogsched_node_running_tasks",
			Help: "Tasks currently holding resources on the node.",
		}, []string{"node"}),
		nodeCompleted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fogsched_node_completed_tasks",
			Help: "Tasks the node has finished since start.",
		}, []string{"node"}),
		log: log,
	}

	e.registry.MustRegister(
		collectors.NewGoCollector(),
		e.tasksCompleted,
		e.taskSeconds,
		e.energyWh,
		e.nodeLoad,
		e.nodeFreeMIPS,
		e.nodeQueueLen,
		e.nodeRunning,
		e.nodeCompleted,
	)
	return e
}

// ObserveCompletion implements port.CompletionCallback.
func (e *Exporter) ObserveCompletion(node string, event domain.CompletionEvent) error {
	e.tasksCompleted.WithLabelValues(node).Inc()
	e.taskSeconds.WithLabelValues(node).Observe(event.TotalTime.Seconds())
	e.energyWh.WithLabelValues(node).Add(event.EnergyWh)
	return nil
}

// SetNodeStatus refreshes the ledger gauges from one snapshot
func (e *Exporter) SetNodeStatus(status domain.NodeStatus) {
	e.nodeLoad.WithLabelValues(status.Name).Set(status.LoadPercent)
	e.nodeFreeMIPS.WithLabelValues(status.Name).Set(status.Available.MIPS)
	e.nodeQueueLen.WithLabelValues(status.Name).Set(float64(status.QueueLength))
	e.nodeRunning.WithLabelValues(status.Name).Set(float64(status.AssignedTasks))
	e.nodeCompleted.WithLabelValues(status.Name).Set(float64(status.CompletedTasks))
}

// Handler exposes the scrape endpoint
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve runs the /metrics endpoint until ctx is cancelled
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			e.log.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	e.log.Info("Metrics endpoint listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
