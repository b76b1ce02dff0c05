package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fogsched/fogsched/config/logger"
	postgresConfig "github.com/fogsched/fogsched/config/storage/postgresql"
	redisConfig "github.com/fogsched/fogsched/config/storage/redis"
	config "github.com/fogsched/fogsched/config/utils"
	"github.com/fogsched/fogsched/internal/adapter/monitoring/prometheus"
	"github.com/fogsched/fogsched/internal/adapter/queue/rabbitmq"
	"github.com/fogsched/fogsched/internal/adapter/storage/jsonfile"
	"github.com/fogsched/fogsched/internal/adapter/storage/postgres"
	redisAdapter "github.com/fogsched/fogsched/internal/adapter/storage/redis"
	"github.com/fogsched/fogsched/internal/core/domain"
	"github.com/fogsched/fogsched/internal/core/port"
	"github.com/fogsched/fogsched/internal/core/service"
)

// _defaultStatusInterval is how often node snapshots go out when the config
// does not say otherwise
const _defaultStatusInterval = 5 * time.Second

func main() {
	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	// 1. Init Config & Logger
	appConfig := config.New()
	log := logger.Build(appConfig.Logger)
	defer log.Sync()

	log.Info("Starting the offload scheduler",
		zap.String("app", appConfig.App.Name),
		zap.String("env", appConfig.App.Env),
		zap.Int("nodes", len(appConfig.Nodes)))

	// 2. Build the core: estimator, node inventory, scheduler
	estimator := service.NewEstimator(estimatorParams(appConfig.Estimator))

	specs := make([]domain.NodeSpec, 0, len(appConfig.Nodes))
	for _, n := range appConfig.Nodes {
		specs = append(specs, domain.NodeSpec{
			Name: n.Name,
			Capacity: domain.Resources{
				MIPS:          n.MIPS,
				MemoryMB:      n.MemoryMB,
				BandwidthMbps: n.BandwidthMbps,
				StorageGB:     n.StorageGB,
			},
			Location: domain.Location{Lat: n.Lat, Lon: n.Lon},
		})
	}

	defaultLoc := domain.Location{}
	if appConfig.Scheduler != nil {
		defaultLoc = domain.Location{Lat: appConfig.Scheduler.DefaultLat, Lon: appConfig.Scheduler.DefaultLon}
	}

	sched, err := service.NewScheduler(specs, estimator, defaultLoc, log)
	if err != nil {
		log.Fatal("Failed to build scheduler", zap.Error(err))
	}

	// 3. Always-on observer: the end of run statistics
	stats := service.NewStatsCollector()
	sched.RegisterCompletionCallback(stats.Record)

	// 4. Task source: Postgres by default, a tuple file when asked
	var source port.TaskSource
	driver := "postgres"
	if appConfig.Source != nil && appConfig.Source.Driver != "" {
		driver = appConfig.Source.Driver
	}
	switch driver {
	case "file":
		source = jsonfile.NewSource(appConfig.Source.Path, log)

	case "postgres":
		dbService, err := postgresConfig.New(rootCtx, appConfig.DB, log.Named("DB"))
		if err != nil {
			log.Fatal("Failed to init Postgres", zap.Error(err))
		}
		defer dbService.Close()

		if err := dbService.Migrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}

		store := postgres.NewTaskStore(dbService, log.Named("DB"))
		source = store
		// Completions are written back onto the task rows. The write uses a
		// fresh context: a shutdown request lets in flight completions settle,
		// and settling includes this write.
		sched.RegisterCompletionCallback(func(node string, event domain.CompletionEvent) error {
			return store.RecordCompletion(context.Background(), event)
		})

	default:
		log.Fatal("Unknown task source driver", zap.String("driver", driver))
	}

	// 5. Optional observer: completion events onto the broker
	if appConfig.Queue != nil && appConfig.Queue.Enabled {
		url := appConfig.Queue.URL
		if url == "" {
			url = rabbitURLFromEnv()
		}
		bus, err := rabbitmq.NewEventBus(url, log.Named("MQ"))
		if err != nil {
			log.Fatal("Failed to init RabbitMQ", zap.Error(err), zap.String("url", url))
		}
		defer bus.Close()
		sched.RegisterCompletionCallback(func(node string, event domain.CompletionEvent) error {
			return bus.PublishCompletion(context.Background(), event)
		})
	}

	// 6. Optional observer: Prometheus exporter
	var exporter *prometheus.Exporter
	if appConfig.Metrics != nil && appConfig.Metrics.Enabled {
		exporter = prometheus.NewExporter(log.Named("Metrics"))
		sched.RegisterCompletionCallback(exporter.ObserveCompletion)
		go func() {
			if err := exporter.Serve(rootCtx, appConfig.Metrics.Addr); err != nil {
				log.Error("Metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	// 7. Optional observer: node snapshots into the Redis registry
	var registry port.StatusRegistry
	if appConfig.Redis != nil && appConfig.Redis.Enabled {
		redisService, err := redisConfig.New(rootCtx, appConfig.Redis)
		if err != nil {
			log.Fatal("Failed to init Redis", zap.Error(err))
		}
		defer redisService.Close()
		registry = redisAdapter.NewStatusRegistry(redisService.Client, log.Named("Redis"))
	}
	if registry != nil || exporter != nil {
		interval := parseDurationOr(schedulerOption(appConfig, func(s *config.Scheduler) string { return s.StatusInterval }), _defaultStatusInterval)
		go statusLoop(rootCtx, sched, registry, exporter, interval, log)
	}

	// 8. Load and dispatch
	tasks, err := source.Load(rootCtx)
	if err != nil {
		log.Fatal("Failed to load tasks", zap.Error(err))
	}
	if len(tasks) == 0 {
		log.Warn("No pending tasks to dispatch")
		return
	}

	dispatched, err := sched.Run(rootCtx, tasks)
	if err != nil {
		log.Warn("Dispatch ended early", zap.Int("dispatched", dispatched), zap.Error(err))
	} else {
		log.Info("Dispatch pass finished", zap.Int("dispatched", dispatched))
	}

	// 9. Wait for the in flight completions
	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()

	waitTimeout := parseDurationOr(schedulerOption(appConfig, func(s *config.Scheduler) string { return s.WaitTimeout }), 0)
	var timeoutCh <-chan time.Time
	if waitTimeout > 0 {
		timer := time.NewTimer(waitTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-done:
		log.Info("All scheduled completions settled")
	case <-timeoutCh:
		log.Warn("Run timeout reached before all completions settled", zap.Duration("timeout", waitTimeout))
	case <-rootCtx.Done():
		log.Info("Shutdown requested, letting in flight completions finish")
		<-done
	}

	// 10. Final accounting
	totals := sched.Totals()
	log.Info("Run accounting",
		zap.Int("ingested", totals.Ingested),
		zap.Int("completed", totals.Completed),
		zap.Int("running", totals.Running),
		zap.Int("queued", totals.Queued))
	for _, status := range sched.Statuses() {
		if status.QueueLength > 0 {
			log.Warn("Tasks still waiting in pending queue",
				zap.String("node", status.Name),
				zap.Int("queue_length", status.QueueLength))
		}
	}
	stats.LogReport(log)
}

// statusLoop pushes node snapshots to the registry and the exporter until
// ctx is cancelled
func statusLoop(ctx context.Context, sched *service.Scheduler, registry port.StatusRegistry, exporter *prometheus.Exporter, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, status := range sched.Statuses() {
				if exporter != nil {
					exporter.SetNodeStatus(status)
				}
				if registry == nil {
					continue
				}
				if err := registry.PublishStatus(ctx, status); err != nil {
					log.Error("Status heartbeat failed",
						zap.String("node", status.Name),
						zap.Error(err))
				}
			}
		}
	}
}

// estimatorParams maps the config section onto the cost model coefficients,
// falling back to the defaults when the section is absent
func estimatorParams(cfg *config.Estimator) service.EstimatorParams {
	if cfg == nil {
		return service.DefaultEstimatorParams()
	}
	return service.EstimatorParams{
		LinkMbps:           cfg.LinkMbps,
		PropagationKmPerS:  cfg.PropagationKmPerS,
		ProcessingOverhead: cfg.ProcessingOverhead,
		LoadPenalty:        cfg.LoadPenalty,
		IdleWatts:          cfg.IdleWatts,
		BusyWatts:          cfg.BusyWatts,
		NetworkWatts:       cfg.NetworkWatts,
		Jitter:             cfg.Jitter,
		Seed:               cfg.Seed,
	}
}

func schedulerOption(cfg *config.AppConfig, pick func(*config.Scheduler) string) string {
	if cfg.Scheduler == nil {
		return ""
	}
	return pick(cfg.Scheduler)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" || s == "0" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		zap.L().Warn("Could not parse duration, using fallback", zap.String("value", s), zap.Duration("fallback", fallback))
		return fallback
	}
	return d
}

// rabbitURLFromEnv assembles the broker URL from the conventional pieces
func rabbitURLFromEnv() string {
	user := os.Getenv("MQ_USER")
	pass := os.Getenv("MQ_PASS")
	host := os.Getenv("MQ_HOST")
	port := os.Getenv("MQ_PORT")

	if user == "" {
		user = "guest"
	}
	if pass == "" {
		pass = "guest"
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5672"
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)
}
