package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fogsched/fogsched/config/logger"
	redisConfig "github.com/fogsched/fogsched/config/storage/redis"
	config "github.com/fogsched/fogsched/config/utils"
	"github.com/fogsched/fogsched/internal/adapter/queue/rabbitmq"
	redisAdapter "github.com/fogsched/fogsched/internal/adapter/storage/redis"
	"github.com/fogsched/fogsched/internal/core/domain"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
)

// feed assigns each node a stable color for the activity stream
type feed struct {
	mu      sync.Mutex
	colors  map[string]string
	palette []string
}

func newFeed() *feed {
	return &feed{
		colors:  make(map[string]string),
		palette: []string{colorBlue, colorPurple, colorCyan, colorYellow},
	}
}

func (f *feed) labelFor(node string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	color, ok := f.colors[node]
	if !ok {
		color = f.palette[len(f.colors)%len(f.palette)]
		f.colors[node] = color
	}
	return color + node + colorReset
}

func main() {
	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	appConfig := config.New()
	log := logger.Build(appConfig.Logger)
	defer log.Sync()

	fmt.Println(colorCyan + "🚀 Offload Activity Monitor Starting..." + colorReset)
	fmt.Println(colorGray + "Following completion events and node snapshots..." + colorReset)
	fmt.Println("-------------------------------------------------------------------------")

	f := newFeed()
	watching := false

	// 1. Completion events from the broker
	if appConfig.Queue != nil && appConfig.Queue.Enabled {
		url := appConfig.Queue.URL
		if url == "" {
			fmt.Println(colorRed + "queue.url is empty; set MQ_URL or config.yaml" + colorReset)
			os.Exit(1)
		}
		bus, err := rabbitmq.NewEventBus(url, log.Named("MQ"))
		if err != nil {
			log.Fatal("Failed to init RabbitMQ", zap.Error(err))
		}
		defer bus.Close()

		err = bus.ConsumeCompletions(rootCtx, "monitor.completions", func(event domain.CompletionEvent) error {
			fmt.Printf("[%s] ✅ "+colorGreen+"Task Finished:"+colorReset+" %s (%.3fs total, %.4f Wh)\n",
				f.labelFor(event.Node), event.TaskName,
				event.TotalTime.Seconds(), event.EnergyWh)
			return nil
		})
		if err != nil {
			log.Fatal("Failed to start completion feed", zap.Error(err))
		}
		watching = true
	}

	// 2. Node snapshots from the registry
	if appConfig.Redis != nil && appConfig.Redis.Enabled {
		redisService, err := redisConfig.New(rootCtx, appConfig.Redis)
		if err != nil {
			log.Fatal("Failed to init Redis", zap.Error(err))
		}
		defer redisService.Close()
		registry := redisAdapter.NewStatusRegistry(redisService.Client, log.Named("Redis"))

		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					statuses, err := registry.ListStatuses(rootCtx)
					if err != nil {
						fmt.Printf(colorRed+"status sweep failed: %v"+colorReset+"\n", err)
						continue
					}
					for _, status := range statuses {
						fmt.Printf("[%s] 📊 load %5.1f%% | %d running | %d queued | %d done\n",
							f.labelFor(status.Name), status.LoadPercent,
							status.AssignedTasks, status.QueueLength, status.CompletedTasks)
					}
				}
			}
		}()
		watching = true
	}

	if !watching {
		fmt.Println(colorYellow + "Nothing to watch: enable queue and/or redis in config.yaml" + colorReset)
		return
	}

	<-rootCtx.Done()
	fmt.Println("\n" + colorGray + "Monitor stopped." + colorReset)
}
