package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// statusTTL bounds how long a snapshot survives a silent scheduler. Snapshots
// are refreshed well inside this window.
const statusTTL = 30 * time.Second

type statusRegistry struct {
	client redis.UniversalClient
	log    *zap.Logger
}

// NewStatusRegistry creates a Redis adapter that shares node snapshots with
// out of process observers. It implements port.StatusRegistry.
func NewStatusRegistry(client redis.UniversalClient, log *zap.Logger) *statusRegistry {
	return &statusRegistry{
		client: client,
		log:    log,
	}
}

// PublishStatus saves one node snapshot under node:<name> with a TTL, so
// stale entries age out on their own (heartbeat semantics)
func (c *statusRegistry) PublishStatus(ctx context.Context, status domain.NodeStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("node:%s", status.Name)
	return c.client.Set(ctx, key, data, statusTTL).Err()
}

// ListStatuses returns every live node snapshot
func (c *statusRegistry) ListStatuses(ctx context.Context) ([]domain.NodeStatus, error) {
	keys, err := c.client.Keys(ctx, "node:*").Result()
	if err != nil {
		return nil, err
	}

	var statuses []domain.NodeStatus
	for _, key := range keys {
		val, err := c.client.Get(ctx, key).Result()
		if err != nil {
			continue // Skip keys expired between Keys and Get
		}

		var status domain.NodeStatus
		if err := json.Unmarshal([]byte(val), &status); err != nil {
			c.log.Warn("Dropping unreadable node snapshot", zap.String("key", key), zap.Error(err))
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
