// Package redis builds the client behind the node status registry.
package redis

import (
	"context"
	"fmt"
	"time"

	config "github.com/fogsched/fogsched/config/utils"

	redigo "github.com/redis/go-redis/v9"
)

type Redis struct {
	Client redigo.UniversalClient
}

// New connects, pings and returns the client. Status snapshots are small and
// frequent, so timeouts stay tight and retries are bounded.
func New(ctx context.Context, cfg *config.Redis) (*Redis, error) {
	client := redigo.NewUniversalClient(&redigo.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       0,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: time.Second,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,

		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{client}, nil
}

// Close releases the client's pooled connections.
func (r *Redis) Close() error {
	return r.Client.Close()
}
