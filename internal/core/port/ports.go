package port

import (
	"context"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// TaskSource defines where offload requests come from. Load returns every
// pending task ordered by creation time.
type TaskSource interface {
	Load(ctx context.Context) ([]*domain.Task, error)
}

// TaskRecorder defines how completed tasks are persisted back
type TaskRecorder interface {
	RecordCompletion(ctx context.Context, event domain.CompletionEvent) error
}

// ServiceTimeEstimator models transmission time, processing time and energy
// for one admitted task. Implementations must never return negative values
// and must not retain the request.
type ServiceTimeEstimator interface {
	Estimate(req domain.EstimateRequest) domain.Estimate
}

// EventPublisher defines how completion events leave the process (RabbitMQ)
type EventPublisher interface {
	PublishCompletion(ctx context.Context, event domain.CompletionEvent) error
}

// StatusRegistry defines how node snapshots are shared with observers (Redis)
type StatusRegistry interface {
	PublishStatus(ctx context.Context, status domain.NodeStatus) error
	ListStatuses(ctx context.Context) ([]domain.NodeStatus, error)
}

// CompletionCallback observes completion events. Callbacks run synchronously
// on the completing goroutine after all node state has been settled; a
// failing or panicking callback is logged and never disturbs scheduler state
// or other callbacks.
type CompletionCallback func(node string, event domain.CompletionEvent) error
