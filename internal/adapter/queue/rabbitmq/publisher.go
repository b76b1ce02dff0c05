package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// completionExchange is where completion events land. Routing keys are
// task.completed.<node>, so observers can follow one node or everything.
const completionExchange = "offload.events"

type eventBus struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *zap.Logger
}

// NewEventBus dials RabbitMQ and declares the completion exchange. It
// implements port.EventPublisher.
func NewEventBus(url string, log *zap.Logger) (*eventBus, error) {
	var conn *amqp.Connection
	var err error

	// Retry connection up to 10 times with backoff
	maxRetries := 10
	for i := 1; i <= maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			var ch *amqp.Channel
			ch, err = conn.Channel()
			if err == nil {
				err = ch.ExchangeDeclare(
					completionExchange, // name
					"topic",            // kind
					true,               // durable
					false,              // delete when unused
					false,              // internal
					false,              // no-wait
					nil,                // arguments
				)
				if err == nil {
					return &eventBus{
						conn: conn,
						ch:   ch,
						log:  log,
					}, nil
				}
			}
			conn.Close()
		}

		log.Warn("Failed to connect to RabbitMQ, retrying...",
			zap.Int("attempt", i),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)

		// Simple incremental backoff
		time.Sleep(time.Duration(i*2) * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// PublishCompletion sends one completion event to the exchange
func (q *eventBus) PublishCompletion(ctx context.Context, event domain.CompletionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	routingKey := fmt.Sprintf("task.completed.%s", event.Node)

	err = q.ch.PublishWithContext(ctx,
		completionExchange, // Exchange
		routingKey,         // Routing key
		false,              // Mandatory
		false,              // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   event.CompletedAt,
		})

	if err != nil {
		q.log.Error("Failed to publish completion", zap.Error(err))
		return err
	}

	q.log.Debug("Published completion",
		zap.String("task_id", event.TaskID),
		zap.String("key", routingKey))
	return nil
}

// Close tears the channel and connection down
func (q *eventBus) Close() {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}
