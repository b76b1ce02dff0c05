package rabbitmq

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// ConsumeCompletions binds a queue to the completion exchange and feeds each
// decoded event to handler on a background goroutine. Deliveries are acked
// only after the handler returns; handler failures requeue the delivery,
// undecodable bodies are dropped.
func (q *eventBus) ConsumeCompletions(ctx context.Context, queue string, handler func(event domain.CompletionEvent) error) error {
	// 1. One queue per observer, bound to every completion event
	qDecl, err := q.ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}
	if err := q.ch.QueueBind(qDecl.Name, "task.completed.#", completionExchange, false, nil); err != nil {
		return err
	}

	msgs, err := q.ch.Consume(
		qDecl.Name, // queue
		"",         // consumer
		false,      // auto-ack (we ack manually after the handler ran)
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return err
	}

	q.log.Info("Started consuming completions", zap.String("queue", qDecl.Name))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, open := <-msgs:
				if !open {
					return
				}
				var event domain.CompletionEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					q.log.Error("Failed to unmarshal completion", zap.Error(err))
					d.Nack(false, false) // discard invalid message
					continue
				}

				if err := handler(event); err != nil {
					q.log.Error("Completion handling failed", zap.Error(err))
					d.Nack(false, true)
				} else {
					d.Ack(false)
				}
			}
		}
	}()

	return nil
}
