package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/reserva-io/reserva/internal/eventstore"
	"github.com/reserva-io/reserva/internal/queue"
)

const (
	defaultBatchSize = 10
	// Pause after a receive error so a broken queue connection does not
	// spin the loop hot.
	receiveErrorBackoff = time.Second
)

// Worker is the single cooperative projection loop: receive a batch, project
// each message, acknowledge by deleting, repeat. Per-message failures are
// swallowed without acknowledging, so the queue re-delivers; idempotent ops
// make re-delivery converge to the same end-state.
type Worker struct {
	receiver  queue.Receiver
	store     Store
	logger    *slog.Logger
	batchSize int64
}

// NewWorker creates a projection worker.
func NewWorker(receiver queue.Receiver, store Store, logger *slog.Logger) *Worker {
	return &Worker{
		receiver:  receiver,
		store:     store,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Run drains the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Projection worker started", slog.Int64("batch_size", w.batchSize))

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("Projection worker stopping", slog.String("reason", err.Error()))

			return err
		}

		messages, err := w.receiver.Receive(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			w.logger.Error("Failed to receive messages", slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
			case <-time.After(receiveErrorBackoff):
			}

			continue
		}

		for _, message := range messages {
			if err := w.processMessage(ctx, message); err != nil {
				// Not deleted: the message stays on the queue and will be
				// re-delivered.
				metricMessagesFailed.Inc()
				w.logger.Error("Failed to project message",
					slog.String("message_id", message.MessageID),
					slog.String("error", err.Error()),
				)

				continue
			}

			metricMessagesProjected.Inc()
		}
	}
}

// ProcessOnce receives and projects a single batch. Used by tests and by
// single-shot drains.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	messages, err := w.receiver.Receive(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	projected := 0

	for _, message := range messages {
		if err := w.processMessage(ctx, message); err != nil {
			metricMessagesFailed.Inc()
			w.logger.Error("Failed to project message",
				slog.String("message_id", message.MessageID),
				slog.String("error", err.Error()),
			)

			continue
		}

		metricMessagesProjected.Inc()
		projected++
	}

	return projected, nil
}

func (w *Worker) processMessage(ctx context.Context, message queue.Message) error {
	var event eventstore.RecordedEvent
	if err := json.Unmarshal(message.Body, &event); err != nil {
		return fmt.Errorf("failed to decode message body: %w", err)
	}

	ops, err := Project(event)
	if err != nil {
		return err
	}

	for _, op := range ops {
		if err := w.store.Apply(ctx, op); err != nil {
			return fmt.Errorf("failed to apply projection op: %w", err)
		}
	}

	lag := LagRow{
		Projection:         ProjectionName,
		LastProjectedAtUTC: event.OccurredAtUTC,
		EventsBehind:       0,
	}
	if err := w.store.UpsertLag(ctx, lag); err != nil {
		return fmt.Errorf("failed to upsert projection lag: %w", err)
	}

	metricLastProjectedTimestamp.Set(float64(event.OccurredAtUTC.Unix()))

	if err := w.receiver.Delete(ctx, message.ReceiptHandle); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}
