package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"lumen.app/companion/common/logger"
	"lumen.app/companion/internal/queue"
)

// readBackoff is the pause after a failed stream read.
const readBackoff = time.Second

type Config struct {
	MaxAttempts int

	// Retryable decides whether a failed job goes back on the stream. Nil
	// treats every error as retryable.
	Retryable func(ctx context.Context, err error) bool
}

type Worker struct {
	consumer  Consumer
	generator MemoryGenerator
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, generator MemoryGenerator, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		consumer:  consumer,
		generator: generator,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "companion.worker",
	})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-time.After(readBackoff):
				case <-ctx.Done():
					return ctx.Err()
				case <-w.stopCh:
					slog.InfoContext(ctx, "worker stopping")
					return nil
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		w.Handle(ctx, msg)
	}
	return nil
}

// Handle processes one message and routes failures to requeue or the DLQ.
// Exported so it can be reused by the reclaimer.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(msg.UserID),
		MessageID: logger.Ptr(msg.ID),
		TaskType:  logger.Ptr(string(msg.TaskType)),
	})

	if err := w.processMessageSafe(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"date", msg.Date,
			"attempt", msg.Attempt)
		w.handleFailedMessage(ctx, msg, err)
		return err
	}
	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processMessage(ctx, msg)
}

func (w *Worker) processMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartJobSpan(ctx, msg.TraceParent, "worker.generate_memory",
		attribute.Int64("companion.user_id", msg.UserID),
		attribute.String("companion.memory_date", msg.Date),
		attribute.Int("companion.attempt", msg.Attempt),
	)
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing message",
		"date", msg.Date,
		"attempt", msg.Attempt)

	start := time.Now()
	if err := w.generator.Generate(ctx, msg.Job()); err != nil {
		sc.RecordError(err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The memory is saved; a redelivery overwrites it with a fresh one.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "memory generated",
		"date", msg.Date,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	retryable := w.cfg.Retryable == nil || w.cfg.Retryable(ctx, err)

	if !retryable || msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "sending message to DLQ",
			"retryable", retryable,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message", "attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
