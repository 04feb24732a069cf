package worker

import (
	"context"
	"log/slog"
	"time"

	"lumen.app/companion/common/logger"
	"lumen.app/companion/internal/queue"
)

// StaleClaimer hands over memory jobs another worker read but never acked.
// *queue.RedisConsumer implements it with XAUTOCLAIM.
type StaleClaimer interface {
	ClaimStale(ctx context.Context, claimant string, minIdle time.Duration, cursor string, count int64) ([]queue.Message, string, error)
}

type ReclaimerConfig struct {
	Claimant  string        // consumer name the stale jobs move to
	MinIdle   time.Duration // how long a job may sit unacked before it is taken
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer sweeps the pending list on an interval so a job whose worker
// crashed between read and ack still produces a memory. Claimed jobs go
// through the same handler as fresh ones, so retries and the DLQ apply.
type Reclaimer struct {
	claimer StaleClaimer
	handle  queue.MessageProcessor
	cfg     ReclaimerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewReclaimer(claimer StaleClaimer, handle queue.MessageProcessor, cfg ReclaimerConfig) *Reclaimer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Reclaimer{
		claimer:   claimer,
		handle:    handle,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps once per interval until Stop is called or ctx ends.
func (r *Reclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "companion.worker.reclaimer",
	})
	slog.InfoContext(ctx, "reclaimer started",
		"claimant", r.cfg.Claimant,
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// Sweep walks the whole pending list once and returns how many stale jobs
// were handed to the handler. Handler failures are already routed to requeue
// or the DLQ, so they only show up in the logs here.
func (r *Reclaimer) Sweep(ctx context.Context) int {
	claimed := 0
	cursor := "0-0"
	for {
		messages, next, err := r.claimer.ClaimStale(ctx, r.cfg.Claimant, r.cfg.MinIdle, cursor, r.cfg.BatchSize)
		if err != nil {
			slog.ErrorContext(ctx, "claiming stale memory jobs", "error", err, "cursor", cursor)
			return claimed
		}

		for _, msg := range messages {
			if r.stopping(ctx) {
				return claimed
			}
			claimed++
			r.handleClaimed(ctx, msg)
		}

		if next == "" || next == "0-0" || next == cursor {
			break
		}
		cursor = next
	}

	if claimed > 0 {
		slog.InfoContext(ctx, "stale memory jobs reclaimed", "count", claimed)
	}
	return claimed
}

func (r *Reclaimer) handleClaimed(ctx context.Context, msg queue.Message) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		UserID:    logger.Ptr(msg.UserID),
	})
	slog.InfoContext(ctx, "retrying stale memory job", "date", msg.Date, "attempt", msg.Attempt)

	start := time.Now()
	if err := r.handle(ctx, msg); err != nil {
		slog.WarnContext(ctx, "stale memory job failed again", "error", err)
		return
	}
	slog.DebugContext(ctx, "stale memory job done", "duration_ms", time.Since(start).Milliseconds())
}

func (r *Reclaimer) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-r.stopCh:
		return true
	default:
		return false
	}
}
