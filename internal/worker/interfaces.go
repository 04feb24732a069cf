package worker

import (
	"context"

	"lumen.app/companion/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// MemoryGenerator mirrors service.MemoryService.Generate, defined here to
// avoid import cycles.
type MemoryGenerator interface {
	Generate(ctx context.Context, job queue.MemoryJob) error
}
