package messaging

import (
	"context"
	"time"
)

// Queue is a durable task queue. Enqueue is fire-and-forget from the
// producer's perspective; consumers assume at-least-once delivery and
// must tolerate redelivered jobs.
type Queue interface {
	Enqueue(ctx context.Context, queue string, payload interface{}) error
	Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	Depth(ctx context.Context, queue string) (int64, error)
	Close() error
}
