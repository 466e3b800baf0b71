package importjob

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is one queued unit of import work. The queue entry is transient; the
// ImportJob history row with the same JobID outlives it.
type Task struct {
	ID         uuid.UUID
	JobID      uuid.UUID
	TenantID   uuid.UUID
	UserID     uuid.UUID
	EntityKind string
	FileID     uuid.UUID
	Columns    []string
	Mappings   map[string]string
	Attempts   int
	EnqueuedAt time.Time
}

// Queue is a durable at-least-once task queue. Claim hands out one task per
// call with a lock; a claim older than the lock TTL is considered abandoned
// and may be handed out again.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error

	// Claim returns nil, nil when no task is available.
	Claim(ctx context.Context, lockTTL time.Duration, maxAttempts int) (*Task, error)

	// Ack removes a finished task from the queue.
	Ack(ctx context.Context, taskID uuid.UUID) error

	// Release returns a task to the queue after a transient failure.
	Release(ctx context.Context, taskID uuid.UUID, reason string) error

	// Depth reports pending tasks, for metrics.
	Depth(ctx context.Context) (int64, error)
}
