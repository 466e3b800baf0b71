package importer

import (
	"time"

	"github.com/google/uuid"
)

// JobCompletedEvent is published on the event bus when a job reaches a
// terminal status. Subscribers treat it as an audit signal.
type JobCompletedEvent struct {
	JobID        uuid.UUID
	TenantID     uuid.UUID
	UserID       uuid.UUID
	EntityKind   string
	Status       string
	TotalRecords int
	SuccessCount int
	FailureCount int
	Duration     time.Duration
}
