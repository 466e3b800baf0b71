package importjob

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FindParams struct {
	Limit      int
	Offset     int
	UserID     uuid.UUID
	Status     Status
	EntityKind string
	// Q matches the original file name, case-insensitively.
	Q           string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type Repository interface {
	// Upsert collapses repeated writes for one job id to the latest state.
	Upsert(ctx context.Context, job ImportJob) error

	GetByID(ctx context.Context, id uuid.UUID) (ImportJob, error)

	List(ctx context.Context, params *FindParams) ([]ImportJob, int64, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
