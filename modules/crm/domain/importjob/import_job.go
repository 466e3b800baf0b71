package importjob

import (
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("import job not found")

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

// Terminal reports whether the job has left the queue for good. Pollers stop
// at the first terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// Category classifies a row-level problem; resolution and association
// failures are distinct classes from plain field validation.
type Category string

const (
	CategoryValidation  Category = "validation"
	CategoryReference   Category = "reference"
	CategoryAssociation Category = "association"
	CategoryDuplicate   Category = "duplicate"
	CategoryWrite       Category = "write"
)

type FieldError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Category Category `json:"category"`
}

// FailedRecord keeps a failed row's original data alongside its errors so the
// error report can be regenerated, and retries can re-derive an input file,
// without the original upload.
type FailedRecord struct {
	RowNumber int               `json:"rowNumber"`
	Data      map[string]string `json:"data"`
	Errors    []FieldError      `json:"errors"`
}

// ImportJob is the durable history record of one asynchronous import run. It
// is upserted as the worker progresses and survives the queue entry.
type ImportJob struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UserID     uuid.UUID
	EntityKind string
	FileID     uuid.UUID
	FileName   string

	// Columns preserves the source column order for report rendering;
	// Mappings is sourceColumn -> targetField for mapped columns only.
	Columns  []string
	Mappings map[string]string

	Status           Status
	TotalRecords     int
	ProcessedRecords int
	SuccessCount     int
	FailureCount     int
	DuplicateCount   int

	FailedRecords []FailedRecord
	ErrorMessage  string

	EnqueuedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Progress returns completion as 0-100.
func (j ImportJob) Progress() int {
	if j.Status.Terminal() {
		return 100
	}
	if j.TotalRecords <= 0 {
		return 0
	}
	p := j.ProcessedRecords * 100 / j.TotalRecords
	if p > 100 {
		p = 100
	}
	return p
}
