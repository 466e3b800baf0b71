package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Code      string
	Name      string
	Type      string
	Email     string
	Phone     string
	Website   string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	SKU         string
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Interaction struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	Kind       string
	Subject    string
	Notes      string
	OccurredAt time.Time
	CreatedAt  time.Time
}

type StagedFile struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	UserID       uuid.UUID
	OriginalName string
	StoredPath   string
	Size         int64
	ContentType  string
	UploadedAt   time.Time
	ExpiresAt    time.Time
}

type ImportJob struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	UserID           uuid.UUID
	EntityKind       string
	FileID           uuid.UUID
	FileName         string
	Columns          []byte
	Mappings         []byte
	Status           string
	TotalRecords     int
	ProcessedRecords int
	SuccessCount     int
	FailureCount     int
	DuplicateCount   int
	FailedRecords    []byte
	ErrorMessage     string
	EnqueuedAt       time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

type ImportTask struct {
	ID         uuid.UUID
	JobID      uuid.UUID
	TenantID   uuid.UUID
	UserID     uuid.UUID
	EntityKind string
	FileID     uuid.UUID
	Columns    []byte
	Mappings   []byte
	Attempts   int
	EnqueuedAt time.Time
}
