package stagedfile

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound = gerrors.New("staged file not found")
	ErrExpired  = gerrors.New("staged file expired")
)

// StagedFile is the durable record of an uploaded file awaiting import. The
// record lives in the same store as job history so any service instance can
// resolve a handle; the bytes live under the staging directory.
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

func (f StagedFile) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

type Repository interface {
	Create(ctx context.Context, data StagedFile) (StagedFile, error)
	GetByID(ctx context.Context, id uuid.UUID) (StagedFile, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes expired records and returns the stored paths so
	// the caller can unlink the bytes.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}
