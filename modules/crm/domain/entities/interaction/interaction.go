package interaction

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("interaction not found")

type Kind string

const (
	KindCall    Kind = "call"
	KindMeeting Kind = "meeting"
	KindEmail   Kind = "email"
	KindNote    Kind = "note"
)

type Interaction struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	ProductIDs []uuid.UUID
	Kind       Kind
	Subject    string
	Notes      string
	OccurredAt time.Time
	CreatedAt  time.Time
}

type Repository interface {
	Create(ctx context.Context, data Interaction) (Interaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (Interaction, error)
}
