package product

import (
	"context"

	"github.com/google/uuid"
)

type Ref struct {
	ID   uuid.UUID
	Name string
	SKU  string
}

type Repository interface {
	Create(ctx context.Context, data Product) (Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (Product, error)

	ListRefs(ctx context.Context) ([]Ref, error)

	// FindRefsByNames returns existing products keyed by lower-cased name.
	FindRefsByNames(ctx context.Context, names []string) (map[string]Ref, error)

	// FindRefsBySKUs returns existing products keyed by upper-cased SKU.
	FindRefsBySKUs(ctx context.Context, skus []string) (map[string]Ref, error)
}
