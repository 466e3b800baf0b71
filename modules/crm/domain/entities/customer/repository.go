package customer

import (
	"context"

	"github.com/google/uuid"
)

// Ref is the slim projection reference resolution and duplicate detection
// work against.
type Ref struct {
	ID   uuid.UUID
	Name string
	Code string
}

// ProductLink is one (customer, product) association row; interactions may
// only reference product pairs present here.
type ProductLink struct {
	CustomerID uuid.UUID
	ProductID  uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, data Customer) (Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (Customer, error)

	// ListRefs loads every customer reference for the tenant in one query;
	// callers index the result for per-row lookups.
	ListRefs(ctx context.Context) ([]Ref, error)

	// FindRefsByNames returns existing customers keyed by lower-cased name.
	// One round trip regardless of len(names).
	FindRefsByNames(ctx context.Context, names []string) (map[string]Ref, error)

	// FindRefsByEmails returns existing customers keyed by lower-cased email.
	FindRefsByEmails(ctx context.Context, emails []string) (map[string]Ref, error)

	// ListProductLinks loads the tenant's full customer-product association
	// set in one query.
	ListProductLinks(ctx context.Context) ([]ProductLink, error)
}
