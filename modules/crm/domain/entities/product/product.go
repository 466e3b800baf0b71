package product

import (
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = gerrors.New("product not found")

type Category string

const (
	CategoryService      Category = "service"
	CategoryGoods        Category = "goods"
	CategorySubscription Category = "subscription"
)

type Product struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	SKU         string
	Name        string
	Category    Category
	Price       decimal.Decimal
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
