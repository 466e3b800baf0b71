package customer

import (
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("customer not found")

type Type string

const (
	TypeIndividual Type = "individual"
	TypeCompany    Type = "company"
)

type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Code      string
	Name      string
	Type      Type
	Email     string
	Phone     string
	Website   string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
