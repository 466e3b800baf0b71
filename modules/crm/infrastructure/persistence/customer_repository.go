package persistence

import (
	"context"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/customer"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence/models"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
)

const (
	customerInsertQuery = `
		INSERT INTO customers (tenant_id, code, name, type, email, phone, website, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	customerSelectQuery = `
		SELECT id, tenant_id, code, name, type, email, phone, website, address, created_at, updated_at
		FROM customers
		WHERE tenant_id = $1 AND id = $2`

	customerRefsQuery = `
		SELECT id, name, code
		FROM customers
		WHERE tenant_id = $1`

	customerRefsByNamesQuery = `
		SELECT id, name, code
		FROM customers
		WHERE tenant_id = $1 AND lower(name) = ANY ($2)`

	customerRefsByEmailsQuery = `
		SELECT id, name, code, lower(email)
		FROM customers
		WHERE tenant_id = $1 AND email <> '' AND lower(email) = ANY ($2)`

	customerProductLinksQuery = `
		SELECT customer_id, product_id
		FROM customer_products
		WHERE tenant_id = $1`
)

type PgCustomerRepository struct{}

func NewCustomerRepository() customer.Repository {
	return &PgCustomerRepository{}
}

func (r *PgCustomerRepository) Create(ctx context.Context, data customer.Customer) (customer.Customer, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return customer.Customer{}, err
	}

	out := data
	out.TenantID = tenantID
	if err := tx.QueryRow(
		ctx,
		customerInsertQuery,
		tenantID,
		data.Code,
		data.Name,
		string(data.Type),
		data.Email,
		data.Phone,
		data.Website,
		data.Address,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return customer.Customer{}, gerrors.Wrap(err, "insert customer")
	}
	return out, nil
}

func (r *PgCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (customer.Customer, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return customer.Customer{}, err
	}

	var row models.Customer
	if err := tx.QueryRow(ctx, customerSelectQuery, tenantID, id).Scan(
		&row.ID,
		&row.TenantID,
		&row.Code,
		&row.Name,
		&row.Type,
		&row.Email,
		&row.Phone,
		&row.Website,
		&row.Address,
		&row.CreatedAt,
		&row.UpdatedAt,
	); err != nil {
		if gerrors.Is(err, pgx.ErrNoRows) {
			return customer.Customer{}, customer.ErrNotFound
		}
		return customer.Customer{}, gerrors.Wrap(err, "query customer")
	}
	return toDomainCustomer(&row), nil
}

func (r *PgCustomerRepository) ListRefs(ctx context.Context) ([]customer.Ref, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, customerRefsQuery, tenantID)
	if err != nil {
		return nil, gerrors.Wrap(err, "query customer refs")
	}
	defer rows.Close()

	refs := make([]customer.Ref, 0)
	for rows.Next() {
		var ref customer.Ref
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Code); err != nil {
			return nil, gerrors.Wrap(err, "scan customer ref")
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *PgCustomerRepository) FindRefsByNames(ctx context.Context, names []string) (map[string]customer.Ref, error) {
	out := make(map[string]customer.Ref, len(names))
	if len(names) == 0 {
		return out, nil
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	lowered := make([]string, 0, len(names))
	for _, name := range names {
		lowered = append(lowered, strings.ToLower(name))
	}

	rows, err := tx.Query(ctx, customerRefsByNamesQuery, tenantID, lowered)
	if err != nil {
		return nil, gerrors.Wrap(err, "query customers by names")
	}
	defer rows.Close()

	for rows.Next() {
		var ref customer.Ref
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Code); err != nil {
			return nil, gerrors.Wrap(err, "scan customer ref")
		}
		out[strings.ToLower(ref.Name)] = ref
	}
	return out, rows.Err()
}

func (r *PgCustomerRepository) FindRefsByEmails(ctx context.Context, emails []string) (map[string]customer.Ref, error) {
	out := make(map[string]customer.Ref, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	lowered := make([]string, 0, len(emails))
	for _, email := range emails {
		lowered = append(lowered, strings.ToLower(email))
	}

	rows, err := tx.Query(ctx, customerRefsByEmailsQuery, tenantID, lowered)
	if err != nil {
		return nil, gerrors.Wrap(err, "query customers by emails")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref   customer.Ref
			email string
		)
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Code, &email); err != nil {
			return nil, gerrors.Wrap(err, "scan customer ref")
		}
		out[email] = ref
	}
	return out, rows.Err()
}

func (r *PgCustomerRepository) ListProductLinks(ctx context.Context) ([]customer.ProductLink, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, customerProductLinksQuery, tenantID)
	if err != nil {
		return nil, gerrors.Wrap(err, "query customer product links")
	}
	defer rows.Close()

	links := make([]customer.ProductLink, 0)
	for rows.Next() {
		var link customer.ProductLink
		if err := rows.Scan(&link.CustomerID, &link.ProductID); err != nil {
			return nil, gerrors.Wrap(err, "scan customer product link")
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
