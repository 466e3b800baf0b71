package persistence

import (
	"context"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/product"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence/models"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
)

const (
	productInsertQuery = `
		INSERT INTO products (tenant_id, sku, name, category, price, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	productSelectQuery = `
		SELECT id, tenant_id, sku, name, category, price, description, created_at, updated_at
		FROM products
		WHERE tenant_id = $1 AND id = $2`

	productRefsQuery = `
		SELECT id, name, sku
		FROM products
		WHERE tenant_id = $1`

	productRefsByNamesQuery = `
		SELECT id, name, sku
		FROM products
		WHERE tenant_id = $1 AND lower(name) = ANY ($2)`

	productRefsBySKUsQuery = `
		SELECT id, name, sku
		FROM products
		WHERE tenant_id = $1 AND upper(sku) = ANY ($2)`
)

type PgProductRepository struct{}

func NewProductRepository() product.Repository {
	return &PgProductRepository{}
}

func (r *PgProductRepository) Create(ctx context.Context, data product.Product) (product.Product, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return product.Product{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return product.Product{}, err
	}

	out := data
	out.TenantID = tenantID
	if err := tx.QueryRow(
		ctx,
		productInsertQuery,
		tenantID,
		data.SKU,
		data.Name,
		string(data.Category),
		data.Price,
		data.Description,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return product.Product{}, gerrors.Wrap(err, "insert product")
	}
	return out, nil
}

func (r *PgProductRepository) GetByID(ctx context.Context, id uuid.UUID) (product.Product, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return product.Product{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return product.Product{}, err
	}

	var row models.Product
	if err := tx.QueryRow(ctx, productSelectQuery, tenantID, id).Scan(
		&row.ID,
		&row.TenantID,
		&row.SKU,
		&row.Name,
		&row.Category,
		&row.Price,
		&row.Description,
		&row.CreatedAt,
		&row.UpdatedAt,
	); err != nil {
		if gerrors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, gerrors.Wrap(err, "query product")
	}
	return toDomainProduct(&row), nil
}

func (r *PgProductRepository) ListRefs(ctx context.Context) ([]product.Ref, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, productRefsQuery, tenantID)
	if err != nil {
		return nil, gerrors.Wrap(err, "query product refs")
	}
	defer rows.Close()

	refs := make([]product.Ref, 0)
	for rows.Next() {
		var ref product.Ref
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.SKU); err != nil {
			return nil, gerrors.Wrap(err, "scan product ref")
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *PgProductRepository) FindRefsByNames(ctx context.Context, names []string) (map[string]product.Ref, error) {
	out := make(map[string]product.Ref, len(names))
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

	rows, err := tx.Query(ctx, productRefsByNamesQuery, tenantID, lowered)
	if err != nil {
		return nil, gerrors.Wrap(err, "query products by names")
	}
	defer rows.Close()

	for rows.Next() {
		var ref product.Ref
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.SKU); err != nil {
			return nil, gerrors.Wrap(err, "scan product ref")
		}
		out[strings.ToLower(ref.Name)] = ref
	}
	return out, rows.Err()
}

func (r *PgProductRepository) FindRefsBySKUs(ctx context.Context, skus []string) (map[string]product.Ref, error) {
	out := make(map[string]product.Ref, len(skus))
	if len(skus) == 0 {
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

	uppered := make([]string, 0, len(skus))
	for _, sku := range skus {
		uppered = append(uppered, strings.ToUpper(sku))
	}

	rows, err := tx.Query(ctx, productRefsBySKUsQuery, tenantID, uppered)
	if err != nil {
		return nil, gerrors.Wrap(err, "query products by skus")
	}
	defer rows.Close()

	for rows.Next() {
		var ref product.Ref
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.SKU); err != nil {
			return nil, gerrors.Wrap(err, "scan product ref")
		}
		out[strings.ToUpper(ref.SKU)] = ref
	}
	return out, rows.Err()
}
