package persistence

import (
	"context"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/interaction"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence/models"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
)

const (
	interactionInsertQuery = `
		INSERT INTO interactions (tenant_id, customer_id, kind, subject, notes, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	interactionProductInsertQuery = `
		INSERT INTO interaction_products (interaction_id, product_id)
		VALUES ($1, $2)`

	interactionSelectQuery = `
		SELECT id, tenant_id, customer_id, kind, subject, notes, occurred_at, created_at
		FROM interactions
		WHERE tenant_id = $1 AND id = $2`

	interactionProductsQuery = `
		SELECT product_id
		FROM interaction_products
		WHERE interaction_id = $1`
)

type PgInteractionRepository struct{}

func NewInteractionRepository() interaction.Repository {
	return &PgInteractionRepository{}
}

// Create inserts the interaction row together with its product link rows.
// Callers run it inside a transaction so the links never outlive a failed
// insert.
func (r *PgInteractionRepository) Create(ctx context.Context, data interaction.Interaction) (interaction.Interaction, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return interaction.Interaction{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return interaction.Interaction{}, err
	}

	out := data
	out.TenantID = tenantID
	if err := tx.QueryRow(
		ctx,
		interactionInsertQuery,
		tenantID,
		data.CustomerID,
		string(data.Kind),
		data.Subject,
		data.Notes,
		data.OccurredAt,
	).Scan(&out.ID, &out.CreatedAt); err != nil {
		return interaction.Interaction{}, gerrors.Wrap(err, "insert interaction")
	}

	for _, productID := range data.ProductIDs {
		if _, err := tx.Exec(ctx, interactionProductInsertQuery, out.ID, productID); err != nil {
			return interaction.Interaction{}, gerrors.Wrap(err, "insert interaction product")
		}
	}
	return out, nil
}

func (r *PgInteractionRepository) GetByID(ctx context.Context, id uuid.UUID) (interaction.Interaction, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return interaction.Interaction{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return interaction.Interaction{}, err
	}

	var row models.Interaction
	if err := tx.QueryRow(ctx, interactionSelectQuery, tenantID, id).Scan(
		&row.ID,
		&row.TenantID,
		&row.CustomerID,
		&row.Kind,
		&row.Subject,
		&row.Notes,
		&row.OccurredAt,
		&row.CreatedAt,
	); err != nil {
		if gerrors.Is(err, pgx.ErrNoRows) {
			return interaction.Interaction{}, interaction.ErrNotFound
		}
		return interaction.Interaction{}, gerrors.Wrap(err, "query interaction")
	}

	rows, err := tx.Query(ctx, interactionProductsQuery, id)
	if err != nil {
		return interaction.Interaction{}, gerrors.Wrap(err, "query interaction products")
	}
	defer rows.Close()

	var productIDs []uuid.UUID
	for rows.Next() {
		var productID uuid.UUID
		if err := rows.Scan(&productID); err != nil {
			return interaction.Interaction{}, gerrors.Wrap(err, "scan interaction product")
		}
		productIDs = append(productIDs, productID)
	}
	if err := rows.Err(); err != nil {
		return interaction.Interaction{}, err
	}
	return toDomainInteraction(&row, productIDs), nil
}
