package persistence

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/stagedfile"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence/models"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
)

const (
	stagedFileInsertQuery = `
		INSERT INTO staged_files (id, tenant_id, user_id, original_name, stored_path, size, content_type, uploaded_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	stagedFileSelectQuery = `
		SELECT id, tenant_id, user_id, original_name, stored_path, size, content_type, uploaded_at, expires_at
		FROM staged_files
		WHERE tenant_id = $1 AND id = $2`

	stagedFileDeleteQuery = `
		DELETE FROM staged_files
		WHERE tenant_id = $1 AND id = $2`

	stagedFileDeleteExpiredQuery = `
		DELETE FROM staged_files
		WHERE expires_at < $1
		RETURNING stored_path`
)

type PgStagedFileRepository struct{}

func NewStagedFileRepository() stagedfile.Repository {
	return &PgStagedFileRepository{}
}

func (r *PgStagedFileRepository) Create(ctx context.Context, data stagedfile.StagedFile) (stagedfile.StagedFile, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return stagedfile.StagedFile{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return stagedfile.StagedFile{}, err
	}

	out := data
	out.TenantID = tenantID
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if _, err := tx.Exec(
		ctx,
		stagedFileInsertQuery,
		out.ID,
		tenantID,
		out.UserID,
		out.OriginalName,
		out.StoredPath,
		out.Size,
		out.ContentType,
		out.UploadedAt,
		out.ExpiresAt,
	); err != nil {
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "insert staged file")
	}
	return out, nil
}

func (r *PgStagedFileRepository) GetByID(ctx context.Context, id uuid.UUID) (stagedfile.StagedFile, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return stagedfile.StagedFile{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return stagedfile.StagedFile{}, err
	}

	var row models.StagedFile
	if err := tx.QueryRow(ctx, stagedFileSelectQuery, tenantID, id).Scan(
		&row.ID,
		&row.TenantID,
		&row.UserID,
		&row.OriginalName,
		&row.StoredPath,
		&row.Size,
		&row.ContentType,
		&row.UploadedAt,
		&row.ExpiresAt,
	); err != nil {
		if gerrors.Is(err, pgx.ErrNoRows) {
			return stagedfile.StagedFile{}, stagedfile.ErrNotFound
		}
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "query staged file")
	}
	return toDomainStagedFile(&row), nil
}

func (r *PgStagedFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, stagedFileDeleteQuery, tenantID, id); err != nil {
		return gerrors.Wrap(err, "delete staged file")
	}
	return nil
}

// DeleteExpired runs without a tenant filter; the cleanup loop sweeps the
// whole store.
func (r *PgStagedFileRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, stagedFileDeleteExpiredQuery, now)
	if err != nil {
		return nil, gerrors.Wrap(err, "delete expired staged files")
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, gerrors.Wrap(err, "scan stored path")
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}
