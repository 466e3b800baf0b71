package persistence

import (
	"context"
	"fmt"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence/models"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/repo"
)

const (
	importJobUpsertQuery = `
		INSERT INTO import_jobs (
			id, tenant_id, user_id, entity_kind, file_id, file_name,
			columns, mappings, status, total_records, processed_records,
			success_count, failure_count, duplicate_count, failed_records,
			error_message, enqueued_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_records = EXCLUDED.total_records,
			processed_records = EXCLUDED.processed_records,
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			duplicate_count = EXCLUDED.duplicate_count,
			failed_records = EXCLUDED.failed_records,
			error_message = EXCLUDED.error_message,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`

	importJobFields = `
		id, tenant_id, user_id, entity_kind, file_id, file_name,
		columns, mappings, status, total_records, processed_records,
		success_count, failure_count, duplicate_count, failed_records,
		error_message, enqueued_at, started_at, completed_at`

	importJobCountByStatusQuery = `
		SELECT status, COUNT(*)
		FROM import_jobs
		WHERE tenant_id = $1
		GROUP BY status`
)

type PgImportJobRepository struct{}

func NewImportJobRepository() importjob.Repository {
	return &PgImportJobRepository{}
}

func (r *PgImportJobRepository) Upsert(ctx context.Context, job importjob.ImportJob) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	job.TenantID = tenantID
	row, err := toDBImportJob(job)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		ctx,
		importJobUpsertQuery,
		row.ID,
		row.TenantID,
		row.UserID,
		row.EntityKind,
		row.FileID,
		row.FileName,
		row.Columns,
		row.Mappings,
		row.Status,
		row.TotalRecords,
		row.ProcessedRecords,
		row.SuccessCount,
		row.FailureCount,
		row.DuplicateCount,
		row.FailedRecords,
		row.ErrorMessage,
		row.EnqueuedAt,
		row.StartedAt,
		row.CompletedAt,
	); err != nil {
		return gerrors.Wrap(err, "upsert import job")
	}
	return nil
}

func (r *PgImportJobRepository) GetByID(ctx context.Context, id uuid.UUID) (importjob.ImportJob, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return importjob.ImportJob{}, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return importjob.ImportJob{}, err
	}

	query := fmt.Sprintf("SELECT %s FROM import_jobs WHERE tenant_id = $1 AND id = $2", importJobFields)
	row, err := scanImportJob(tx.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if gerrors.Is(err, pgx.ErrNoRows) {
			return importjob.ImportJob{}, importjob.ErrNotFound
		}
		return importjob.ImportJob{}, gerrors.Wrap(err, "query import job")
	}
	return toDomainImportJob(row)
}

func (r *PgImportJobRepository) List(ctx context.Context, params *importjob.FindParams) ([]importjob.ImportJob, int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if params.UserID != uuid.Nil {
		args = append(args, params.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.EntityKind != "" {
		args = append(args, params.EntityKind)
		where = append(where, fmt.Sprintf("entity_kind = $%d", len(args)))
	}
	if params.Q != "" {
		args = append(args, "%"+repo.EscapeLike(params.Q)+"%")
		where = append(where, fmt.Sprintf("file_name ILIKE $%d", len(args)))
	}
	if params.CreatedFrom != nil {
		args = append(args, *params.CreatedFrom)
		where = append(where, fmt.Sprintf("enqueued_at >= $%d", len(args)))
	}
	if params.CreatedTo != nil {
		args = append(args, *params.CreatedTo)
		where = append(where, fmt.Sprintf("enqueued_at <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM import_jobs WHERE " + whereClause
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, gerrors.Wrap(err, "count import jobs")
	}

	query := fmt.Sprintf(
		"SELECT %s FROM import_jobs WHERE %s ORDER BY enqueued_at DESC %s",
		importJobFields,
		whereClause,
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "query import jobs")
	}
	defer rows.Close()

	jobs := make([]importjob.ImportJob, 0)
	for rows.Next() {
		row, err := scanImportJob(rows)
		if err != nil {
			return nil, 0, gerrors.Wrap(err, "scan import job")
		}
		job, err := toDomainImportJob(row)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

func (r *PgImportJobRepository) CountByStatus(ctx context.Context) (map[importjob.Status]int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, importJobCountByStatusQuery, tenantID)
	if err != nil {
		return nil, gerrors.Wrap(err, "count import jobs by status")
	}
	defer rows.Close()

	out := make(map[importjob.Status]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, gerrors.Wrap(err, "scan status count")
		}
		out[importjob.Status(status)] = count
	}
	return out, rows.Err()
}

func scanImportJob(row pgx.Row) (*models.ImportJob, error) {
	var m models.ImportJob
	if err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.UserID,
		&m.EntityKind,
		&m.FileID,
		&m.FileName,
		&m.Columns,
		&m.Mappings,
		&m.Status,
		&m.TotalRecords,
		&m.ProcessedRecords,
		&m.SuccessCount,
		&m.FailureCount,
		&m.DuplicateCount,
		&m.FailedRecords,
		&m.ErrorMessage,
		&m.EnqueuedAt,
		&m.StartedAt,
		&m.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
