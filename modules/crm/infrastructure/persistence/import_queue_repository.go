package persistence

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence/models"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
)

const (
	importTaskInsertQuery = `
		INSERT INTO import_queue (id, job_id, tenant_id, user_id, entity_kind, file_id, columns, mappings, attempts, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	// One task per call. SKIP LOCKED keeps concurrent workers from blocking
	// on each other; a stale locked_at means the previous claimant died and
	// the task is up for grabs again.
	importTaskClaimQuery = `
		UPDATE import_queue
		SET locked_at = now(), attempts = attempts + 1
		WHERE id = (
			SELECT id
			FROM import_queue
			WHERE (locked_at IS NULL OR locked_at < $1)
			  AND attempts < $2
			ORDER BY enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, job_id, tenant_id, user_id, entity_kind, file_id, columns, mappings, attempts, enqueued_at`

	importTaskAckQuery = `
		DELETE FROM import_queue
		WHERE id = $1`

	importTaskReleaseQuery = `
		UPDATE import_queue
		SET locked_at = NULL, last_error = $2
		WHERE id = $1`

	importTaskDepthQuery = `
		SELECT COUNT(*)
		FROM import_queue
		WHERE locked_at IS NULL`
)

type PgImportQueue struct{}

func NewImportQueue() importjob.Queue {
	return &PgImportQueue{}
}

func (q *PgImportQueue) Enqueue(ctx context.Context, task importjob.Task) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row, err := toDBImportTask(task)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		ctx,
		importTaskInsertQuery,
		row.ID,
		row.JobID,
		row.TenantID,
		row.UserID,
		row.EntityKind,
		row.FileID,
		row.Columns,
		row.Mappings,
		row.Attempts,
		row.EnqueuedAt,
	); err != nil {
		return gerrors.Wrap(err, "enqueue import task")
	}
	return nil
}

func (q *PgImportQueue) Claim(ctx context.Context, lockTTL time.Duration, maxAttempts int) (*importjob.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-lockTTL)
	var row models.ImportTask
	if err := tx.QueryRow(ctx, importTaskClaimQuery, cutoff, maxAttempts).Scan(
		&row.ID,
		&row.JobID,
		&row.TenantID,
		&row.UserID,
		&row.EntityKind,
		&row.FileID,
		&row.Columns,
		&row.Mappings,
		&row.Attempts,
		&row.EnqueuedAt,
	); err != nil {
		if gerrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, gerrors.Wrap(err, "claim import task")
	}

	task, err := toDomainImportTask(&row)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (q *PgImportQueue) Ack(ctx context.Context, taskID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, importTaskAckQuery, taskID); err != nil {
		return gerrors.Wrap(err, "ack import task")
	}
	return nil
}

func (q *PgImportQueue) Release(ctx context.Context, taskID uuid.UUID, reason string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, importTaskReleaseQuery, taskID, reason); err != nil {
		return gerrors.Wrap(err, "release import task")
	}
	return nil
}

func (q *PgImportQueue) Depth(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var depth int64
	if err := tx.QueryRow(ctx, importTaskDepthQuery).Scan(&depth); err != nil {
		return 0, gerrors.Wrap(err, "queue depth")
	}
	return depth, nil
}
