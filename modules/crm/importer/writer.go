package importer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
)

// WriteResult reports the transactional write phase: how many candidates
// landed and the structured failures for the rest.
type WriteResult struct {
	SuccessCount int
	Failures     []importjob.FailedRecord
}

// Writer executes the insert phase. One transaction per job, one savepoint
// per record: a failing insert rolls back only its own effect and the loop
// continues. Chunking bounds memory per commit batch without weakening the
// per-record guarantee.
type Writer struct {
	ChunkSize int
	Log       *logrus.Entry
}

func (w *Writer) chunkSize() int {
	if w.ChunkSize > 0 {
		return w.ChunkSize
	}
	return 500
}

// Write attempts every candidate and never fails the batch for a row-level
// problem. When a transaction cannot be opened or committed it degrades to
// per-record autocommit inserts, which lose savepoint isolation but keep the
// pipeline moving.
func (w *Writer) Write(ctx context.Context, p Profile, candidates []*Candidate) WriteResult {
	var result WriteResult

	for start := 0; start < len(candidates); start += w.chunkSize() {
		end := start + w.chunkSize()
		if end > len(candidates) {
			end = len(candidates)
		}
		w.writeChunk(ctx, p, candidates[start:end], &result)
	}
	return result
}

func (w *Writer) writeChunk(ctx context.Context, p Profile, chunk []*Candidate, result *WriteResult) {
	pool, err := composables.UsePool(ctx)
	if err != nil {
		w.writeDegraded(ctx, p, chunk, result)
		return
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		w.Log.WithError(err).Warn("import write: cannot open transaction, degrading to autocommit")
		w.writeDegraded(ctx, p, chunk, result)
		return
	}

	txCtx := composables.WithTx(ctx, tx)
	if err := composables.ApplyTenantRLS(txCtx, tx); err != nil {
		_ = tx.Rollback(ctx)
		w.writeDegraded(ctx, p, chunk, result)
		return
	}

	successes := 0
	var failures []importjob.FailedRecord
	for _, c := range chunk {
		// pgx nested Begin issues a SAVEPOINT under the outer transaction.
		sp, err := tx.Begin(ctx)
		if err != nil {
			failures = append(failures, writeFailure(c, err))
			continue
		}
		if err := p.Insert(composables.WithTx(ctx, sp), c); err != nil {
			_ = sp.Rollback(ctx)
			failures = append(failures, writeFailure(c, err))
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			failures = append(failures, writeFailure(c, err))
			continue
		}
		successes++
	}

	if err := tx.Commit(ctx); err != nil {
		w.Log.WithError(err).Warn("import write: commit failed, degrading to autocommit")
		_ = tx.Rollback(ctx)
		w.writeDegraded(ctx, p, chunk, result)
		return
	}

	result.SuccessCount += successes
	result.Failures = append(result.Failures, failures...)
}

// writeDegraded is the fallback when no transaction is available: each
// record inserts on its own connection with no savepoint isolation.
func (w *Writer) writeDegraded(ctx context.Context, p Profile, chunk []*Candidate, result *WriteResult) {
	for _, c := range chunk {
		err := composables.InTenantTx(ctx, func(txCtx context.Context) error {
			return p.Insert(txCtx, c)
		})
		if err != nil {
			result.Failures = append(result.Failures, writeFailure(c, err))
			continue
		}
		result.SuccessCount++
	}
}

func writeFailure(c *Candidate, err error) importjob.FailedRecord {
	return importjob.FailedRecord{
		RowNumber: c.RowNumber,
		Data:      c.Original,
		Errors: []importjob.FieldError{{
			Field:    "",
			Message:  err.Error(),
			Category: importjob.CategoryWrite,
		}},
	}
}
