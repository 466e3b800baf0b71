//go:build integration

package persistence_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/itf"
)

func seedJob(env *itf.Env, kind string, status importjob.Status) importjob.ImportJob {
	return importjob.ImportJob{
		ID:         uuid.New(),
		TenantID:   env.TenantID,
		UserID:     env.UserID,
		EntityKind: kind,
		FileID:     uuid.New(),
		FileName:   fmt.Sprintf("%s-import.csv", kind),
		Columns:    []string{"Name", "Type"},
		Mappings:   map[string]string{"Name": "name", "Type": "type"},
		Status:     status,
		EnqueuedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestImportJobRepository_UpsertCollapses(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	jobs := persistence.NewImportJobRepository()

	job := seedJob(env, "customers", importjob.StatusQueued)
	require.NoError(t, jobs.Upsert(env.Ctx, job))

	// Progress updates rewrite the same row, not append history.
	job.Status = importjob.StatusProcessing
	job.TotalRecords = 10
	job.ProcessedRecords = 4
	require.NoError(t, jobs.Upsert(env.Ctx, job))

	now := time.Now().UTC().Truncate(time.Millisecond)
	job.Status = importjob.StatusPartial
	job.ProcessedRecords = 10
	job.SuccessCount = 8
	job.FailureCount = 2
	job.DuplicateCount = 1
	job.CompletedAt = &now
	job.FailedRecords = []importjob.FailedRecord{
		{
			RowNumber: 3,
			Data:      map[string]string{"Name": "Globex", "Type": "llc"},
			Errors:    []importjob.FieldError{{Field: "type", Message: "unknown value", Category: importjob.CategoryValidation}},
		},
	}
	require.NoError(t, jobs.Upsert(env.Ctx, job))

	got, err := jobs.GetByID(env.Ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusPartial, got.Status)
	assert.Equal(t, 8, got.SuccessCount)
	assert.Equal(t, 2, got.FailureCount)
	assert.Equal(t, 1, got.DuplicateCount)
	require.Len(t, got.FailedRecords, 1)
	assert.Equal(t, "Globex", got.FailedRecords[0].Data["Name"])
	assert.Equal(t, importjob.CategoryValidation, got.FailedRecords[0].Errors[0].Category)
	require.NotNil(t, got.CompletedAt)

	_, total, err := jobs.List(env.Ctx, &importjob.FindParams{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestImportJobRepository_GetByID_NotFound(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	jobs := persistence.NewImportJobRepository()

	_, err := jobs.GetByID(env.Ctx, uuid.New())
	assert.ErrorIs(t, err, importjob.ErrNotFound)
}

func TestImportJobRepository_ListFilters(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	jobs := persistence.NewImportJobRepository()

	completed := seedJob(env, "customers", importjob.StatusCompleted)
	failed := seedJob(env, "products", importjob.StatusFailed)
	failed.FileName = "q3-products.xlsx"
	queued := seedJob(env, "customers", importjob.StatusQueued)
	queued.EnqueuedAt = queued.EnqueuedAt.Add(time.Minute)

	for _, job := range []importjob.ImportJob{completed, failed, queued} {
		require.NoError(t, jobs.Upsert(env.Ctx, job))
	}

	byKind, total, err := jobs.List(env.Ctx, &importjob.FindParams{EntityKind: "customers", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, byKind, 2)
	assert.Equal(t, queued.ID, byKind[0].ID, "newest first")

	byStatus, total, err := jobs.List(env.Ctx, &importjob.FindParams{Status: importjob.StatusFailed, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, failed.ID, byStatus[0].ID)

	byName, total, err := jobs.List(env.Ctx, &importjob.FindParams{Q: "q3-prod", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, failed.ID, byName[0].ID)

	paged, total, err := jobs.List(env.Ctx, &importjob.FindParams{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, paged, 1)
}

func TestImportJobRepository_CountByStatus(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	jobs := persistence.NewImportJobRepository()

	for _, status := range []importjob.Status{
		importjob.StatusCompleted,
		importjob.StatusCompleted,
		importjob.StatusFailed,
	} {
		require.NoError(t, jobs.Upsert(env.Ctx, seedJob(env, "customers", status)))
	}

	counts, err := jobs.CountByStatus(env.Ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[importjob.StatusCompleted])
	assert.EqualValues(t, 1, counts[importjob.StatusFailed])
}

func TestImportJobRepository_TenantIsolation(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	jobs := persistence.NewImportJobRepository()

	job := seedJob(env, "customers", importjob.StatusCompleted)
	require.NoError(t, jobs.Upsert(env.Ctx, job))

	otherTenant := uuid.New()
	_, err := env.Pool.Exec(env.Ctx, "INSERT INTO tenants (id, name) VALUES ($1, $2)", otherTenant, "other")
	require.NoError(t, err)

	otherCtx := composables.WithTenantID(env.Ctx, otherTenant)
	_, err = jobs.GetByID(otherCtx, job.ID)
	assert.ErrorIs(t, err, importjob.ErrNotFound, "jobs never cross the tenant boundary")
}
