//go:build integration

package services_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/customer"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/importer"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence"
	"github.com/meridianhq/crm-backoffice/modules/crm/services"
	"github.com/meridianhq/crm-backoffice/pkg/eventbus"
	"github.com/meridianhq/crm-backoffice/pkg/itf"
)

type importStack struct {
	service *services.ImportService
	worker  *importer.Worker
}

func newImportStack(t *testing.T, env *itf.Env) importStack {
	t.Helper()
	log := logrus.New()
	log.SetOutput(new(bytes.Buffer))

	customers := persistence.NewCustomerRepository()
	products := persistence.NewProductRepository()
	interactions := persistence.NewInteractionRepository()
	jobs := persistence.NewImportJobRepository()
	queue := persistence.NewImportQueue()

	registry := importer.NewRegistry()
	registry.Register(importer.NewCustomerProfile(customers))
	registry.Register(importer.NewProductProfile(products))
	registry.Register(importer.NewInteractionProfile(interactions, customers, products))

	dir := t.TempDir()
	staging := importer.NewStagingService(
		persistence.NewStagedFileRepository(), dir, time.Hour, 10<<20, log,
	)

	return importStack{
		service: services.NewImportService(registry, staging, jobs, queue, dir),
		worker: importer.NewWorker(
			env.Pool, queue, jobs, registry, staging,
			eventbus.NewEventPublisher(log), log,
			importer.WorkerOptions{LockTTL: time.Minute, MaxAttempts: 3},
		),
	}
}

const customersCSV = `Customer Name,Type,E-mail
Acme,Организация,sales@acme.example
Globex,company,broken-email
Existing Co,company,
Initech,company,info@initech.example
`

func uploadCustomersCSV(t *testing.T, env *itf.Env, stack importStack, body string) (importjob.ImportJob, map[string]string) {
	t.Helper()

	file, err := stack.service.Upload(env.Ctx, "customers.csv", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	preview, err := stack.service.PreviewMapping(env.Ctx, "customers", file.ID, nil)
	require.NoError(t, err)

	mappings := make(map[string]string)
	for _, m := range preview.Columns {
		if m.TargetField != "" {
			mappings[m.SourceColumn] = m.TargetField
		}
	}

	jobID, err := stack.service.Start(env.Ctx, "customers", file.ID, mappings)
	require.NoError(t, err)

	processed, err := stack.worker.ProcessOne(env.Ctx)
	require.NoError(t, err)
	require.True(t, processed, "enqueued task is claimable")

	job, err := stack.service.Status(env.Ctx, jobID)
	require.NoError(t, err)
	return job, mappings
}

func TestImportFlow_CustomersEndToEnd(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	stack := newImportStack(t, env)

	customers := persistence.NewCustomerRepository()
	_, err := customers.Create(env.Ctx, customer.Customer{Name: "Existing Co", Type: customer.TypeCompany})
	require.NoError(t, err)

	file, err := stack.service.Upload(env.Ctx, "customers.csv", strings.NewReader(customersCSV), int64(len(customersCSV)))
	require.NoError(t, err)

	preview, err := stack.service.PreviewMapping(env.Ctx, "customers", file.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, preview.Statistics.TotalRows)
	assert.Equal(t, 3, preview.Statistics.MappedColumns, "synonym headers map without overrides")
	assert.Equal(t, 0, preview.Statistics.UnmappedColumns)

	mappings := make(map[string]string)
	for _, m := range preview.Columns {
		if m.TargetField != "" {
			mappings[m.SourceColumn] = m.TargetField
		}
	}

	summary, err := stack.service.Validate(env.Ctx, "customers", file.ID, mappings)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalRecords)
	assert.Equal(t, 2, summary.ValidRecords)
	assert.Equal(t, 1, summary.InvalidRecords)
	require.Len(t, summary.Duplicates, 1)
	assert.True(t, summary.HasDuplicates)

	jobID, err := stack.service.Start(env.Ctx, "customers", file.ID, mappings)
	require.NoError(t, err)

	queued, err := stack.service.Status(env.Ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusQueued, queued.Status)

	processed, err := stack.worker.ProcessOne(env.Ctx)
	require.NoError(t, err)
	require.True(t, processed)

	job, err := stack.service.Status(env.Ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusPartial, job.Status)
	assert.Equal(t, 4, job.TotalRecords)
	assert.Equal(t, 2, job.SuccessCount)
	assert.Equal(t, 2, job.FailureCount)
	assert.Equal(t, 1, job.DuplicateCount)
	assert.Equal(t, job.TotalRecords, job.SuccessCount+job.FailureCount)
	assert.Equal(t, 100, job.Progress())
	require.NotNil(t, job.CompletedAt)

	// The Russian enum synonym landed in canonical form.
	acme, err := customers.FindRefsByNames(env.Ctx, []string{"acme"})
	require.NoError(t, err)
	require.Contains(t, acme, "acme")

	var count int
	require.NoError(t, env.Pool.QueryRow(env.Ctx,
		"SELECT COUNT(*) FROM customers WHERE tenant_id = $1", env.TenantID,
	).Scan(&count))
	assert.Equal(t, 3, count, "pre-seeded plus the two clean rows")

	// The queue entry is gone and history reflects the run.
	depth, err := persistence.NewImportQueue().Depth(env.Ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth)

	history, total, err := stack.service.History(env.Ctx, &importjob.FindParams{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, history, 1)
	assert.Equal(t, jobID, history[0].ID)

	stats, err := stack.service.Stats(env.Ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[importjob.StatusPartial])
}

func TestImportFlow_ReportAndRetry(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	stack := newImportStack(t, env)

	customers := persistence.NewCustomerRepository()
	_, err := customers.Create(env.Ctx, customer.Customer{Name: "Existing Co", Type: customer.TypeCompany})
	require.NoError(t, err)

	job, _ := uploadCustomersCSV(t, env, stack, customersCSV)
	require.Equal(t, importjob.StatusPartial, job.Status)

	var report bytes.Buffer
	_, err = stack.service.Report(env.Ctx, job.ID, importer.ReportFormatCSV, &report)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(report.String()), "\n")
	require.Len(t, lines, 3, "header plus one line per failed row")
	assert.Contains(t, lines[0], "Row Number")
	assert.Contains(t, report.String(), "broken-email")
	assert.Contains(t, report.String(), "duplicate of existing record")

	retryID, err := stack.service.Retry(env.Ctx, job.ID)
	require.NoError(t, err)
	require.NotEqual(t, job.ID, retryID, "retry is a brand-new job")

	processed, err := stack.worker.ProcessOne(env.Ctx)
	require.NoError(t, err)
	require.True(t, processed)

	retried, err := stack.service.Status(env.Ctx, retryID)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusFailed, retried.Status, "both retried rows fail again unchanged")
	assert.Equal(t, 2, retried.TotalRecords)
	assert.Equal(t, 0, retried.SuccessCount)
	assert.Equal(t, 2, retried.FailureCount)
	assert.Contains(t, retried.FileName, "retry")

	// The original job's history entry is untouched by the retry.
	original, err := stack.service.Status(env.Ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusPartial, original.Status)
}

// A lost structured failure payload must not orphan the report: a prior CSV
// render on disk is re-parsed instead.
func TestImportFlow_ReportRegeneratedFromArtifact(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	stack := newImportStack(t, env)

	customers := persistence.NewCustomerRepository()
	_, err := customers.Create(env.Ctx, customer.Customer{Name: "Existing Co", Type: customer.TypeCompany})
	require.NoError(t, err)

	job, _ := uploadCustomersCSV(t, env, stack, customersCSV)
	require.Equal(t, importjob.StatusPartial, job.Status)

	var first bytes.Buffer
	_, err = stack.service.Report(env.Ctx, job.ID, importer.ReportFormatCSV, &first)
	require.NoError(t, err)

	// Simulate losing the structured payload after the artifact was rendered.
	job.FailedRecords = nil
	jobs := persistence.NewImportJobRepository()
	require.NoError(t, jobs.Upsert(env.Ctx, job))

	var second bytes.Buffer
	_, err = stack.service.Report(env.Ctx, job.ID, importer.ReportFormatCSV, &second)
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String(), "fallback reproduces the same artifact")
}

func TestImportFlow_CleanFileCompletes(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	stack := newImportStack(t, env)

	csv := "Name,Type\nWayne Enterprises,company\nStark Industries,company\n"
	job, _ := uploadCustomersCSV(t, env, stack, csv)

	assert.Equal(t, importjob.StatusCompleted, job.Status)
	assert.Equal(t, 2, job.SuccessCount)
	assert.Zero(t, job.FailureCount)

	var report bytes.Buffer
	_, err := stack.service.Report(env.Ctx, job.ID, importer.ReportFormatCSV, &report)
	assert.ErrorIs(t, err, services.ErrReportUnavailable)

	_, err = stack.service.Retry(env.Ctx, job.ID)
	assert.Error(t, err, "nothing to retry on a fully successful job")
}
