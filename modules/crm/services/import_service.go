package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/stagedfile"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/importer"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/serrors"
)

// ErrReportUnavailable is returned when a job has no error report to render.
var ErrReportUnavailable = gerrors.New("no error report available for job")

// PreviewStatistics summarizes the staged file for the mapping screen.
type PreviewStatistics struct {
	TotalRows       int `json:"totalRows"`
	TotalColumns    int `json:"totalColumns"`
	MappedColumns   int `json:"mappedColumns"`
	UnmappedColumns int `json:"unmappedColumns"`
}

type PreviewResult struct {
	Columns    []importer.ColumnMapping `json:"columns"`
	SampleData []map[string]string      `json:"sampleData"`
	Statistics PreviewStatistics        `json:"statistics"`
}

// ValidationSummary is the synchronous validate phase's response: counts,
// every row's errors, the advisory cleaning suggestions and the duplicate
// list. Valid rows exclude duplicates.
type ValidationSummary struct {
	TotalRecords   int                           `json:"totalRecords"`
	ValidRecords   int                           `json:"validRecords"`
	InvalidRecords int                           `json:"invalidRecords"`
	Errors         []importer.ValidationOutcome  `json:"errors"`
	Suggestions    []importer.CleaningSuggestion `json:"suggestions"`
	Duplicates     []importer.DuplicateMatch     `json:"duplicates"`
	HasDuplicates  bool                          `json:"hasDuplicates"`
}

// ImportService fronts the bulk import pipeline: staging, the synchronous
// preview/validate phase, job enqueueing, history, reports and retry.
type ImportService struct {
	registry   *importer.Registry
	staging    *importer.StagingService
	jobs       importjob.Repository
	queue      importjob.Queue
	stagingDir string
}

func NewImportService(
	registry *importer.Registry,
	staging *importer.StagingService,
	jobs importjob.Repository,
	queue importjob.Queue,
	stagingDir string,
) *ImportService {
	return &ImportService{
		registry:   registry,
		staging:    staging,
		jobs:       jobs,
		queue:      queue,
		stagingDir: stagingDir,
	}
}

func (s *ImportService) EntityKinds() []string {
	return s.registry.Kinds()
}

func (s *ImportService) Upload(ctx context.Context, originalName string, r io.Reader, size int64) (stagedfile.StagedFile, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (stagedfile.StagedFile, error) {
		return s.staging.Upload(txCtx, originalName, r, size)
	})
}

// PreviewMapping parses the staged file, computes the column mapping with
// the caller's overrides applied, and returns the first rows as a sample.
func (s *ImportService) PreviewMapping(ctx context.Context, entityKind string, fileID uuid.UUID, overrides map[string]string) (PreviewResult, error) {
	profile, err := s.registry.Get(entityKind)
	if err != nil {
		return PreviewResult{}, err
	}

	columns, rows, err := s.parseStaged(ctx, fileID)
	if err != nil {
		return PreviewResult{}, err
	}

	mappings, err := importer.MapColumns(columns, profile, overrides)
	if err != nil {
		return PreviewResult{}, err
	}

	sample := make([]map[string]string, 0, 10)
	for i := 0; i < len(rows) && i < 10; i++ {
		sample = append(sample, rows[i].Data)
	}

	mapped := 0
	for _, m := range mappings {
		if m.TargetField != "" {
			mapped++
		}
	}

	return PreviewResult{
		Columns:    mappings,
		SampleData: sample,
		Statistics: PreviewStatistics{
			TotalRows:       len(rows),
			TotalColumns:    len(columns),
			MappedColumns:   mapped,
			UnmappedColumns: len(columns) - mapped,
		},
	}, nil
}

// Validate runs the synchronous phase over the whole file: per-row
// validation, cleaning suggestions, and duplicate detection against the
// store. Reference resolution is left to the asynchronous job.
func (s *ImportService) Validate(ctx context.Context, entityKind string, fileID uuid.UUID, mappings map[string]string) (ValidationSummary, error) {
	profile, err := s.registry.Get(entityKind)
	if err != nil {
		return ValidationSummary{}, err
	}
	if err := s.checkMappings(profile, mappings); err != nil {
		return ValidationSummary{}, err
	}

	_, rows, err := s.parseStaged(ctx, fileID)
	if err != nil {
		return ValidationSummary{}, err
	}

	summary := ValidationSummary{TotalRecords: len(rows)}
	var candidates []*importer.Candidate
	for _, row := range rows {
		fields := importer.ApplyMappings(row.Data, mappings)
		summary.Suggestions = append(summary.Suggestions, importer.SuggestCleaning(profile, row.RowNumber, fields)...)

		outcome := importer.ValidateRow(profile, row.RowNumber, fields)
		if !outcome.Valid {
			summary.InvalidRecords++
			summary.Errors = append(summary.Errors, outcome)
			continue
		}
		candidates = append(candidates, &importer.Candidate{
			RowNumber: row.RowNumber,
			Original:  row.Data,
			Cleaned:   outcome.Cleaned,
		})
	}

	dupIndex, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*importer.DuplicateIndex, error) {
		return importer.BuildDuplicateIndex(txCtx, profile, candidates)
	})
	if err != nil {
		return ValidationSummary{}, err
	}
	for _, c := range candidates {
		if match := dupIndex.Classify(profile, c); match != nil {
			summary.Duplicates = append(summary.Duplicates, *match)
			continue
		}
		summary.ValidRecords++
	}
	summary.HasDuplicates = len(summary.Duplicates) > 0
	return summary, nil
}

// Start verifies the staged file, persists a queued job and enqueues its
// task. The returned id serves both as the polling handle and the history
// key.
func (s *ImportService) Start(ctx context.Context, entityKind string, fileID uuid.UUID, mappings map[string]string) (uuid.UUID, error) {
	profile, err := s.registry.Get(entityKind)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.checkMappings(profile, mappings); err != nil {
		return uuid.Nil, err
	}

	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := composables.UseUserID(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	jobID := uuid.New()
	err = composables.InTenantTx(ctx, func(txCtx context.Context) error {
		file, err := s.staging.Resolve(txCtx, fileID)
		if err != nil {
			return err
		}
		columns, _, err := importer.ParseFile(file.StoredPath)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := s.jobs.Upsert(txCtx, importjob.ImportJob{
			ID:         jobID,
			TenantID:   tenantID,
			UserID:     userID,
			EntityKind: entityKind,
			FileID:     fileID,
			FileName:   file.OriginalName,
			Columns:    columns,
			Mappings:   mappings,
			Status:     importjob.StatusQueued,
			EnqueuedAt: now,
		}); err != nil {
			return err
		}
		return s.queue.Enqueue(txCtx, importjob.Task{
			ID:         uuid.New(),
			JobID:      jobID,
			TenantID:   tenantID,
			UserID:     userID,
			EntityKind: entityKind,
			FileID:     fileID,
			Columns:    columns,
			Mappings:   mappings,
			EnqueuedAt: now,
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return jobID, nil
}

func (s *ImportService) Status(ctx context.Context, jobID uuid.UUID) (importjob.ImportJob, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return s.jobs.GetByID(txCtx, jobID)
	})
}

func (s *ImportService) History(ctx context.Context, params *importjob.FindParams) ([]importjob.ImportJob, int64, error) {
	type page struct {
		jobs  []importjob.ImportJob
		total int64
	}
	out, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (page, error) {
		jobs, total, err := s.jobs.List(txCtx, params)
		return page{jobs: jobs, total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return out.jobs, out.total, nil
}

func (s *ImportService) Stats(ctx context.Context) (map[importjob.Status]int64, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (map[importjob.Status]int64, error) {
		return s.jobs.CountByStatus(txCtx)
	})
}

// Report renders the job's error artifact into w, regenerating it from the
// persisted structured failures or, when those are gone, from a previously
// rendered report file. CSV renders are kept on disk to serve as that
// fallback for both Report and Retry.
func (s *ImportService) Report(ctx context.Context, jobID uuid.UUID, format string, w io.Writer) (importjob.ImportJob, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return importjob.ImportJob{}, err
	}
	if !job.Status.Terminal() {
		return importjob.ImportJob{}, ErrReportUnavailable
	}

	columns, failed := job.Columns, job.FailedRecords
	if len(failed) == 0 {
		columns, failed, err = importer.ParseReport(s.reportPath(jobID))
		if err != nil || len(failed) == 0 {
			return importjob.ImportJob{}, ErrReportUnavailable
		}
	}

	if format == importer.ReportFormatCSV {
		if f, err := os.Create(s.reportPath(jobID)); err == nil {
			_ = importer.RenderReport(f, importer.ReportFormatCSV, columns, failed)
			_ = f.Close()
		}
	}
	return job, importer.RenderReport(w, format, columns, failed)
}

// Retry derives a fresh input file from a prior job's failed rows and
// enqueues a brand-new job with the same mappings. The original job is
// untouched.
func (s *ImportService) Retry(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return uuid.Nil, err
	}
	if !job.Status.Terminal() {
		return uuid.Nil, serrors.NewError("IMPORT_JOB_NOT_TERMINAL", "job is still running", "")
	}

	columns, failed := job.Columns, job.FailedRecords
	if len(failed) == 0 {
		// Structured payload gone; fall back to a previously rendered
		// report artifact.
		columns, failed, err = importer.ParseReport(s.reportPath(jobID))
		if err != nil || len(failed) == 0 {
			return uuid.Nil, serrors.NewError("IMPORT_NOTHING_TO_RETRY", "job has no failed records to retry", "")
		}
	}

	file, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (stagedfile.StagedFile, error) {
		return s.staging.StageFailedRecords(txCtx, job.FileName, columns, failed)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return s.Start(ctx, job.EntityKind, file.ID, job.Mappings)
}

func (s *ImportService) parseStaged(ctx context.Context, fileID uuid.UUID) ([]string, []importer.ParsedRow, error) {
	file, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (stagedfile.StagedFile, error) {
		return s.staging.Resolve(txCtx, fileID)
	})
	if err != nil {
		return nil, nil, err
	}
	return importer.ParseFile(file.StoredPath)
}

func (s *ImportService) checkMappings(profile importer.Profile, mappings map[string]string) error {
	for source, target := range mappings {
		if target == "" {
			continue
		}
		found := false
		for _, f := range profile.Fields() {
			if f.Name == target {
				found = true
				break
			}
		}
		if !found {
			return &importer.MappingError{SourceColumn: source, TargetField: target}
		}
	}
	return nil
}

func (s *ImportService) reportPath(jobID uuid.UUID) string {
	return filepath.Join(s.stagingDir, jobID.String()+"-report.csv")
}
