package importer

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/stagedfile"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/eventbus"
)

type WorkerOptions struct {
	PollInterval  time.Duration
	LockTTL       time.Duration
	MaxAttempts   int
	ProgressBatch int
	WriteChunk    int
	CleanupEvery  time.Duration
}

// Worker drains the import queue: one claimed task at a time, rows strictly
// sequential within a job. Independent workers may run concurrently; the
// SKIP LOCKED claim keeps them off each other's tasks.
type Worker struct {
	pool     *pgxpool.Pool
	queue    importjob.Queue
	jobs     importjob.Repository
	registry *Registry
	staging  *StagingService
	bus      eventbus.EventBus
	log      *logrus.Logger
	opts     WorkerOptions
}

func NewWorker(
	pool *pgxpool.Pool,
	queue importjob.Queue,
	jobs importjob.Repository,
	registry *Registry,
	staging *StagingService,
	bus eventbus.EventBus,
	log *logrus.Logger,
	opts WorkerOptions,
) *Worker {
	return &Worker{
		pool:     pool,
		queue:    queue,
		jobs:     jobs,
		registry: registry,
		staging:  staging,
		bus:      bus,
		log:      log,
		opts:     opts,
	}
}

// Run polls until the context is cancelled. Each tick drains every claimable
// task; the staged-file cleanup sweep runs on its own slower cadence.
func (w *Worker) Run(ctx context.Context) {
	ctx = composables.WithPool(ctx, w.pool)

	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(w.opts.CleanupEvery)
	defer cleanup.Stop()

	w.log.WithFields(logrus.Fields{
		"poll_interval": w.opts.PollInterval.String(),
		"max_attempts":  w.opts.MaxAttempts,
	}).Info("import worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("import worker stopped")
			return
		case <-poll.C:
			w.drain(ctx)
		case <-cleanup.C:
			if removed, err := w.staging.CleanupExpired(ctx); err != nil {
				w.log.WithError(err).Warn("staged file cleanup failed")
			} else if removed > 0 {
				w.log.WithField("removed", removed).Info("expired staged files cleaned up")
			}
		}
	}
}

// ProcessOne claims and handles a single task, reporting whether one was
// available. The poll loop is built on it; tests and ops tooling drive it
// directly.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	ctx = composables.WithPool(ctx, w.pool)
	task, err := w.queue.Claim(ctx, w.opts.LockTTL, w.opts.MaxAttempts)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	w.handleTask(ctx, task)
	return true, nil
}

func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			w.log.WithError(err).Error("claim import task")
			return
		}
		if !processed {
			break
		}
	}

	if depth, err := w.queue.Depth(ctx); err == nil {
		queueDepth.Set(float64(depth))
	}
}

func (w *Worker) handleTask(ctx context.Context, task *importjob.Task) {
	taskCtx := composables.WithUserID(composables.WithTenantID(ctx, task.TenantID), task.UserID)
	log := w.log.WithFields(logrus.Fields{
		"job_id":    task.JobID.String(),
		"tenant_id": task.TenantID.String(),
		"entity":    task.EntityKind,
		"attempts":  task.Attempts,
	})

	err := w.processTask(taskCtx, task, log)
	if err == nil {
		if ackErr := w.queue.Ack(ctx, task.ID); ackErr != nil {
			log.WithError(ackErr).Error("ack import task")
		}
		return
	}

	if permanentJobError(err) || task.Attempts >= w.opts.MaxAttempts {
		log.WithError(err).Error("import job failed")
		w.failJob(taskCtx, task, err, log)
		if ackErr := w.queue.Ack(ctx, task.ID); ackErr != nil {
			log.WithError(ackErr).Error("ack failed import task")
		}
		return
	}

	log.WithError(err).Warn("import task released for retry")
	if relErr := w.queue.Release(ctx, task.ID, err.Error()); relErr != nil {
		log.WithError(relErr).Error("release import task")
	}
}

// processTask runs the full pipeline for one job. Row-level problems never
// escape the row loop; a returned error is job-fatal.
func (w *Worker) processTask(ctx context.Context, task *importjob.Task, log *logrus.Entry) error {
	started := time.Now()

	job, err := w.loadJob(ctx, task)
	if err != nil {
		return err
	}
	job.Status = importjob.StatusProcessing
	job.StartedAt = &started
	if err := w.saveJob(ctx, job); err != nil {
		return err
	}

	profile, err := w.registry.Get(task.EntityKind)
	if err != nil {
		return err
	}

	file, err := w.staging.Resolve(ctx, task.FileID)
	if err != nil {
		return gerrors.Wrap(err, "resolve staged file")
	}
	_, rows, err := ParseFile(file.StoredPath)
	if err != nil {
		return err
	}

	refs, err := profile.LoadReferences(ctx)
	if err != nil {
		return gerrors.Wrap(err, "load reference snapshot")
	}

	job.TotalRecords = len(rows)
	job.ProcessedRecords = 0
	if err := w.saveJob(ctx, job); err != nil {
		return err
	}

	progressBatch := w.opts.ProgressBatch
	if progressBatch <= 0 {
		progressBatch = 100
	}

	var (
		candidates []*Candidate
		failed     []importjob.FailedRecord
	)
	for i, row := range rows {
		mapped := ApplyMappings(row.Data, task.Mappings)
		outcome := ValidateRow(profile, row.RowNumber, mapped)
		if !outcome.Valid {
			failed = append(failed, importjob.FailedRecord{
				RowNumber: row.RowNumber,
				Data:      row.Data,
				Errors:    outcome.Errors,
			})
		} else {
			candidate := &Candidate{
				RowNumber: row.RowNumber,
				Original:  row.Data,
				Cleaned:   outcome.Cleaned,
			}
			if refErrs := profile.ResolveReferences(candidate, refs); len(refErrs) > 0 {
				failed = append(failed, importjob.FailedRecord{
					RowNumber: row.RowNumber,
					Data:      row.Data,
					Errors:    refErrs,
				})
			} else {
				candidates = append(candidates, candidate)
			}
		}

		job.ProcessedRecords = i + 1
		if (i+1)%progressBatch == 0 {
			if err := w.saveJob(ctx, job); err != nil {
				return err
			}
		}
	}

	dupIndex, err := BuildDuplicateIndex(ctx, profile, candidates)
	if err != nil {
		return gerrors.Wrap(err, "load duplicate keys")
	}

	toInsert := make([]*Candidate, 0, len(candidates))
	duplicates := 0
	for _, c := range candidates {
		if match := dupIndex.Classify(profile, c); match != nil {
			duplicates++
			failed = append(failed, importjob.FailedRecord{
				RowNumber: c.RowNumber,
				Data:      c.Original,
				Errors: []importjob.FieldError{{
					Field:    match.MatchedField,
					Message:  "duplicate of existing record " + match.ExistingName,
					Category: importjob.CategoryDuplicate,
				}},
			})
			continue
		}
		toInsert = append(toInsert, c)
	}

	writer := &Writer{ChunkSize: w.opts.WriteChunk, Log: log}
	result := writer.Write(ctx, profile, toInsert)
	failed = append(failed, result.Failures...)

	completed := time.Now()
	job.ProcessedRecords = job.TotalRecords
	job.SuccessCount = result.SuccessCount
	job.FailureCount = len(failed)
	job.DuplicateCount = duplicates
	job.FailedRecords = failed
	job.CompletedAt = &completed
	job.Status = terminalStatus(result.SuccessCount, len(failed))
	if err := w.saveJob(ctx, job); err != nil {
		return err
	}

	w.observe(job, completed.Sub(started))
	w.bus.Publish(JobCompletedEvent{
		JobID:        job.ID,
		TenantID:     job.TenantID,
		UserID:       job.UserID,
		EntityKind:   job.EntityKind,
		Status:       string(job.Status),
		TotalRecords: job.TotalRecords,
		SuccessCount: job.SuccessCount,
		FailureCount: job.FailureCount,
		Duration:     completed.Sub(started),
	})

	if err := composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return w.staging.Delete(txCtx, task.FileID)
	}); err != nil {
		log.WithError(err).Warn("staged file not deleted after job")
	}

	log.WithFields(logrus.Fields{
		"status":     string(job.Status),
		"total":      job.TotalRecords,
		"success":    job.SuccessCount,
		"failure":    job.FailureCount,
		"duplicates": job.DuplicateCount,
		"took":       completed.Sub(started).String(),
	}).Info("import job finished")
	return nil
}

func (w *Worker) loadJob(ctx context.Context, task *importjob.Task) (importjob.ImportJob, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return w.jobs.GetByID(txCtx, task.JobID)
	})
}

func (w *Worker) saveJob(ctx context.Context, job importjob.ImportJob) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return w.jobs.Upsert(txCtx, job)
	})
}

// failJob persists the failed terminal state, keeping whatever partial
// counts had accumulated before the fatal error.
func (w *Worker) failJob(ctx context.Context, task *importjob.Task, cause error, log *logrus.Entry) {
	job, err := w.loadJob(ctx, task)
	if err != nil {
		log.WithError(err).Error("load job for failure record")
		return
	}
	now := time.Now()
	job.Status = importjob.StatusFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &now
	reconcileTerminalCounts(&job)
	if err := w.saveJob(ctx, job); err != nil {
		log.WithError(err).Error("persist failed job")
		return
	}
	jobsTotal.WithLabelValues(job.EntityKind, string(importjob.StatusFailed)).Inc()
}

// reconcileTerminalCounts restores success + failure = total for a job whose
// run aborted after the total was persisted but before per-row accounting
// finished. Rows the pipeline never reached count as failures.
func reconcileTerminalCounts(job *importjob.ImportJob) {
	if job.TotalRecords <= 0 {
		return
	}
	if job.SuccessCount+job.FailureCount < job.TotalRecords {
		job.FailureCount = job.TotalRecords - job.SuccessCount
	}
	job.ProcessedRecords = job.TotalRecords
}

func (w *Worker) observe(job importjob.ImportJob, took time.Duration) {
	jobsTotal.WithLabelValues(job.EntityKind, string(job.Status)).Inc()
	rowsTotal.WithLabelValues(job.EntityKind, "success").Add(float64(job.SuccessCount))
	rowsTotal.WithLabelValues(job.EntityKind, "failure").Add(float64(job.FailureCount - job.DuplicateCount))
	rowsTotal.WithLabelValues(job.EntityKind, "duplicate").Add(float64(job.DuplicateCount))
	jobDuration.WithLabelValues(job.EntityKind).Observe(took.Seconds())
}

func terminalStatus(successes, failures int) importjob.Status {
	switch {
	case failures == 0:
		return importjob.StatusCompleted
	case successes == 0:
		return importjob.StatusFailed
	default:
		return importjob.StatusPartial
	}
}

// permanentJobError reports whether retrying the task could ever help. A
// corrupt file or a vanished staged file stays broken; everything else is
// assumed transient until attempts run out.
func permanentJobError(err error) bool {
	var parseErr *ParseError
	if gerrors.As(err, &parseErr) {
		return true
	}
	return gerrors.Is(err, stagedfile.ErrNotFound) || gerrors.Is(err, stagedfile.ErrExpired)
}
