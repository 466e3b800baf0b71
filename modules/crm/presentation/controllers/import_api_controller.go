package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/stagedfile"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/importer"
	"github.com/meridianhq/crm-backoffice/modules/crm/services"
	"github.com/meridianhq/crm-backoffice/pkg/application"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/configuration"
	"github.com/meridianhq/crm-backoffice/pkg/httpapi"
	"github.com/meridianhq/crm-backoffice/pkg/middleware"
	"github.com/meridianhq/crm-backoffice/pkg/serrors"
)

type ImportAPIController struct {
	app      application.Application
	imports  *services.ImportService
	basePath string
}

func NewImportAPIController(app application.Application) application.Controller {
	return &ImportAPIController{
		app:      app,
		imports:  app.Service(services.ImportService{}).(*services.ImportService),
		basePath: "/crm/api/import",
	}
}

func (c *ImportAPIController) Key() string {
	return c.basePath
}

func (c *ImportAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideIdentity(), middleware.WithTransaction())

	router.HandleFunc("/history/stats", c.stats).Methods(http.MethodGet)

	entity := router.PathPrefix("/{entity}").Subrouter()
	entity.HandleFunc("/upload", c.upload).Methods(http.MethodPost)
	entity.HandleFunc("/preview", c.preview).Methods(http.MethodPost)
	entity.HandleFunc("/validate", c.validate).Methods(http.MethodPost)
	entity.HandleFunc("/start", c.start).Methods(http.MethodPost)
	entity.HandleFunc("/status/{taskId}", c.status).Methods(http.MethodGet)
	entity.HandleFunc("/history", c.history).Methods(http.MethodGet)
	entity.HandleFunc("/report/{taskId}", c.report).Methods(http.MethodGet)
	entity.HandleFunc("/retry/{taskId}", c.retry).Methods(http.MethodPost)
}

type uploadResponse struct {
	FileID   uuid.UUID `json:"fileId"`
	FileName string    `json:"fileName"`
}

type previewRequest struct {
	FileID         uuid.UUID         `json:"fileId"`
	CustomMappings map[string]string `json:"customMappings"`
}

type startRequest struct {
	FileID         uuid.UUID         `json:"fileId"`
	ColumnMappings map[string]string `json:"columnMappings"`
}

type startResponse struct {
	TaskID uuid.UUID `json:"taskId"`
}

type statusResponse struct {
	TaskID           uuid.UUID                `json:"taskId"`
	Status           string                   `json:"status"`
	TotalRecords     int                      `json:"totalRecords"`
	ProcessedRecords int                      `json:"processedRecords"`
	SuccessCount     int                      `json:"successCount"`
	FailureCount     int                      `json:"failureCount"`
	DuplicateCount   int                      `json:"duplicateCount"`
	Progress         int                      `json:"progress"`
	ErrorReportURL   string                   `json:"errorReportUrl,omitempty"`
	ErrorMessage     string                   `json:"errorMessage,omitempty"`
	Errors           []importjob.FailedRecord `json:"errors,omitempty"`
}

type historyItem struct {
	TaskID       uuid.UUID  `json:"taskId"`
	EntityKind   string     `json:"entityKind"`
	FileName     string     `json:"fileName"`
	Status       string     `json:"status"`
	TotalRecords int        `json:"totalRecords"`
	SuccessCount int        `json:"successCount"`
	FailureCount int        `json:"failureCount"`
	Progress     int        `json:"progress"`
	EnqueuedAt   time.Time  `json:"enqueuedAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

type historyResponse struct {
	Items  []historyItem `json:"items"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (c *ImportAPIController) upload(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	r.Body = http.MaxBytesReader(w, r.Body, conf.Staging.MaxUploadSize)
	if err := r.ParseMultipartForm(conf.Staging.MaxUploadSize); err != nil {
		c.writeError(w, r, serrors.NewError("STAGING_FILE_TOO_LARGE", "uploaded file is too large", ""))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		c.writeError(w, r, serrors.NewError("STAGING_NO_FILE", "multipart field \"file\" is missing", ""))
		return
	}
	defer file.Close()

	staged, err := c.imports.Upload(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, uploadResponse{
		FileID:   staged.ID,
		FileName: staged.OriginalName,
	})
}

func (c *ImportAPIController) preview(w http.ResponseWriter, r *http.Request) {
	entity, ok := c.entityKind(w, r)
	if !ok {
		return
	}
	var req previewRequest
	if !c.decode(w, r, &req) {
		return
	}
	result, err := c.imports.PreviewMapping(r.Context(), entity, req.FileID, req.CustomMappings)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, result)
}

func (c *ImportAPIController) validate(w http.ResponseWriter, r *http.Request) {
	entity, ok := c.entityKind(w, r)
	if !ok {
		return
	}
	var req startRequest
	if !c.decode(w, r, &req) {
		return
	}
	summary, err := c.imports.Validate(r.Context(), entity, req.FileID, req.ColumnMappings)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, summary)
}

func (c *ImportAPIController) start(w http.ResponseWriter, r *http.Request) {
	entity, ok := c.entityKind(w, r)
	if !ok {
		return
	}
	var req startRequest
	if !c.decode(w, r, &req) {
		return
	}
	jobID, err := c.imports.Start(r.Context(), entity, req.FileID, req.ColumnMappings)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, startResponse{TaskID: jobID})
}

func (c *ImportAPIController) status(w http.ResponseWriter, r *http.Request) {
	entity, ok := c.entityKind(w, r)
	if !ok {
		return
	}
	jobID, ok := c.taskID(w, r)
	if !ok {
		return
	}
	job, err := c.imports.Status(r.Context(), jobID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, c.toStatusResponse(entity, job))
}

func (c *ImportAPIController) history(w http.ResponseWriter, r *http.Request) {
	entity, ok := c.entityKind(w, r)
	if !ok {
		return
	}
	params := &importjob.FindParams{
		Limit:      queryInt(r, "limit", 20),
		Offset:     queryInt(r, "offset", 0),
		Status:     importjob.Status(r.URL.Query().Get("status")),
		EntityKind: entity,
		Q:          r.URL.Query().Get("q"),
	}
	if from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from")); err == nil {
		params.CreatedFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to")); err == nil {
		params.CreatedTo = &to
	}

	jobs, total, err := c.imports.History(r.Context(), params)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	items := make([]historyItem, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, historyItem{
			TaskID:       job.ID,
			EntityKind:   job.EntityKind,
			FileName:     job.FileName,
			Status:       string(job.Status),
			TotalRecords: job.TotalRecords,
			SuccessCount: job.SuccessCount,
			FailureCount: job.FailureCount,
			Progress:     job.Progress(),
			EnqueuedAt:   job.EnqueuedAt,
			StartedAt:    job.StartedAt,
			CompletedAt:  job.CompletedAt,
		})
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, historyResponse{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}

func (c *ImportAPIController) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := c.imports.Stats(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, counts)
}

func (c *ImportAPIController) report(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.entityKind(w, r); !ok {
		return
	}
	jobID, ok := c.taskID(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = importer.ReportFormatCSV
	}
	if format != importer.ReportFormatCSV && format != importer.ReportFormatXLSX {
		c.writeError(w, r, serrors.NewError("REPORT_BAD_FORMAT", fmt.Sprintf("unsupported report format %q", format), ""))
		return
	}

	contentType := "text/csv"
	if format == importer.ReportFormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "import-errors-"+jobID.String()+"."+format))
	if _, err := c.imports.Report(r.Context(), jobID, format, w); err != nil {
		w.Header().Del("Content-Disposition")
		c.writeError(w, r, err)
	}
}

func (c *ImportAPIController) retry(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.entityKind(w, r); !ok {
		return
	}
	jobID, ok := c.taskID(w, r)
	if !ok {
		return
	}
	newID, err := c.imports.Retry(r.Context(), jobID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, startResponse{TaskID: newID})
}

func (c *ImportAPIController) toStatusResponse(entity string, job importjob.ImportJob) statusResponse {
	resp := statusResponse{
		TaskID:           job.ID,
		Status:           string(job.Status),
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		SuccessCount:     job.SuccessCount,
		FailureCount:     job.FailureCount,
		DuplicateCount:   job.DuplicateCount,
		Progress:         job.Progress(),
		ErrorMessage:     job.ErrorMessage,
	}
	if job.Status.Terminal() && len(job.FailedRecords) > 0 {
		resp.ErrorReportURL = fmt.Sprintf("%s/%s/report/%s?format=csv", c.basePath, entity, job.ID)
		resp.Errors = job.FailedRecords
	}
	return resp
}

func (c *ImportAPIController) entityKind(w http.ResponseWriter, r *http.Request) (string, bool) {
	entity := mux.Vars(r)["entity"]
	for _, kind := range c.imports.EntityKinds() {
		if kind == entity {
			return entity, true
		}
	}
	_ = httpapi.WriteError(w, http.StatusNotFound, "IMPORT_UNKNOWN_ENTITY",
		c.localize(r, "Import.Errors.UnknownEntity", fmt.Sprintf("unknown entity kind %q", entity)), nil)
	return "", false
}

func (c *ImportAPIController) taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["taskId"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "IMPORT_BAD_TASK_ID",
			c.localize(r, "Import.Errors.BadTaskID", "task id is not a valid UUID"), nil)
		return uuid.Nil, false
	}
	return id, true
}

func (c *ImportAPIController) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "IMPORT_BAD_REQUEST",
			c.localize(r, "Import.Errors.BadRequest", "request body is not valid JSON"), nil)
		return false
	}
	return true
}

// writeError maps pipeline errors onto HTTP statuses: staging and mapping
// problems are synchronous rejections, missing aggregates are 404s, the
// rest is internal.
func (c *ImportAPIController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var base *serrors.Base
	if gerrors.As(err, &base) {
		_ = httpapi.WriteError(w, http.StatusBadRequest, base.Code, base.Message, nil)
		return
	}
	var mappingErr *importer.MappingError
	if gerrors.As(err, &mappingErr) {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "IMPORT_UNKNOWN_FIELD", mappingErr.Error(), map[string]string{
			"sourceColumn": mappingErr.SourceColumn,
			"targetField":  mappingErr.TargetField,
		})
		return
	}
	var parseErr *importer.ParseError
	if gerrors.As(err, &parseErr) {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "IMPORT_PARSE_ERROR", parseErr.Error(), nil)
		return
	}

	switch {
	case gerrors.Is(err, stagedfile.ErrNotFound), gerrors.Is(err, stagedfile.ErrExpired):
		_ = httpapi.WriteError(w, http.StatusNotFound, "STAGING_FILE_GONE",
			c.localize(r, "Import.Errors.FileGone", "staged file not found or expired"), nil)
	case gerrors.Is(err, importjob.ErrNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, "IMPORT_JOB_NOT_FOUND",
			c.localize(r, "Import.Errors.JobNotFound", "import job not found"), nil)
	case gerrors.Is(err, services.ErrReportUnavailable):
		_ = httpapi.WriteError(w, http.StatusNotFound, "IMPORT_REPORT_NOT_FOUND",
			c.localize(r, "Import.Errors.ReportNotFound", "no error report exists for this job"), nil)
	case gerrors.Is(err, composables.ErrNoTenant), gerrors.Is(err, composables.ErrNoUser):
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "IDENTITY_MISSING", "caller identity is missing", nil)
	default:
		if logger, ok := composables.TryUseLogger(r.Context()); ok {
			if ip, ok := composables.UseIP(r.Context()); ok {
				logger = logger.WithField("ip", ip)
			}
			logger.WithError(err).Error("import api request failed")
		}
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL",
			c.localize(r, "Import.Errors.Internal", "internal error"), nil)
	}
}

func (c *ImportAPIController) localize(r *http.Request, messageID, fallback string) string {
	localizer := i18n.NewLocalizer(c.app.Bundle(), r.Header.Get("Accept-Language"))
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
