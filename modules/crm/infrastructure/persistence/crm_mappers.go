package persistence

import (
	"encoding/json"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/customer"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/interaction"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/product"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/stagedfile"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence/models"
)

func toDomainCustomer(row *models.Customer) customer.Customer {
	return customer.Customer{
		ID:        row.ID,
		TenantID:  row.TenantID,
		Code:      row.Code,
		Name:      row.Name,
		Type:      customer.Type(row.Type),
		Email:     row.Email,
		Phone:     row.Phone,
		Website:   row.Website,
		Address:   row.Address,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toDomainProduct(row *models.Product) product.Product {
	return product.Product{
		ID:          row.ID,
		TenantID:    row.TenantID,
		SKU:         row.SKU,
		Name:        row.Name,
		Category:    product.Category(row.Category),
		Price:       row.Price,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toDomainStagedFile(row *models.StagedFile) stagedfile.StagedFile {
	return stagedfile.StagedFile{
		ID:           row.ID,
		TenantID:     row.TenantID,
		UserID:       row.UserID,
		OriginalName: row.OriginalName,
		StoredPath:   row.StoredPath,
		Size:         row.Size,
		ContentType:  row.ContentType,
		UploadedAt:   row.UploadedAt,
		ExpiresAt:    row.ExpiresAt,
	}
}

func toDomainInteraction(row *models.Interaction, productIDs []uuid.UUID) interaction.Interaction {
	return interaction.Interaction{
		ID:         row.ID,
		TenantID:   row.TenantID,
		CustomerID: row.CustomerID,
		ProductIDs: productIDs,
		Kind:       interaction.Kind(row.Kind),
		Subject:    row.Subject,
		Notes:      row.Notes,
		OccurredAt: row.OccurredAt,
		CreatedAt:  row.CreatedAt,
	}
}

func toDBImportJob(job importjob.ImportJob) (*models.ImportJob, error) {
	columns, err := json.Marshal(job.Columns)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal columns")
	}
	mappings, err := json.Marshal(job.Mappings)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal mappings")
	}
	failed := job.FailedRecords
	if failed == nil {
		failed = []importjob.FailedRecord{}
	}
	failedRaw, err := json.Marshal(failed)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal failed records")
	}
	return &models.ImportJob{
		ID:               job.ID,
		TenantID:         job.TenantID,
		UserID:           job.UserID,
		EntityKind:       job.EntityKind,
		FileID:           job.FileID,
		FileName:         job.FileName,
		Columns:          columns,
		Mappings:         mappings,
		Status:           string(job.Status),
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		SuccessCount:     job.SuccessCount,
		FailureCount:     job.FailureCount,
		DuplicateCount:   job.DuplicateCount,
		FailedRecords:    failedRaw,
		ErrorMessage:     job.ErrorMessage,
		EnqueuedAt:       job.EnqueuedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
	}, nil
}

func toDomainImportJob(row *models.ImportJob) (importjob.ImportJob, error) {
	var columns []string
	if len(row.Columns) > 0 {
		if err := json.Unmarshal(row.Columns, &columns); err != nil {
			return importjob.ImportJob{}, gerrors.Wrap(err, "unmarshal columns")
		}
	}
	var mappings map[string]string
	if len(row.Mappings) > 0 {
		if err := json.Unmarshal(row.Mappings, &mappings); err != nil {
			return importjob.ImportJob{}, gerrors.Wrap(err, "unmarshal mappings")
		}
	}
	var failed []importjob.FailedRecord
	if len(row.FailedRecords) > 0 {
		if err := json.Unmarshal(row.FailedRecords, &failed); err != nil {
			return importjob.ImportJob{}, gerrors.Wrap(err, "unmarshal failed records")
		}
	}
	return importjob.ImportJob{
		ID:               row.ID,
		TenantID:         row.TenantID,
		UserID:           row.UserID,
		EntityKind:       row.EntityKind,
		FileID:           row.FileID,
		FileName:         row.FileName,
		Columns:          columns,
		Mappings:         mappings,
		Status:           importjob.Status(row.Status),
		TotalRecords:     row.TotalRecords,
		ProcessedRecords: row.ProcessedRecords,
		SuccessCount:     row.SuccessCount,
		FailureCount:     row.FailureCount,
		DuplicateCount:   row.DuplicateCount,
		FailedRecords:    failed,
		ErrorMessage:     row.ErrorMessage,
		EnqueuedAt:       row.EnqueuedAt,
		StartedAt:        row.StartedAt,
		CompletedAt:      row.CompletedAt,
	}, nil
}

func toDBImportTask(task importjob.Task) (*models.ImportTask, error) {
	columns, err := json.Marshal(task.Columns)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal columns")
	}
	mappings, err := json.Marshal(task.Mappings)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal mappings")
	}
	return &models.ImportTask{
		ID:         task.ID,
		JobID:      task.JobID,
		TenantID:   task.TenantID,
		UserID:     task.UserID,
		EntityKind: task.EntityKind,
		FileID:     task.FileID,
		Columns:    columns,
		Mappings:   mappings,
		Attempts:   task.Attempts,
		EnqueuedAt: task.EnqueuedAt,
	}, nil
}

func toDomainImportTask(row *models.ImportTask) (importjob.Task, error) {
	var columns []string
	if len(row.Columns) > 0 {
		if err := json.Unmarshal(row.Columns, &columns); err != nil {
			return importjob.Task{}, gerrors.Wrap(err, "unmarshal columns")
		}
	}
	var mappings map[string]string
	if len(row.Mappings) > 0 {
		if err := json.Unmarshal(row.Mappings, &mappings); err != nil {
			return importjob.Task{}, gerrors.Wrap(err, "unmarshal mappings")
		}
	}
	return importjob.Task{
		ID:         row.ID,
		JobID:      row.JobID,
		TenantID:   row.TenantID,
		UserID:     row.UserID,
		EntityKind: row.EntityKind,
		FileID:     row.FileID,
		Columns:    columns,
		Mappings:   mappings,
		Attempts:   row.Attempts,
		EnqueuedAt: row.EnqueuedAt,
	}, nil
}
