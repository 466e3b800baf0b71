package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/entities/stagedfile"
	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/serrors"
)

var allowedExtensions = map[string]struct{}{
	".csv":  {},
	".xlsx": {},
	".xls":  {},
}

var allowedMIMEPrefixes = []string{
	"text/csv",
	"text/plain",
	"application/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip",
	"application/x-ole-storage",
}

// StagingService owns uploaded files awaiting import. The metadata record
// lives in the job-history store so any service instance can resolve a
// handle; the bytes live under the staging directory.
type StagingService struct {
	files   stagedfile.Repository
	dir     string
	ttl     time.Duration
	maxSize int64
	log     *logrus.Logger
}

func NewStagingService(files stagedfile.Repository, dir string, ttl time.Duration, maxSize int64, log *logrus.Logger) *StagingService {
	return &StagingService{files: files, dir: dir, ttl: ttl, maxSize: maxSize, log: log}
}

// Upload vets and stages one uploaded file: extension allow-list, size cap,
// MIME sniff on the actual bytes. Returns the durable staged-file record.
func (s *StagingService) Upload(ctx context.Context, originalName string, r io.Reader, declaredSize int64) (stagedfile.StagedFile, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := allowedExtensions[ext]; !ok {
		return stagedfile.StagedFile{}, serrors.NewError(
			"STAGING_BAD_EXTENSION",
			fmt.Sprintf("file extension %q is not importable", ext),
			"allowed: .csv, .xlsx, .xls",
		)
	}
	if declaredSize > s.maxSize {
		return stagedfile.StagedFile{}, serrors.NewError(
			"STAGING_FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds the %d byte upload limit", s.maxSize),
			"",
		)
	}

	userID, err := composables.UseUserID(ctx)
	if err != nil {
		return stagedfile.StagedFile{}, err
	}

	id := uuid.New()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "create staging dir")
	}
	storedPath := filepath.Join(s.dir, id.String()+ext)

	out, err := os.Create(storedPath)
	if err != nil {
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "create staged file")
	}
	written, err := io.Copy(out, io.LimitReader(r, s.maxSize+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "write staged file")
	}
	if written > s.maxSize {
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, serrors.NewError(
			"STAGING_FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds the %d byte upload limit", s.maxSize),
			"",
		)
	}

	detected, err := mimetype.DetectFile(storedPath)
	if err != nil {
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "sniff staged file")
	}
	if !mimeAllowed(detected.String()) {
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, serrors.NewError(
			"STAGING_BAD_CONTENT",
			fmt.Sprintf("file content %q does not match an importable format", detected.String()),
			"",
		)
	}

	now := time.Now()
	record, err := s.files.Create(ctx, stagedfile.StagedFile{
		ID:           id,
		UserID:       userID,
		OriginalName: originalName,
		StoredPath:   storedPath,
		Size:         written,
		ContentType:  detected.String(),
		UploadedAt:   now,
		ExpiresAt:    now.Add(s.ttl),
	})
	if err != nil {
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, err
	}
	return record, nil
}

// Resolve returns the staged file for a handle, failing when the record is
// gone, expired, or the bytes have vanished underneath it.
func (s *StagingService) Resolve(ctx context.Context, id uuid.UUID) (stagedfile.StagedFile, error) {
	record, err := s.files.GetByID(ctx, id)
	if err != nil {
		return stagedfile.StagedFile{}, err
	}
	if record.Expired(time.Now()) {
		return stagedfile.StagedFile{}, stagedfile.ErrExpired
	}
	if _, err := os.Stat(record.StoredPath); err != nil {
		return stagedfile.StagedFile{}, stagedfile.ErrNotFound
	}
	return record, nil
}

// Delete removes both the record and the bytes. Called after job completion.
func (s *StagingService) Delete(ctx context.Context, id uuid.UUID) error {
	record, err := s.files.GetByID(ctx, id)
	if err != nil {
		if gerrors.Is(err, stagedfile.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(record.StoredPath); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).WithField("path", record.StoredPath).Warn("staged file bytes not removed")
	}
	return nil
}

// StageFailedRecords derives a fresh CSV from a prior job's failed rows and
// stages it for a retry run. The derived file contains exactly the original
// row data of the failed records.
func (s *StagingService) StageFailedRecords(ctx context.Context, originalName string, columns []string, failed []importjob.FailedRecord) (stagedfile.StagedFile, error) {
	userID, err := composables.UseUserID(ctx)
	if err != nil {
		return stagedfile.StagedFile{}, err
	}

	id := uuid.New()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "create staging dir")
	}
	storedPath := filepath.Join(s.dir, id.String()+".csv")

	out, err := os.Create(storedPath)
	if err != nil {
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "create retry file")
	}
	writer := csv.NewWriter(out)
	if err := writer.Write(columns); err != nil {
		_ = out.Close()
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "write retry header")
	}
	for _, record := range failed {
		row := make([]string, 0, len(columns))
		for _, col := range columns {
			row = append(row, record.Data[col])
		}
		if err := writer.Write(row); err != nil {
			_ = out.Close()
			_ = os.Remove(storedPath)
			return stagedfile.StagedFile{}, gerrors.Wrap(err, "write retry row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = out.Close()
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "flush retry file")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "close retry file")
	}

	info, err := os.Stat(storedPath)
	if err != nil {
		return stagedfile.StagedFile{}, gerrors.Wrap(err, "stat retry file")
	}

	now := time.Now()
	record, err := s.files.Create(ctx, stagedfile.StagedFile{
		ID:           id,
		UserID:       userID,
		OriginalName: retryFileName(originalName),
		StoredPath:   storedPath,
		Size:         info.Size(),
		ContentType:  "text/csv",
		UploadedAt:   now,
		ExpiresAt:    now.Add(s.ttl),
	})
	if err != nil {
		_ = os.Remove(storedPath)
		return stagedfile.StagedFile{}, err
	}
	return record, nil
}

// CleanupExpired sweeps expired staged files, records first, then bytes.
func (s *StagingService) CleanupExpired(ctx context.Context) (int, error) {
	paths, err := s.files.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField("path", path).Warn("expired staged file bytes not removed")
		}
	}
	return len(paths), nil
}

func mimeAllowed(detected string) bool {
	for _, prefix := range allowedMIMEPrefixes {
		if strings.HasPrefix(detected, prefix) {
			return true
		}
	}
	return false
}

func retryFileName(originalName string) string {
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(originalName, ext)
	return base + "-retry.csv"
}
