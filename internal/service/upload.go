package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sentiment-eval/internal/csv_processor"
	"sentiment-eval/internal/csvdata"
	"sentiment-eval/internal/models"
	"sentiment-eval/internal/repository"
)

// UploadInput describes a staged CSV file to ingest.
type UploadInput struct {
	Path       string
	Filename   string
	FileSize   int64
	UploadedBy uuid.UUID
}

// UploadService runs the validate-then-process protocol for CSV uploads.
type UploadService struct {
	uploadRepo repository.UploadLogRepository
	processor  *csv_processor.Processor
	logger     *zap.Logger
}

// NewUploadService creates a new upload service.
func NewUploadService(uploadRepo repository.UploadLogRepository, processor *csv_processor.Processor, logger *zap.Logger) *UploadService {
	return &UploadService{
		uploadRepo: uploadRepo,
		processor:  processor,
		logger:     logger,
	}
}

// Validate reports on the structure of the file at path without touching the database.
func (s *UploadService) Validate(path string) csvdata.ValidationReport {
	return csvdata.Validate(path)
}

// Ingest records a pending upload, gates it on the structural validator and then
// processes it. A rejected file moves the upload straight to failed.
func (s *UploadService) Ingest(ctx context.Context, in UploadInput) (csv_processor.Result, error) {
	upload := &models.DataUploadLog{
		UploadedBy:    in.UploadedBy,
		Filename:      in.Filename,
		FileSizeBytes: in.FileSize,
	}
	if err := s.uploadRepo.Create(ctx, upload); err != nil {
		return csv_processor.Result{}, err
	}

	s.logger.Info("Upload registered",
		zap.String("upload_id", upload.ID.String()),
		zap.String("filename", in.Filename),
		zap.Int64("file_size_bytes", in.FileSize),
	)

	report := csvdata.Validate(in.Path)
	if !report.Valid {
		detail := strings.Join(report.MissingColumns, ", ")
		if report.Error != "" {
			detail = report.Error
		}
		message := "Invalid CSV structure: " + detail

		s.logger.Warn("Upload rejected by validator", zap.String("upload_id", upload.ID.String()), zap.String("reason", message))
		if err := s.uploadRepo.Fail(ctx, upload.ID, message, models.ProcessingLog{Error: message}); err != nil {
			return csv_processor.Result{}, fmt.Errorf("failed to reject upload: %w", err)
		}

		return csv_processor.Result{
			UploadID:       upload.ID,
			Error:          message,
			MissingColumns: report.MissingColumns,
			ProcessingLog:  []models.LogEntry{},
		}, nil
	}

	return s.processor.Process(ctx, upload, in.Path), nil
}

// GetUpload returns the ledger record of an upload.
func (s *UploadService) GetUpload(ctx context.Context, id uuid.UUID) (*models.DataUploadLog, error) {
	return s.uploadRepo.Get(ctx, id)
}
