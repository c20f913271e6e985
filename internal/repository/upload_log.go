package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sentiment-eval/internal/models"
)

// UploadLogRepository persists DataUploadLog records. Status changes are guarded by the
// current status in the UPDATE itself, so a terminal log can never be reopened.
type UploadLogRepository interface {
	Create(ctx context.Context, log *models.DataUploadLog) error
	Get(ctx context.Context, id uuid.UUID) (*models.DataUploadLog, error)
	StartProcessing(ctx context.Context, id uuid.UUID) error
	SetTotalRows(ctx context.Context, id uuid.UUID, total int) error
	UpdateProgress(ctx context.Context, id uuid.UUID, successful, failed int) error
	Complete(ctx context.Context, id uuid.UUID, successful, failed int, log models.ProcessingLog) error
	Fail(ctx context.Context, id uuid.UUID, message string, log models.ProcessingLog) error
}

type uploadLogRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewUploadLogRepository creates a new upload log repository.
func NewUploadLogRepository(db *sqlx.DB, logger *zap.Logger) UploadLogRepository {
	return &uploadLogRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new log in the pending state and fills in its id and created_at.
func (r *uploadLogRepository) Create(ctx context.Context, log *models.DataUploadLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.Status = models.UploadPending
	log.CreatedAt = r.now()

	query := `
		INSERT INTO data_upload_logs (
			id, uploaded_by, filename, file_size_bytes, status,
			total_rows, successful_rows, failed_rows, processing_log, created_at
		) VALUES (
			:id, :uploaded_by, :filename, :file_size_bytes, :status,
			:total_rows, :successful_rows, :failed_rows, :processing_log, :created_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		r.logger.Error("Failed to create upload log", zap.Error(err), zap.String("filename", log.Filename))
		return fmt.Errorf("failed to create upload log: %w", err)
	}
	return nil
}

func (r *uploadLogRepository) Get(ctx context.Context, id uuid.UUID) (*models.DataUploadLog, error) {
	var log models.DataUploadLog
	query := `
		SELECT id, uploaded_by, filename, file_size_bytes, status, total_rows,
		       successful_rows, failed_rows, error_message, processing_log,
		       created_at, completed_at
		FROM data_upload_logs
		WHERE id = ?
	`
	if err := r.db.GetContext(ctx, &log, r.db.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

func (r *uploadLogRepository) StartProcessing(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE data_upload_logs SET status = ? WHERE id = ? AND status = ?`
	return r.transition(ctx, id, query, string(models.UploadProcessing), id, string(models.UploadPending))
}

func (r *uploadLogRepository) SetTotalRows(ctx context.Context, id uuid.UUID, total int) error {
	query := `UPDATE data_upload_logs SET total_rows = ? WHERE id = ? AND status = ?`
	return r.transition(ctx, id, query, total, id, string(models.UploadProcessing))
}

func (r *uploadLogRepository) UpdateProgress(ctx context.Context, id uuid.UUID, successful, failed int) error {
	query := `UPDATE data_upload_logs SET successful_rows = ?, failed_rows = ? WHERE id = ? AND status = ?`
	return r.transition(ctx, id, query, successful, failed, id, string(models.UploadProcessing))
}

func (r *uploadLogRepository) Complete(ctx context.Context, id uuid.UUID, successful, failed int, log models.ProcessingLog) error {
	query := `
		UPDATE data_upload_logs
		SET status = ?, successful_rows = ?, failed_rows = ?, processing_log = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`
	return r.transition(ctx, id, query,
		string(models.UploadCompleted), successful, failed, log, r.now(),
		id, string(models.UploadProcessing),
	)
}

// Fail moves a pending or processing log to failed.
func (r *uploadLogRepository) Fail(ctx context.Context, id uuid.UUID, message string, log models.ProcessingLog) error {
	query := `
		UPDATE data_upload_logs
		SET status = ?, error_message = ?, processing_log = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)
	`
	return r.transition(ctx, id, query,
		string(models.UploadFailed), message, log, r.now(),
		id, string(models.UploadPending), string(models.UploadProcessing),
	)
}

// transition executes a status-guarded UPDATE. When no row matches it tells a missing
// log apart from one in the wrong state.
func (r *uploadLogRepository) transition(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to update upload log", zap.Error(err), zap.String("upload_id", id.String()))
		return fmt.Errorf("failed to update upload log: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var status models.UploadStatus
	err = r.db.GetContext(ctx, &status, r.db.Rebind(`SELECT status FROM data_upload_logs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: upload is %s", ErrInvalidTransition, status)
}
