package csv_processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sentiment-eval/internal/csvdata"
	"sentiment-eval/internal/models"
	"sentiment-eval/internal/repository"
)

// DefaultBatchSize is the number of rows between progress checkpoints in the log.
const DefaultBatchSize = 1000

// ErrMissingColumns is returned when the table lacks required columns.
var ErrMissingColumns = errors.New("missing required columns")

// Result is the outcome of one ingestion run.
type Result struct {
	UploadID       uuid.UUID         `json:"upload_log_id"`
	Success        bool              `json:"success"`
	TotalRows      int               `json:"total_rows"`
	SuccessfulRows int               `json:"successful_rows"`
	FailedRows     int               `json:"failed_rows"`
	ProcessingLog  []models.LogEntry `json:"processing_log"`
	Error          string            `json:"error,omitempty"`
	MissingColumns []string          `json:"missing_columns,omitempty"`
}

// Processor reconciles CSV rows into reviews, sentences and model predictions.
type Processor struct {
	reviewRepo repository.ReviewRepository
	uploadRepo repository.UploadLogRepository
	logger     *zap.Logger
	batchSize  int
	now        func() time.Time
}

// NewProcessor creates a new CSV processor. A non-positive batchSize selects DefaultBatchSize.
func NewProcessor(
	reviewRepo repository.ReviewRepository,
	uploadRepo repository.UploadLogRepository,
	logger *zap.Logger,
	batchSize int,
) *Processor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Processor{
		reviewRepo: reviewRepo,
		uploadRepo: uploadRepo,
		logger:     logger,
		batchSize:  batchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// runState carries the counters and log of a single run.
type runState struct {
	uploadID   uuid.UUID
	logs       []models.LogEntry
	totalRows  int
	successful int
	failed     int
	dropped    int
	outcomes   map[string]int
}

func (p *Processor) addLog(state *runState, message string) {
	state.logs = append(state.logs, models.LogEntry{Timestamp: p.now(), Message: message})
	p.logger.Info("CSV Processing", zap.String("upload_id", state.uploadID.String()), zap.String("message", message))
}

// Process runs the file at path through the pipeline and finalizes the upload log.
// The log must be pending. Row failures are counted, not returned; only a failure
// outside the row loop marks the upload failed.
func (p *Processor) Process(ctx context.Context, upload *models.DataUploadLog, path string) Result {
	state := &runState{uploadID: upload.ID, outcomes: make(map[string]int)}

	if err := p.uploadRepo.StartProcessing(ctx, upload.ID); err != nil {
		p.logger.Error("Failed to start processing", zap.Error(err), zap.String("upload_id", upload.ID.String()))
		return Result{UploadID: upload.ID, Error: err.Error(), ProcessingLog: []models.LogEntry{}}
	}
	upload.Status = models.UploadProcessing

	if err := p.safeRun(ctx, state, path); err != nil {
		return p.fail(ctx, upload, state, err)
	}

	summary := models.ProcessingLog{
		Logs: state.logs,
		Summary: &models.LogSummary{
			TotalRows:      state.totalRows,
			SuccessfulRows: state.successful,
			FailedRows:     state.failed,
			DroppedRows:    state.dropped,
			Outcomes:       state.outcomes,
		},
	}
	if err := p.uploadRepo.Complete(ctx, upload.ID, state.successful, state.failed, summary); err != nil {
		return p.fail(ctx, upload, state, err)
	}
	upload.Status = models.UploadCompleted

	p.logger.Info("CSV processing completed",
		zap.String("upload_id", upload.ID.String()),
		zap.Int("total_rows", state.totalRows),
		zap.Int("successful_rows", state.successful),
		zap.Int("failed_rows", state.failed),
	)

	return Result{
		UploadID:       upload.ID,
		Success:        true,
		TotalRows:      state.totalRows,
		SuccessfulRows: state.successful,
		FailedRows:     state.failed,
		ProcessingLog:  state.logs,
	}
}

func (p *Processor) fail(ctx context.Context, upload *models.DataUploadLog, state *runState, cause error) Result {
	p.logger.Error("CSV processing failed", zap.Error(cause), zap.String("upload_id", upload.ID.String()))

	snapshot := models.ProcessingLog{Logs: state.logs, Error: cause.Error()}
	if err := p.uploadRepo.Fail(ctx, upload.ID, cause.Error(), snapshot); err != nil {
		p.logger.Error("Failed to mark upload as failed", zap.Error(err), zap.String("upload_id", upload.ID.String()))
	} else {
		upload.Status = models.UploadFailed
	}

	result := Result{
		UploadID:       upload.ID,
		TotalRows:      state.totalRows,
		SuccessfulRows: state.successful,
		FailedRows:     state.failed,
		ProcessingLog:  state.logs,
		Error:          cause.Error(),
	}
	if result.ProcessingLog == nil {
		result.ProcessingLog = []models.LogEntry{}
	}
	return result
}

// safeRun turns a panic escaping the pipeline into a run failure.
func (p *Processor) safeRun(ctx context.Context, state *runState, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()
	return p.run(ctx, state, path)
}

func (p *Processor) run(ctx context.Context, state *runState, path string) error {
	table, err := csvdata.ReadFile(path, csvdata.Delimiter)
	if err != nil {
		return err
	}
	p.addLog(state, fmt.Sprintf("Successfully read CSV with %s encoding", table.Encoding))

	if missing := csvdata.MissingColumns(table.Columns); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	rows, dropped := csvdata.Normalize(table)
	state.dropped = dropped
	if dropped > 0 {
		p.addLog(state, fmt.Sprintf("Dropped %d rows with missing essential data", dropped))
	}

	state.totalRows = len(rows)
	if err := p.uploadRepo.SetTotalRows(ctx, state.uploadID, state.totalRows); err != nil {
		return err
	}

	for start := 0; start < len(rows); start += p.batchSize {
		end := start + p.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := p.processBatch(ctx, state, rows[start:end], start+1); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) processBatch(ctx context.Context, state *runState, batch []models.CSVRow, startRow int) error {
	p.addLog(state, fmt.Sprintf("Processing batch starting at row %d", startRow))

	for i := range batch {
		row := &batch[i]
		var outcomes map[string]int
		if err := p.reviewRepo.WithinTx(ctx, func(w repository.ReviewWriter) error {
			var err error
			outcomes, err = p.processRow(ctx, w, row)
			return err
		}); err != nil {
			state.failed++
			message := fmt.Sprintf("Row %d: %v", row.Line, err)
			state.logs = append(state.logs, models.LogEntry{Timestamp: p.now(), Message: message})
			p.logger.Warn("CSV Processing", zap.String("upload_id", state.uploadID.String()), zap.String("message", message))
		} else {
			state.successful++
			for k, v := range outcomes {
				state.outcomes[k] += v
			}
		}

		if err := p.uploadRepo.UpdateProgress(ctx, state.uploadID, state.successful, state.failed); err != nil {
			return err
		}
	}
	return nil
}

// processRow writes one row and reports what each upsert did.
func (p *Processor) processRow(ctx context.Context, w repository.ReviewWriter, row *models.CSVRow) (map[string]int, error) {
	outcomes := make(map[string]int, 3)

	reviewPK, outcome, err := w.UpsertReview(ctx, row.ReviewID, row.ReviewText)
	if err != nil {
		return nil, err
	}
	outcomes["reviews_"+string(outcome)]++

	sentencePK, outcome, err := w.UpsertSentence(ctx, reviewPK, row)
	if err != nil {
		return nil, err
	}
	outcomes["sentences_"+string(outcome)]++

	for _, model := range models.Models {
		text := row.Prediction(model)
		if text == nil || strings.TrimSpace(*text) == "" {
			continue
		}
		outcome, err := w.UpsertPrediction(ctx, sentencePK, model, *text)
		if err != nil {
			return nil, err
		}
		outcomes["predictions_"+string(outcome)]++
	}
	return outcomes, nil
}
