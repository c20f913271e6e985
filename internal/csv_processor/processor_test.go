package csv_processor_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"sentiment-eval/internal/config"
	"sentiment-eval/internal/csv_processor"
	"sentiment-eval/internal/models"
	"sentiment-eval/internal/repository"
)

const header = "review_id;review_text;review_sentence;gpt4;Gemini flash 2.5;perplexity;sentence_id\n"

type fixture struct {
	db        *sqlx.DB
	reviews   repository.ReviewRepository
	uploads   repository.UploadLogRepository
	processor *csv_processor.Processor
	admin     *models.User
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()

	logger := zap.NewNop()
	db, err := repository.NewDB(config.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, logger))

	admin := &models.User{Username: "admin", Role: models.RoleAdmin}
	require.NoError(t, repository.NewUserRepository(db, logger).Create(context.Background(), admin))

	reviews := repository.NewReviewRepository(db, logger)
	uploads := repository.NewUploadLogRepository(db, logger)
	return &fixture{
		db:        db,
		reviews:   reviews,
		uploads:   uploads,
		processor: csv_processor.NewProcessor(reviews, uploads, logger, batchSize),
		admin:     admin,
	}
}

func (f *fixture) process(t *testing.T, content string) (csv_processor.Result, *models.DataUploadLog) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ctx := context.Background()
	upload := &models.DataUploadLog{UploadedBy: f.admin.ID, Filename: "upload.csv", FileSizeBytes: int64(len(content))}
	require.NoError(t, f.uploads.Create(ctx, upload))

	result := f.processor.Process(ctx, upload, path)

	stored, err := f.uploads.Get(ctx, upload.ID)
	require.NoError(t, err)
	return result, stored
}

func (f *fixture) stats(t *testing.T) *repository.DatasetStats {
	t.Helper()
	stats, err := f.reviews.GetDatasetStats(context.Background())
	require.NoError(t, err)
	return stats
}

func messages(entries []models.LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func TestProcess_FreshRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	result, stored := f.process(t, header+"R1;Great product;It works well;Positive;Positive;;R1-S1\n")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.TotalRows)
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Zero(t, result.FailedRows)
	assert.Equal(t, stored.ID, result.UploadID)

	stats := f.stats(t)
	assert.Equal(t, 1, stats.Reviews)
	assert.Equal(t, 1, stats.Sentences)
	assert.Equal(t, map[string]int{"gpt4": 1, "gemini": 1}, stats.PredictionsByModel)

	ctx := context.Background()
	review, err := f.reviews.GetReviewByReviewID(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "Great product", review.ReviewText)

	sentence, err := f.reviews.GetSentence(ctx, "R1", "R1-S1")
	require.NoError(t, err)
	assert.Equal(t, "It works well", sentence.ReviewSentence)
	assert.Nil(t, sentence.PerplexityPrediction)

	assert.Equal(t, models.UploadCompleted, stored.Status)
	assert.Equal(t, 1, stored.TotalRows)
	assert.Equal(t, 1, stored.SuccessfulRows)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, []string{
		"Successfully read CSV with utf-8 encoding",
		"Processing batch starting at row 1",
	}, messages(stored.ProcessingLog.Logs))
	require.NotNil(t, stored.ProcessingLog.Summary)
	assert.Equal(t, 1, stored.ProcessingLog.Summary.SuccessfulRows)
	assert.Equal(t, map[string]int{
		"reviews_created":     1,
		"sentences_created":   1,
		"predictions_created": 2,
	}, stored.ProcessingLog.Summary.Outcomes)
}

func TestProcess_ReviewTextUpdatedInPlace(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	result, _ := f.process(t, header+
		"R1;Great product;It works well;Positive;Positive;;R1-S1\n"+
		"R1;Great product, updated;Battery is weak;Negative;;Negative;R1-S2\n")

	require.True(t, result.Success)
	assert.Equal(t, 2, result.SuccessfulRows)

	stats := f.stats(t)
	assert.Equal(t, 1, stats.Reviews)
	assert.Equal(t, 2, stats.Sentences)

	review, err := f.reviews.GetReviewByReviewID(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "Great product, updated", review.ReviewText)
}

func TestProcess_RerunIsIdempotent(t *testing.T) {
	t.Parallel()

	content := header +
		"R1;Great product;It works well;Positive;Positive;;R1-S1\n" +
		"R2;Meh;Arrived late;Negative;Negative;Neutral;R2-S1\n"

	f := newFixture(t, 0)
	first, _ := f.process(t, content)
	require.True(t, first.Success)
	before := f.stats(t)

	second, stored := f.process(t, content)
	require.True(t, second.Success)
	assert.Equal(t, 2, second.SuccessfulRows)
	assert.Equal(t, before, f.stats(t))

	assert.Equal(t, map[string]int{
		"reviews_unchanged":     2,
		"sentences_unchanged":   2,
		"predictions_unchanged": 5,
	}, stored.ProcessingLog.Summary.Outcomes)
}

func TestProcess_BlankPredictionLeavesExistingRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	result, _ := f.process(t, header+"R1;text;It works;Positive;Positive;Positive;S1\n")
	require.True(t, result.Success)

	result, _ = f.process(t, header+"R1;text;It works;Positive;   ;nan;S1\n")
	require.True(t, result.Success)

	ctx := context.Background()
	sentence, err := f.reviews.GetSentence(ctx, "R1", "S1")
	require.NoError(t, err)
	assert.Nil(t, sentence.GeminiPrediction, "raw column follows the latest row")
	assert.Nil(t, sentence.PerplexityPrediction)

	predictions, err := f.reviews.GetPredictions(ctx, sentence.ID)
	require.NoError(t, err)
	require.Len(t, predictions, 3, "blank cells never delete predictions")
	for _, p := range predictions {
		assert.Equal(t, "Positive", p.PredictionText)
	}
}

func TestProcess_RowFailureIsIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	_, err := f.db.Exec(`
		CREATE TRIGGER reject_prediction BEFORE INSERT ON model_predictions
		WHEN NEW.prediction_text = 'EXPLODE'
		BEGIN
			SELECT RAISE(ABORT, 'prediction rejected');
		END;
	`)
	require.NoError(t, err)

	result, stored := f.process(t, header+
		"R1;ok;first;Positive;;;S1\n"+
		"R2;bad;second;Positive;EXPLODE;;S2\n"+
		"R3;ok;third;Negative;;;S3\n")

	require.True(t, result.Success, "row failures do not fail the run")
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.SuccessfulRows)
	assert.Equal(t, 1, result.FailedRows)
	assert.Equal(t, result.TotalRows, result.SuccessfulRows+result.FailedRows)

	_, err = f.reviews.GetReviewByReviewID(context.Background(), "R2")
	assert.ErrorIs(t, err, repository.ErrNotFound, "failed row is rolled back")

	stats := f.stats(t)
	assert.Equal(t, 2, stats.Reviews)
	assert.Equal(t, 2, stats.Sentences)
	assert.Equal(t, 2, stats.Predictions)

	assert.Equal(t, models.UploadCompleted, stored.Status)
	assert.Equal(t, 1, stored.FailedRows)

	var rowErrors []string
	for _, m := range messages(stored.ProcessingLog.Logs) {
		if strings.HasPrefix(m, "Row ") {
			rowErrors = append(rowErrors, m)
		}
	}
	require.Len(t, rowErrors, 1)
	assert.True(t, strings.HasPrefix(rowErrors[0], "Row 2: "), rowErrors[0])
	assert.Contains(t, rowErrors[0], "prediction rejected")
}

func TestProcess_DroppedRowsAndBatches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2)
	result, stored := f.process(t, header+
		"R1;t;a;Positive;;;S1\n"+
		";t;orphan;Positive;;;S2\n"+
		"R1;t;b;Positive;;;S3\n"+
		"R1;t;NULL;Positive;;;S4\n"+
		"R2;t;c;Positive;;;S5\n")

	require.True(t, result.Success)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 3, result.SuccessfulRows)

	assert.Equal(t, []string{
		"Successfully read CSV with utf-8 encoding",
		"Dropped 2 rows with missing essential data",
		"Processing batch starting at row 1",
		"Processing batch starting at row 3",
	}, messages(stored.ProcessingLog.Logs))
	assert.Equal(t, 2, stored.ProcessingLog.Summary.DroppedRows)
}

func TestProcess_LegacyEncoding(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	result, stored := f.process(t, header+"R1;Caf\xe9 ferm\xe9;Tr\xe8s bien;Positive;;;S1\n")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Successfully read CSV with latin-1 encoding", stored.ProcessingLog.Logs[0].Message)

	review, err := f.reviews.GetReviewByReviewID(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "Café fermé", review.ReviewText)
}

func TestProcess_MissingColumnsFailsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	result, stored := f.process(t, "review_id;review_text;review_sentence;gpt4;Gemini flash 2.5;perplexity\nR1;t;s;a;b;c\n")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "sentence_id")

	assert.Equal(t, models.UploadFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "missing required columns: sentence_id", *stored.ErrorMessage)
	assert.Equal(t, *stored.ErrorMessage, stored.ProcessingLog.Error)
	assert.Equal(t, []string{"Successfully read CSV with utf-8 encoding"}, messages(stored.ProcessingLog.Logs))
	assert.Zero(t, f.stats(t).Reviews)
}

func TestProcess_UnreadableFileFailsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	ctx := context.Background()
	upload := &models.DataUploadLog{UploadedBy: f.admin.ID, Filename: "gone.csv"}
	require.NoError(t, f.uploads.Create(ctx, upload))

	result := f.processor.Process(ctx, upload, filepath.Join(t.TempDir(), "gone.csv"))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to read CSV file")
	assert.NotNil(t, result.ProcessingLog)
	assert.Equal(t, models.UploadFailed, upload.Status)

	stored, err := f.uploads.Get(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadFailed, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestProcess_RequiresPendingUpload(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	_, stored := f.process(t, header+"R1;t;s;Positive;;;S1\n")
	require.Equal(t, models.UploadCompleted, stored.Status)

	result := f.processor.Process(context.Background(), stored, "unused.csv")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, repository.ErrInvalidTransition.Error())

	again, err := f.uploads.Get(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadCompleted, again.Status)
}

func TestProcess_MirrorsLogToZap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	core, observed := observer.New(zap.InfoLevel)
	processor := csv_processor.NewProcessor(f.reviews, f.uploads, zap.New(core), 0)

	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"R1;t;s;Positive;;;S1\n"), 0o600))

	ctx := context.Background()
	upload := &models.DataUploadLog{UploadedBy: f.admin.ID, Filename: "upload.csv"}
	require.NoError(t, f.uploads.Create(ctx, upload))

	result := processor.Process(ctx, upload, path)
	require.True(t, result.Success)

	entries := observed.FilterMessage("CSV Processing").AllUntimed()
	require.Len(t, entries, len(result.ProcessingLog))
	for i, entry := range entries {
		assert.Equal(t, result.ProcessingLog[i].Message, entry.ContextMap()["message"])
		assert.Equal(t, upload.ID.String(), entry.ContextMap()["upload_id"])
	}
	assert.Equal(t, 1, observed.FilterMessage("CSV processing completed").Len())
}
