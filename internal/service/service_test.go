package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sentiment-eval/internal/config"
	"sentiment-eval/internal/csv_processor"
	"sentiment-eval/internal/models"
	"sentiment-eval/internal/repository"
	"sentiment-eval/internal/service"
)

const header = "review_id;review_text;review_sentence;gpt4;Gemini flash 2.5;perplexity;sentence_id\n"

type deps struct {
	uploads     *service.UploadService
	exporter    *service.DataExporter
	cleanup     *service.CleanupService
	reviews     repository.ReviewRepository
	evaluations repository.EvaluationRepository
	admin       *models.User
}

func newDeps(t *testing.T) *deps {
	t.Helper()

	logger := zap.NewNop()
	db, err := repository.NewDB(config.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, logger))

	admin := &models.User{Username: "admin", Role: models.RoleAdmin}
	require.NoError(t, repository.NewUserRepository(db, logger).Create(context.Background(), admin))

	reviews := repository.NewReviewRepository(db, logger)
	uploadLogs := repository.NewUploadLogRepository(db, logger)
	evaluations := repository.NewEvaluationRepository(db, logger)
	processor := csv_processor.NewProcessor(reviews, uploadLogs, logger, 0)

	return &deps{
		uploads:     service.NewUploadService(uploadLogs, processor, logger),
		exporter:    service.NewDataExporter(evaluations, logger),
		cleanup:     service.NewCleanupService(reviews, logger),
		reviews:     reviews,
		evaluations: evaluations,
		admin:       admin,
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (d *deps) ingest(t *testing.T, content string) (csv_processor.Result, *models.DataUploadLog) {
	t.Helper()

	ctx := context.Background()
	result, err := d.uploads.Ingest(ctx, service.UploadInput{
		Path:       writeCSV(t, content),
		Filename:   "reviews.csv",
		FileSize:   int64(len(content)),
		UploadedBy: d.admin.ID,
	})
	require.NoError(t, err)

	upload, err := d.uploads.GetUpload(ctx, result.UploadID)
	require.NoError(t, err)
	return result, upload
}

func TestUploadService_Ingest(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	result, upload := d.ingest(t, header+
		"R1;Great product;It works well;Positive;Positive;;R1-S1\n"+
		"R1;Great product;Battery is weak;Negative;Negative;Negative;R1-S2\n")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.SuccessfulRows)
	assert.Empty(t, result.MissingColumns)

	assert.Equal(t, models.UploadCompleted, upload.Status)
	assert.Equal(t, "reviews.csv", upload.Filename)
	assert.Equal(t, d.admin.ID, upload.UploadedBy)
	assert.Equal(t, 100.0, upload.SuccessRate())
}

func TestUploadService_IngestRejectsInvalidStructure(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	result, upload := d.ingest(t, "review_id;review_text;review_sentence;gpt4;Gemini flash 2.5;perplexity\nR1;t;s;a;b;c\n")

	assert.False(t, result.Success)
	assert.Equal(t, []string{"sentence_id"}, result.MissingColumns)
	assert.Equal(t, "Invalid CSV structure: sentence_id", result.Error)

	assert.Equal(t, models.UploadFailed, upload.Status)
	require.NotNil(t, upload.ErrorMessage)
	assert.Equal(t, "Invalid CSV structure: sentence_id", *upload.ErrorMessage)
	assert.Zero(t, upload.TotalRows)

	stats, err := d.cleanup.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Reviews)
}

func TestUploadService_IngestRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	result, upload := d.ingest(t, header+"R1;t;s;a;b;c;S1;extra\n")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid CSV structure: ")
	assert.Empty(t, result.MissingColumns)
	assert.Equal(t, models.UploadFailed, upload.Status)
}

func TestUploadService_Validate(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	report := d.uploads.Validate(writeCSV(t, header+"R1;t;s;a;b;c;S1\n"))

	assert.True(t, report.Valid)
	assert.Equal(t, 7, report.TotalColumns)
	assert.Equal(t, 1, report.TotalRows)
}

func TestDataExporter_ExportEvaluations(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	ctx := context.Background()

	table, err := d.exporter.ExportEvaluations(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.ExportColumns, table.Columns)
	assert.Empty(t, table.Rows)

	result, _ := d.ingest(t, header+"R1;text;It works well;Positive;Positive;;R1-S1\n")
	require.True(t, result.Success)

	sentence, err := d.reviews.GetSentence(ctx, "R1", "R1-S1")
	require.NoError(t, err)
	alternative := "Mostly positive"
	require.NoError(t, d.evaluations.Create(ctx, &models.HumanEvaluation{
		SentencePK:          sentence.ID,
		EvaluatorID:         d.admin.ID,
		BestModel:           models.BestModelNone,
		AlternativeSolution: &alternative,
	}))

	table, err = d.exporter.ExportEvaluations(ctx)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	require.Len(t, row, len(service.ExportColumns))
	assert.Equal(t, []string{
		"R1-S1", "R1", "It works well", "Positive", "Positive", "",
		"admin", "none", "Mostly positive", "",
	}, row[:10])
	assert.NotEmpty(t, row[10])

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "evaluation_date", records[0][10])
}

func TestCleanupService_RemoveEmptySentences(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	ctx := context.Background()

	result, _ := d.ingest(t, header+
		"R1;t;kept;Positive;;;S1\n"+
		"R1;t;empty;;;;S2\n")
	require.True(t, result.Success)

	count, err := d.cleanup.RemoveEmptySentences(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = d.cleanup.RemoveEmptySentences(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = d.reviews.GetSentence(ctx, "R1", "S2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = d.reviews.GetSentence(ctx, "R1", "S1")
	assert.NoError(t, err)
}
