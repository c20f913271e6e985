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

// ReviewWriter performs the upserts of one CSV row. All calls share one transaction.
type ReviewWriter interface {
	UpsertReview(ctx context.Context, reviewID string, text *string) (uuid.UUID, models.UpsertOutcome, error)
	UpsertSentence(ctx context.Context, reviewPK uuid.UUID, row *models.CSVRow) (uuid.UUID, models.UpsertOutcome, error)
	UpsertPrediction(ctx context.Context, sentencePK uuid.UUID, model models.ModelName, text string) (models.UpsertOutcome, error)
}

// ReviewRepository stores reviews, their sentences and per-model predictions.
type ReviewRepository interface {
	// WithinTx runs fn in a transaction that is committed only if fn succeeds.
	WithinTx(ctx context.Context, fn func(w ReviewWriter) error) error
	GetReviewByReviewID(ctx context.Context, reviewID string) (*models.Review, error)
	GetSentence(ctx context.Context, reviewID, sentenceID string) (*models.ReviewSentence, error)
	GetPredictions(ctx context.Context, sentencePK uuid.UUID) ([]*models.ModelPrediction, error)
	GetDatasetStats(ctx context.Context) (*DatasetStats, error)
	DeleteEmptySentences(ctx context.Context, dryRun bool) (int, error)
}

// DatasetStats counts the stored ingestion entities.
type DatasetStats struct {
	Reviews            int            `db:"reviews" json:"reviews"`
	Sentences          int            `db:"sentences" json:"sentences"`
	Predictions        int            `db:"predictions" json:"predictions"`
	PredictionsByModel map[string]int `db:"-" json:"predictions_by_model"`
}

type reviewRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB, logger *zap.Logger) ReviewRepository {
	return &reviewRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *reviewRepository) WithinTx(ctx context.Context, fn func(w ReviewWriter) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(&reviewWriter{q: tx, now: r.now}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type reviewWriter struct {
	q   sqlx.ExtContext
	now func() time.Time
}

// upsertReviewSQL only rewrites the text when the row carries a non-empty, different one.
const upsertReviewSQL = `
	INSERT INTO reviews (id, review_id, review_text, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (review_id) DO UPDATE
	SET review_text = excluded.review_text,
	    updated_at = excluded.updated_at
	WHERE excluded.review_text <> ''
	  AND reviews.review_text IS DISTINCT FROM excluded.review_text
	RETURNING id
`

func (w *reviewWriter) UpsertReview(ctx context.Context, reviewID string, text *string) (uuid.UUID, models.UpsertOutcome, error) {
	reviewText := ""
	if text != nil {
		reviewText = *text
	}

	newID := uuid.New()
	now := w.now()
	id, outcome, err := w.upsert(ctx, newID, upsertReviewSQL, newID, reviewID, reviewText, now, now)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to upsert review %q: %w", reviewID, err)
	}
	if outcome == models.OutcomeUnchanged {
		err = sqlx.GetContext(ctx, w.q, &id, w.q.Rebind(`SELECT id FROM reviews WHERE review_id = ?`), reviewID)
		if err != nil {
			return uuid.Nil, "", fmt.Errorf("failed to look up review %q: %w", reviewID, err)
		}
	}
	return id, outcome, nil
}

const upsertSentenceSQL = `
	INSERT INTO review_sentences (
		id, review_pk, sentence_id, review_sentence,
		gpt4_prediction, gemini_prediction, perplexity_prediction,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (review_pk, sentence_id) DO UPDATE
	SET review_sentence = excluded.review_sentence,
	    gpt4_prediction = excluded.gpt4_prediction,
	    gemini_prediction = excluded.gemini_prediction,
	    perplexity_prediction = excluded.perplexity_prediction,
	    updated_at = excluded.updated_at
	WHERE review_sentences.review_sentence IS DISTINCT FROM excluded.review_sentence
	   OR review_sentences.gpt4_prediction IS DISTINCT FROM excluded.gpt4_prediction
	   OR review_sentences.gemini_prediction IS DISTINCT FROM excluded.gemini_prediction
	   OR review_sentences.perplexity_prediction IS DISTINCT FROM excluded.perplexity_prediction
	RETURNING id
`

func (w *reviewWriter) UpsertSentence(ctx context.Context, reviewPK uuid.UUID, row *models.CSVRow) (uuid.UUID, models.UpsertOutcome, error) {
	newID := uuid.New()
	now := w.now()
	id, outcome, err := w.upsert(ctx, newID, upsertSentenceSQL,
		newID, reviewPK, row.SentenceID, row.ReviewSentence,
		row.GPT4Prediction, row.GeminiPrediction, row.PerplexityPrediction,
		now, now,
	)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to upsert sentence %q: %w", row.SentenceID, err)
	}
	if outcome == models.OutcomeUnchanged {
		query := `SELECT id FROM review_sentences WHERE review_pk = ? AND sentence_id = ?`
		if err := sqlx.GetContext(ctx, w.q, &id, w.q.Rebind(query), reviewPK, row.SentenceID); err != nil {
			return uuid.Nil, "", fmt.Errorf("failed to look up sentence %q: %w", row.SentenceID, err)
		}
	}
	return id, outcome, nil
}

// Confidence is never available from CSV input, so any stored score is cleared.
const upsertPredictionSQL = `
	INSERT INTO model_predictions (
		id, sentence_pk, model_name, prediction_text, confidence_score, created_at, updated_at
	) VALUES (?, ?, ?, ?, NULL, ?, ?)
	ON CONFLICT (sentence_pk, model_name) DO UPDATE
	SET prediction_text = excluded.prediction_text,
	    confidence_score = NULL,
	    updated_at = excluded.updated_at
	WHERE model_predictions.prediction_text IS DISTINCT FROM excluded.prediction_text
	   OR model_predictions.confidence_score IS NOT NULL
	RETURNING id
`

func (w *reviewWriter) UpsertPrediction(ctx context.Context, sentencePK uuid.UUID, model models.ModelName, text string) (models.UpsertOutcome, error) {
	if !model.Valid() {
		return "", fmt.Errorf("unknown model %q", model)
	}
	newID := uuid.New()
	now := w.now()
	_, outcome, err := w.upsert(ctx, newID, upsertPredictionSQL, newID, sentencePK, string(model), text, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to upsert %s prediction: %w", model, err)
	}
	return outcome, nil
}

// upsert runs an INSERT ... ON CONFLICT ... RETURNING id statement. The returned id
// equals newID for an insert; no row comes back when the conflicting record already
// matched and the update was skipped.
func (w *reviewWriter) upsert(ctx context.Context, newID uuid.UUID, query string, args ...interface{}) (uuid.UUID, models.UpsertOutcome, error) {
	var id uuid.UUID
	err := sqlx.GetContext(ctx, w.q, &id, w.q.Rebind(query), args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return uuid.Nil, models.OutcomeUnchanged, nil
	case err != nil:
		return uuid.Nil, "", err
	case id == newID:
		return id, models.OutcomeCreated, nil
	default:
		return id, models.OutcomeUpdated, nil
	}
}

func (r *reviewRepository) GetReviewByReviewID(ctx context.Context, reviewID string) (*models.Review, error) {
	var review models.Review
	query := `SELECT id, review_id, review_text, created_at, updated_at FROM reviews WHERE review_id = ?`
	if err := r.db.GetContext(ctx, &review, r.db.Rebind(query), reviewID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) GetSentence(ctx context.Context, reviewID, sentenceID string) (*models.ReviewSentence, error) {
	var sentence models.ReviewSentence
	query := `
		SELECT s.id, s.review_pk, s.sentence_id, s.review_sentence,
		       s.gpt4_prediction, s.gemini_prediction, s.perplexity_prediction,
		       s.created_at, s.updated_at
		FROM review_sentences s
		JOIN reviews r ON r.id = s.review_pk
		WHERE r.review_id = ? AND s.sentence_id = ?
	`
	if err := r.db.GetContext(ctx, &sentence, r.db.Rebind(query), reviewID, sentenceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sentence, nil
}

func (r *reviewRepository) GetPredictions(ctx context.Context, sentencePK uuid.UUID) ([]*models.ModelPrediction, error) {
	var predictions []*models.ModelPrediction
	query := `
		SELECT id, sentence_pk, model_name, prediction_text, confidence_score, created_at, updated_at
		FROM model_predictions
		WHERE sentence_pk = ?
		ORDER BY model_name
	`
	if err := r.db.SelectContext(ctx, &predictions, r.db.Rebind(query), sentencePK); err != nil {
		return nil, err
	}
	return predictions, nil
}

// GetDatasetStats returns entity counts, with predictions broken down by model.
func (r *reviewRepository) GetDatasetStats(ctx context.Context) (*DatasetStats, error) {
	stats := &DatasetStats{}
	query := `
		SELECT
			(SELECT COUNT(*) FROM reviews) AS reviews,
			(SELECT COUNT(*) FROM review_sentences) AS sentences,
			(SELECT COUNT(*) FROM model_predictions) AS predictions
	`
	if err := r.db.GetContext(ctx, stats, query); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT model_name, COUNT(*) FROM model_predictions GROUP BY model_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats.PredictionsByModel = make(map[string]int)
	for rows.Next() {
		var model string
		var count int
		if err := rows.Scan(&model, &count); err != nil {
			return nil, err
		}
		stats.PredictionsByModel[model] = count
	}
	return stats, rows.Err()
}

// DeleteEmptySentences removes sentences without any raw prediction. With dryRun the
// matching sentences are only counted.
func (r *reviewRepository) DeleteEmptySentences(ctx context.Context, dryRun bool) (int, error) {
	const where = `gpt4_prediction IS NULL AND gemini_prediction IS NULL AND perplexity_prediction IS NULL`

	if dryRun {
		var count int
		if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM review_sentences WHERE `+where); err != nil {
			return 0, err
		}
		return count, nil
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM review_sentences WHERE `+where)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	r.logger.Info("Deleted empty sentences", zap.Int64("count", affected))
	return int(affected), nil
}
