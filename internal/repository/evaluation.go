package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sentiment-eval/internal/models"
)

// EvaluationRepository reads human evaluations for export. Evaluations are written by
// the evaluation frontend; Create exists for seeding.
type EvaluationRepository interface {
	Create(ctx context.Context, e *models.HumanEvaluation) error
	ListForExport(ctx context.Context) ([]models.EvaluationExportRow, error)
}

type evaluationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *sqlx.DB, logger *zap.Logger) EvaluationRepository {
	return &evaluationRepository{db: db, logger: logger}
}

func (r *evaluationRepository) Create(ctx context.Context, e *models.HumanEvaluation) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
		INSERT INTO human_evaluations (
			id, sentence_pk, evaluator_id, best_model, alternative_solution, notes,
			evaluation_time_seconds, created_at, updated_at
		) VALUES (
			:id, :sentence_pk, :evaluator_id, :best_model, :alternative_solution, :notes,
			:evaluation_time_seconds, :created_at, :updated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}
	return nil
}

// ListForExport returns every evaluation joined with its sentence, review and evaluator.
func (r *evaluationRepository) ListForExport(ctx context.Context) ([]models.EvaluationExportRow, error) {
	var rows []models.EvaluationExportRow
	query := `
		SELECT
			s.sentence_id,
			rv.review_id,
			s.review_sentence,
			s.gpt4_prediction,
			s.gemini_prediction,
			s.perplexity_prediction,
			u.username AS evaluator,
			e.best_model,
			e.alternative_solution,
			e.notes,
			e.created_at AS evaluated_at
		FROM human_evaluations e
		JOIN review_sentences s ON s.id = e.sentence_pk
		JOIN reviews rv ON rv.id = s.review_pk
		JOIN users u ON u.id = e.evaluator_id
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("Failed to list evaluations for export", zap.Error(err))
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return rows, nil
}
