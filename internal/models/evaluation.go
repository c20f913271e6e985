package models

import (
	"time"

	"github.com/google/uuid"
)

// BestModelNone marks an evaluation where no model was acceptable and an alternative was given.
const BestModelNone = "none"

// HumanEvaluation is an evaluator's choice of the best prediction for a sentence.
type HumanEvaluation struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	SentencePK            uuid.UUID `db:"sentence_pk" json:"sentence"`
	EvaluatorID           uuid.UUID `db:"evaluator_id" json:"evaluator"`
	BestModel             string    `db:"best_model" json:"best_model"`
	AlternativeSolution   *string   `db:"alternative_solution" json:"alternative_solution"`
	Notes                 *string   `db:"notes" json:"notes"`
	EvaluationTimeSeconds *int      `db:"evaluation_time_seconds" json:"evaluation_time_seconds"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// EvaluationExportRow is one evaluation joined with its sentence, review and evaluator.
type EvaluationExportRow struct {
	SentenceID           string    `db:"sentence_id"`
	ReviewID             string    `db:"review_id"`
	ReviewSentence       string    `db:"review_sentence"`
	GPT4Prediction       *string   `db:"gpt4_prediction"`
	GeminiPrediction     *string   `db:"gemini_prediction"`
	PerplexityPrediction *string   `db:"perplexity_prediction"`
	Evaluator            string    `db:"evaluator"`
	BestModel            string    `db:"best_model"`
	AlternativeSolution  *string   `db:"alternative_solution"`
	Notes                *string   `db:"notes"`
	EvaluatedAt          time.Time `db:"evaluated_at"`
}
