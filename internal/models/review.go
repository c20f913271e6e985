package models

import (
	"time"

	"github.com/google/uuid"
)

// ModelName identifies one of the language models whose predictions are ingested.
type ModelName string

const (
	ModelGPT4       ModelName = "gpt4"
	ModelGemini     ModelName = "gemini"
	ModelPerplexity ModelName = "perplexity"
)

// Models lists the prediction models in the order they are reconciled.
var Models = []ModelName{ModelGPT4, ModelGemini, ModelPerplexity}

// Valid reports whether m is one of the known models.
func (m ModelName) Valid() bool {
	switch m {
	case ModelGPT4, ModelGemini, ModelPerplexity:
		return true
	}
	return false
}

// Review is a unit of source text, keyed by its external review_id.
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ReviewID   string    `db:"review_id" json:"review_id"`
	ReviewText string    `db:"review_text" json:"review_text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewSentence is one sentence of a Review with the raw prediction text of each model.
type ReviewSentence struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	ReviewPK             uuid.UUID `db:"review_pk" json:"review"`
	SentenceID           string    `db:"sentence_id" json:"sentence_id"`
	ReviewSentence       string    `db:"review_sentence" json:"review_sentence"`
	GPT4Prediction       *string   `db:"gpt4_prediction" json:"gpt4_prediction"`
	GeminiPrediction     *string   `db:"gemini_prediction" json:"gemini_prediction"`
	PerplexityPrediction *string   `db:"perplexity_prediction" json:"perplexity_prediction"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Prediction returns the raw prediction stored on the sentence for model m.
func (s *ReviewSentence) Prediction(m ModelName) *string {
	switch m {
	case ModelGPT4:
		return s.GPT4Prediction
	case ModelGemini:
		return s.GeminiPrediction
	case ModelPerplexity:
		return s.PerplexityPrediction
	}
	return nil
}

// ModelPrediction is the normalized per-(sentence, model) prediction record.
type ModelPrediction struct {
	ID              uuid.UUID `db:"id" json:"id"`
	SentencePK      uuid.UUID `db:"sentence_pk" json:"sentence"`
	ModelName       ModelName `db:"model_name" json:"model_name"`
	PredictionText  string    `db:"prediction_text" json:"prediction_text"`
	ConfidenceScore *float64  `db:"confidence_score" json:"confidence_score"` // never set by CSV ingestion
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CSVRow is one normalized input row. Optional fields are nil when the source cell
// was empty or held a sentinel such as "nan" or "null".
type CSVRow struct {
	Line                 int // 1-based data row in the source file, header excluded
	ReviewID             string
	ReviewText           *string
	ReviewSentence       string
	SentenceID           string
	GPT4Prediction       *string
	GeminiPrediction     *string
	PerplexityPrediction *string
}

// Prediction returns the row's prediction text for model m.
func (r *CSVRow) Prediction(m ModelName) *string {
	switch m {
	case ModelGPT4:
		return r.GPT4Prediction
	case ModelGemini:
		return r.GeminiPrediction
	case ModelPerplexity:
		return r.PerplexityPrediction
	}
	return nil
}

// UpsertOutcome describes what an upsert did to the stored record.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)
