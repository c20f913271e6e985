package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sentiment-eval/internal/csvdata"
	"sentiment-eval/internal/repository"
)

// ExportFilename is the suggested name of the evaluation export file.
const ExportFilename = "evaluations_export.csv"

// ExportColumns is the fixed column order of the evaluation export.
var ExportColumns = []string{
	"sentence_id",
	"review_id",
	"review_sentence",
	"gpt4_prediction",
	"gemini_prediction",
	"perplexity_prediction",
	"evaluator",
	"best_model",
	"alternative_solution",
	"notes",
	"evaluation_date",
}

// DataExporter flattens human evaluations into a table.
type DataExporter struct {
	evaluationRepo repository.EvaluationRepository
	logger         *zap.Logger
}

// NewDataExporter creates a new exporter.
func NewDataExporter(evaluationRepo repository.EvaluationRepository, logger *zap.Logger) *DataExporter {
	return &DataExporter{evaluationRepo: evaluationRepo, logger: logger}
}

// ExportEvaluations returns one row per evaluation. Absent optional values are empty cells.
func (e *DataExporter) ExportEvaluations(ctx context.Context) (*csvdata.Table, error) {
	rows, err := e.evaluationRepo.ListForExport(ctx)
	if err != nil {
		return nil, err
	}

	table := &csvdata.Table{
		Columns: ExportColumns,
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			r.SentenceID,
			r.ReviewID,
			r.ReviewSentence,
			deref(r.GPT4Prediction),
			deref(r.GeminiPrediction),
			deref(r.PerplexityPrediction),
			r.Evaluator,
			r.BestModel,
			deref(r.AlternativeSolution),
			deref(r.Notes),
			r.EvaluatedAt.Format(time.RFC3339),
		})
	}

	e.logger.Info("Exported evaluations", zap.Int("count", len(table.Rows)))
	return table, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
