package csvdata

import (
	"strings"

	"sentiment-eval/internal/models"
)

// EssentialColumns must hold a value for a row to be kept.
var EssentialColumns = []string{ColReviewID, ColReviewSentence, ColSentenceID}

// cleanValue trims s and maps empty and "nan"/"null" sentinels to nil.
func cleanValue(s string) *string {
	v := strings.TrimSpace(s)
	if v == "" || strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

// Normalize converts the table into typed rows. Rows missing any essential column are
// dropped; the number dropped is returned alongside the kept rows. Line numbers refer
// to the original data row so errors can be traced back to the file.
func Normalize(t *Table) ([]models.CSVRow, int) {
	idx := make(map[string]int, len(RequiredColumns))
	for _, col := range RequiredColumns {
		idx[col] = t.Index(col)
	}
	cell := func(record []string, col string) *string {
		i := idx[col]
		if i < 0 || i >= len(record) {
			return nil
		}
		return cleanValue(record[i])
	}

	rows := make([]models.CSVRow, 0, len(t.Rows))
	dropped := 0
	for n, record := range t.Rows {
		reviewID := cell(record, ColReviewID)
		sentence := cell(record, ColReviewSentence)
		sentenceID := cell(record, ColSentenceID)
		if reviewID == nil || sentence == nil || sentenceID == nil {
			dropped++
			continue
		}

		rows = append(rows, models.CSVRow{
			Line:                 n + 1,
			ReviewID:             *reviewID,
			ReviewText:           cell(record, ColReviewText),
			ReviewSentence:       *sentence,
			SentenceID:           *sentenceID,
			GPT4Prediction:       cell(record, ColGPT4),
			GeminiPrediction:     cell(record, ColGemini),
			PerplexityPrediction: cell(record, ColPerplexity),
		})
	}

	return rows, dropped
}
