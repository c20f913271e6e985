// Package csvdata reads, validates and normalizes the semicolon-delimited review exports.
package csvdata

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Delimiter separates fields in review export files.
const Delimiter = ';'

// Column names of the review export. They are exact and case-sensitive.
const (
	ColReviewID       = "review_id"
	ColReviewText     = "review_text"
	ColReviewSentence = "review_sentence"
	ColGPT4           = "gpt4"
	ColGemini         = "Gemini flash 2.5"
	ColPerplexity     = "perplexity"
	ColSentenceID     = "sentence_id"
)

// RequiredColumns is the fixed column set every export must carry.
var RequiredColumns = []string{
	ColReviewID,
	ColReviewText,
	ColReviewSentence,
	ColGPT4,
	ColGemini,
	ColPerplexity,
	ColSentenceID,
}

// Table is a decoded delimited file: a header and rows padded to the header width.
type Table struct {
	Columns  []string
	Rows     [][]string
	Encoding string // encoding the file was decoded with; empty for tables built in memory
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// WriteCSV writes the header and rows as comma-separated CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// MissingColumns returns the required columns absent from columns, in required order.
func MissingColumns(columns []string) []string {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	missing := []string{}
	for _, c := range RequiredColumns {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
