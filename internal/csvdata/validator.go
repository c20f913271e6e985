package csvdata

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	sampleRows     = 5
	reportedSample = 3
	// prefixBytes bounds how much of the file is decoded to inspect the header and sample.
	prefixBytes = 64 << 10
)

// ValidationReport describes the structure of an export without processing it.
type ValidationReport struct {
	Valid          bool                `json:"valid"`
	Error          string              `json:"error,omitempty"`
	MissingColumns []string            `json:"missing_columns"`
	TotalColumns   int                 `json:"total_columns"`
	TotalRows      int                 `json:"total_rows"`
	SampleData     []map[string]string `json:"sample_data"`
	Columns        []string            `json:"columns"`
}

func invalidReport(err error) ValidationReport {
	return ValidationReport{
		Valid:          false,
		Error:          err.Error(),
		MissingColumns: []string{},
		SampleData:     []map[string]string{},
		Columns:        []string{},
	}
}

// Validate checks the export at path. It never fails: problems are reported in the
// returned report.
func Validate(path string) ValidationReport {
	file, err := os.Open(path)
	if err != nil {
		return invalidReport(err)
	}
	defer file.Close()

	return ValidateReader(file)
}

// ValidateReader checks the header and a few sample rows of an export, and counts its
// data lines. Only the first prefixBytes are decoded.
func ValidateReader(r io.ReadSeeker) ValidationReport {
	prefix := make([]byte, prefixBytes)
	n, err := io.ReadFull(r, prefix)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return invalidReport(err)
	}
	prefix = prefix[:n]
	if n == prefixBytes {
		// Cut back to a line boundary so no multi-byte character is split.
		if i := bytes.LastIndexByte(prefix, '\n'); i >= 0 {
			prefix = prefix[:i+1]
		}
	}

	text, _, err := decode(prefix)
	if err != nil {
		return invalidReport(err)
	}
	sample, err := parse(text, Delimiter, sampleRows)
	if err != nil {
		return invalidReport(err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return invalidReport(err)
	}
	lines, err := countLines(r)
	if err != nil {
		return invalidReport(err)
	}

	missing := MissingColumns(sample.Columns)
	rows := sample.Rows
	if len(rows) > reportedSample {
		rows = rows[:reportedSample]
	}
	sampleData := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(sample.Columns))
		for i, col := range sample.Columns {
			record[col] = row[i]
		}
		sampleData = append(sampleData, record)
	}

	totalRows := lines - 1
	if totalRows < 0 {
		totalRows = 0
	}

	return ValidationReport{
		Valid:          len(missing) == 0,
		MissingColumns: missing,
		TotalColumns:   len(sample.Columns),
		TotalRows:      totalRows,
		SampleData:     sampleData,
		Columns:        sample.Columns,
	}
}

// countLines counts newline-terminated lines, plus a final unterminated one.
func countLines(r io.Reader) (int, error) {
	buf := make([]byte, 32<<10)
	count := 0
	var last byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("count lines: %w", err)
		}
	}
	if last != 0 && last != '\n' {
		count++
	}
	return count, nil
}
