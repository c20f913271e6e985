package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UploadStatus is the lifecycle state of a DataUploadLog.
type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// CanTransition reports whether the ledger may move from s to next.
func (s UploadStatus) CanTransition(next UploadStatus) bool {
	switch s {
	case UploadPending:
		return next == UploadProcessing || next == UploadFailed
	case UploadProcessing:
		return next == UploadCompleted || next == UploadFailed
	}
	return false
}

// DataUploadLog records one ingestion run.
type DataUploadLog struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	UploadedBy     uuid.UUID     `db:"uploaded_by" json:"uploaded_by"`
	Filename       string        `db:"filename" json:"filename"`
	FileSizeBytes  int64         `db:"file_size_bytes" json:"file_size_bytes"`
	Status         UploadStatus  `db:"status" json:"status"`
	TotalRows      int           `db:"total_rows" json:"total_rows"`
	SuccessfulRows int           `db:"successful_rows" json:"successful_rows"`
	FailedRows     int           `db:"failed_rows" json:"failed_rows"`
	ErrorMessage   *string       `db:"error_message" json:"error_message"`
	ProcessingLog  ProcessingLog `db:"processing_log" json:"processing_log"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time    `db:"completed_at" json:"completed_at"`
}

// SuccessRate is the percentage of successful rows, rounded to two decimals.
func (l *DataUploadLog) SuccessRate() float64 {
	if l.TotalRows == 0 {
		return 0
	}
	rate := float64(l.SuccessfulRows) / float64(l.TotalRows) * 100
	return float64(int64(rate*100+0.5)) / 100
}

// LogEntry is a single timestamped processing message.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// LogSummary closes the processing log of a completed run.
type LogSummary struct {
	TotalRows      int            `json:"total_rows"`
	SuccessfulRows int            `json:"successful_rows"`
	FailedRows     int            `json:"failed_rows"`
	DroppedRows    int            `json:"dropped_rows"`
	Outcomes       map[string]int `json:"outcomes,omitempty"`
}

// ProcessingLog is the structured log persisted with a DataUploadLog. Summary is set on
// completion, Error on failure.
type ProcessingLog struct {
	Logs    []LogEntry  `json:"logs"`
	Summary *LogSummary `json:"summary,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Value stores the log as JSON text.
func (p ProcessingLog) Value() (driver.Value, error) {
	if p.Logs == nil {
		p.Logs = []LogEntry{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode processing log: %w", err)
	}
	return string(b), nil
}

// Scan decodes the JSON text written by Value.
func (p *ProcessingLog) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = ProcessingLog{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("unsupported processing log type")
	}
	if len(raw) == 0 {
		*p = ProcessingLog{}
		return nil
	}
	return json.Unmarshal(raw, p)
}
