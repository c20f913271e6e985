package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sentiment-eval/internal/middleware"
	"sentiment-eval/internal/models"
	"sentiment-eval/internal/repository"
	"sentiment-eval/internal/service"
)

const multipartOverhead = 1 << 20

// DataHandler serves CSV upload, validation and export.
type DataHandler struct {
	uploads        *service.UploadService
	exporter       *service.DataExporter
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewDataHandler creates a new data handler.
func NewDataHandler(uploads *service.UploadService, exporter *service.DataExporter, logger *zap.Logger, maxUploadBytes int64) *DataHandler {
	return &DataHandler{
		uploads:        uploads,
		exporter:       exporter,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

type uploadSummary struct {
	TotalRows      int `json:"total_rows"`
	SuccessfulRows int `json:"successful_rows"`
	FailedRows     int `json:"failed_rows"`
}

type uploadLogResponse struct {
	*models.DataUploadLog
	SuccessRate float64 `json:"success_rate"`
}

// UploadCSV stages the uploaded file and ingests it.
func (h *DataHandler) UploadCSV(c *gin.Context) {
	path, file, cleanup, ok := h.stageUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	result, err := h.uploads.Ingest(c.Request.Context(), service.UploadInput{
		Path:       path,
		Filename:   file.Filename,
		FileSize:   file.Size,
		UploadedBy: c.MustGet(middleware.ContextUserID).(uuid.UUID),
	})
	if err != nil {
		h.logger.Error("CSV upload error", zap.Error(err), zap.String("filename", file.Filename))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	if !result.Success {
		resp := gin.H{"error": result.Error, "upload_log_id": result.UploadID}
		if len(result.MissingColumns) > 0 {
			resp["missing_columns"] = result.MissingColumns
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":       "CSV processed successfully",
		"upload_log_id": result.UploadID,
		"summary": uploadSummary{
			TotalRows:      result.TotalRows,
			SuccessfulRows: result.SuccessfulRows,
			FailedRows:     result.FailedRows,
		},
	})
}

// ValidateCSV reports on the structure of the uploaded file without storing anything.
func (h *DataHandler) ValidateCSV(c *gin.Context) {
	path, _, cleanup, ok := h.stageUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	c.JSON(http.StatusOK, h.uploads.Validate(path))
}

// ExportEvaluations streams all evaluations as a CSV attachment.
func (h *DataHandler) ExportEvaluations(c *gin.Context) {
	table, err := h.exporter.ExportEvaluations(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to export evaluations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+service.ExportFilename+`"`)
	c.Status(http.StatusOK)

	if err := table.WriteCSV(c.Writer); err != nil {
		h.logger.Error("Failed to write export", zap.Error(err))
	}
}

// GetUploadLog returns an upload's ledger record, for polling progress.
func (h *DataHandler) GetUploadLog(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}

	log, err := h.uploads.GetUpload(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}
		h.logger.Error("Failed to get upload log", zap.Error(err), zap.String("upload_id", id.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get upload log"})
		return
	}

	c.JSON(http.StatusOK, uploadLogResponse{DataUploadLog: log, SuccessRate: log.SuccessRate()})
}

// HealthCheck returns service health.
func (h *DataHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sentiment-eval",
	})
}

// stageUpload copies the multipart "file" field to a temporary directory. On failure
// it writes the error response and returns ok=false.
func (h *DataHandler) stageUpload(c *gin.Context) (path string, file *multipart.FileHeader, cleanup func(), ok bool) {
	// The multipart envelope is allowed some room beyond the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	tooLargeMsg := fmt.Sprintf("File size cannot exceed %dMB", h.maxUploadBytes>>20)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMsg})
			return "", nil, nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", nil, nil, false
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV file"})
		return "", nil, nil, false
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLargeMsg})
		return "", nil, nil, false
	}

	dir, err := os.MkdirTemp("", "csv-upload-*")
	if err != nil {
		h.logger.Error("Failed to create staging directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return "", nil, nil, false
	}
	cleanup = func() {
		if err := os.RemoveAll(dir); err != nil {
			h.logger.Warn("Failed to remove staged upload", zap.Error(err), zap.String("dir", dir))
		}
	}

	path = filepath.Join(dir, "upload.csv")
	if err := c.SaveUploadedFile(file, path); err != nil {
		cleanup()
		h.logger.Error("Failed to stage upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return "", nil, nil, false
	}
	return path, file, cleanup, true
}
