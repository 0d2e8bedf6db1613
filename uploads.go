package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/importer"
	"github.com/mmdatafocus/leasing_backend/leaseimport"
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"github.com/sirupsen/logrus"
)

type uploadImportResponse struct {
	RunId     int    `json:"runId"`
	Status    string `json:"status"`
	ObjectKey string `json:"objectKey"`
	TotalRows int    `json:"totalRows"`
}

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

// replaced in tests
var (
	uploadSource = utils.UploadFileToGCS
	deleteSource = utils.DeleteFileFromGCS
	enqueueRun   = leaseimport.EnqueueRun
)

// uploadImportHandler stores an uploaded .xlsx/.csv source in GCS and queues an import run for it.
func uploadImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		requestID := requestIDFromHeaders(c)

		tenantId, err := leaseimport.ResolveTenantID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSizeBytes+1024*1024)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		format, err := importer.FormatFromFilename(fileHeader.Filename)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		opts, err := uploadOptions(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := leaseimport.ValidateOptions(opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import options", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read file"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read file"})
			return
		}
		if _, err := utils.DetectSpreadsheetMime(fileHeader.Filename, data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// parse once up front so an unreadable sheet is rejected before it is stored
		rows, err := importer.ReadSheet(bytes.NewReader(data), format)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unable to parse file: %v", err)})
			return
		}
		if len(rows) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": importer.ErrEmptyBatch.Error()})
			return
		}
		if limit := config.ImportMaxRows(); limit > 0 && len(rows) > limit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: %d rows, limit %d", importer.ErrTooManyRows, len(rows), limit)})
			return
		}

		ctx := utils.SetTenantIdInContext(c.Request.Context(), tenantId)
		objectKey := importObjectKey(tenantId, fileHeader.Filename)
		if err := uploadSource(ctx, objectKey, bytes.NewReader(data)); err != nil {
			logUploadError(logger, err, objectKey, requestID)
			message := "failed to store file"
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
				message = fmt.Sprintf("failed to store file: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": message})
			return
		}

		username, _ := utils.GetUsernameFromContext(ctx)
		run := leaseimport.NewRun(tenantId, username, opts)
		run.Source = sourceForFormat(format)
		run.SourceObjectKey = &objectKey
		if err := enqueueRun(ctx, run); err != nil {
			logUploadError(logger, err, objectKey, requestID)
			if run.ID == 0 {
				cleanupSource(ctx, objectKey, requestID)
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		logger.WithFields(logrus.Fields{
			"tenant_id":  tenantId,
			"run_id":     run.ID,
			"rows":       len(rows),
			"size":       fileHeader.Size,
			"object_key": objectKey,
		}).Info("[import.upload]")

		c.JSON(http.StatusAccepted, uploadImportResponse{
			RunId:     run.ID,
			Status:    run.Status,
			ObjectKey: objectKey,
			TotalRows: len(rows),
		})
	}
}

func uploadOptions(c *gin.Context) (leaseimport.RunOptions, error) {
	opts := leaseimport.RunOptions{
		Label:    strings.TrimSpace(c.PostForm("label")),
		Strategy: strings.TrimSpace(c.PostForm("strategy")),
	}
	if v := strings.TrimSpace(c.PostForm("billing_entity_id")); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid billing_entity_id %q", v)
		}
		opts.BillingEntityId = id
	}
	if v := strings.TrimSpace(c.PostForm("compensate")); v != "" {
		compensate, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid compensate %q", v)
		}
		opts.Compensate = &compensate
	}
	return opts, nil
}

func importObjectKey(tenantId, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join("imports", sanitizeSegment(strings.ToLower(tenantId)), uuid.New().String()+ext)
}

func sourceForFormat(format importer.SheetFormat) string {
	if format == importer.FormatCsv {
		return models.ImportSourceCsv
	}
	return models.ImportSourceXlsx
}

func cleanupSource(ctx context.Context, objectKey, requestID string) {
	if err := deleteSource(ctx, objectKey); err != nil {
		logUploadError(config.GetLogger(), err, objectKey, requestID)
	}
}

func sanitizeSegment(input string) string {
	var out strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func logUploadError(logger *logrus.Logger, err error, objectKey string, requestID string) {
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"object_key": objectKey,
		"request_id": requestID,
	}).Error("[import.upload.error]")
}

func requestIDFromHeaders(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Correlation-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return fmt.Sprintf("upload-%d", time.Now().UnixNano())
}
