package leaseimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/importer"
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"gorm.io/gorm"
)

var validate = validator.New()

var errUnauthorized = errors.New("unauthorized")

// CreateImportHandler imports a JSON batch. Batches run inline unless async is set, in
// which case the run is queued and processed by the push worker.
func CreateImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, err := ResolveTenantID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		opts := req.Options()
		if err := ValidateOptions(opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import options", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		if err := checkBatchSize(len(req.Rows)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rowsJSON, err := json.Marshal(req.Rows)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rows"})
			return
		}

		ctx := utils.SetTenantIdInContext(c.Request.Context(), tenantId)
		username, _ := utils.GetUsernameFromContext(ctx)
		run := NewRun(tenantId, username, opts)
		run.Source = models.ImportSourceJSON
		run.RowsJSON = rowsJSON

		if req.Async {
			if err := EnqueueRun(ctx, run); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, AcceptedResponse{RunId: run.ID, Status: run.Status})
			return
		}

		unlock, err := tenantLock(ctx, tenantId)
		if errors.Is(err, utils.ErrLockNotObtained) {
			c.JSON(http.StatusConflict, gin.H{"error": "an import is already running for this tenant"})
			return
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		defer unlock()

		if err := models.CreateImportRun(ctx, run); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		report, err := ExecuteRun(ctx, run, req.Rows, nil)
		c.Header("X-Import-Run-Id", strconv.Itoa(run.ID))
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("billing entity %d not found", opts.BillingEntityId)})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, report)
		}
	}
}

func ListRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, err := ResolveTenantID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetTenantIdInContext(c.Request.Context(), tenantId)
		runs, err := models.ListImportRuns(ctx, tenantId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]RunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, RunHistoryResponse{Items: items})
	}
}

func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, run, ok := loadRunFromRequest(c)
		if !ok {
			return
		}

		errs, err := models.GetImportRunErrors(ctx, run.TenantId, run.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, RunDetailResponse{
			RunResponse: mapRunToResponse(*run),
			Errors:      mapErrors(errs),
		})
	}
}

func RunReportXlsxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, run, ok := loadRunFromRequest(c)
		if !ok {
			return
		}
		if !models.IsTerminalImportRunStatus(run.Status) {
			c.JSON(http.StatusConflict, gin.H{"error": "import run is not finished"})
			return
		}

		errs, err := models.GetImportRunErrors(ctx, run.TenantId, run.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var buf bytes.Buffer
		if err := importer.WriteReportXlsx(&buf, reportFromRun(*run, errs)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="import-run-%d.xlsx"`, run.ID))
		c.Data(http.StatusOK, utils.MimeXlsx, buf.Bytes())
	}
}

// RetryRunHandler queues a new run over the same source as a finished one.
func RetryRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, run, ok := loadRunFromRequest(c)
		if !ok {
			return
		}
		if !models.IsTerminalImportRunStatus(run.Status) {
			c.JSON(http.StatusConflict, gin.H{"error": "import run is not finished"})
			return
		}
		if !hasStoredRows(run) {
			c.JSON(http.StatusConflict, gin.H{"error": "import run has no stored rows to retry"})
			return
		}

		username, _ := utils.GetUsernameFromContext(ctx)
		parentId := run.ID
		newRun := &models.ImportRun{
			TenantId:        run.TenantId,
			BillingEntityId: run.BillingEntityId,
			Label:           run.Label,
			Source:          run.Source,
			SourceObjectKey: run.SourceObjectKey,
			RowsJSON:        run.RowsJSON,
			Status:          models.ImportRunStatusQueued,
			TriggeredBy:     models.ImportTriggeredRetry,
			RequestedBy:     username,
			MatchStrategy:   run.MatchStrategy,
			Compensate:      run.Compensate,
			ParentRunId:     &parentId,
		}
		if err := EnqueueRun(ctx, newRun); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, AcceptedResponse{RunId: newRun.ID, Status: newRun.Status})
	}
}

func hasStoredRows(run *models.ImportRun) bool {
	if run.SourceObjectKey != nil && *run.SourceObjectKey != "" {
		return true
	}
	return len(run.RowsJSON) > 0
}

// NewRun builds a queued run, filling unset options from the import feature flags.
func NewRun(tenantId, requestedBy string, opts RunOptions) *models.ImportRun {
	strategy := strings.TrimSpace(opts.Strategy)
	if strategy == "" {
		strategy = config.ImportMatchStrategy()
	}
	compensate := config.ImportCompensatePartial()
	if opts.Compensate != nil {
		compensate = *opts.Compensate
	}
	return &models.ImportRun{
		TenantId:        tenantId,
		BillingEntityId: opts.BillingEntityId,
		Label:           strings.TrimSpace(opts.Label),
		Status:          models.ImportRunStatusQueued,
		TriggeredBy:     models.ImportTriggeredManual,
		RequestedBy:     requestedBy,
		MatchStrategy:   strategy,
		Compensate:      compensate,
	}
}

// ValidateOptions checks run options received from a form or request body.
func ValidateOptions(opts RunOptions) error {
	return validate.Struct(opts)
}

// EnqueueRun persists a queued run and publishes it for the push worker. A run that
// cannot be published is closed as failed.
func EnqueueRun(ctx context.Context, run *models.ImportRun) error {
	if err := models.CreateImportRun(ctx, run); err != nil {
		return err
	}
	if err := publishRun(ctx, run.ID, run.TenantId); err != nil {
		err = fmt.Errorf("publish import run: %w", err)
		if ferr := failRun(ctx, run, err); ferr != nil {
			config.LogError(config.GetLogger(), "leaseimport", "EnqueueRun", "fail unpublished run", run.ID, ferr)
		}
		return err
	}
	return nil
}

func checkBatchSize(n int) error {
	if n == 0 {
		return importer.ErrEmptyBatch
	}
	if limit := config.ImportMaxRows(); limit > 0 && n > limit {
		return fmt.Errorf("%w: %d rows, limit %d", importer.ErrTooManyRows, n, limit)
	}
	return nil
}

// loadRunFromRequest resolves the tenant and the :id run, answering the error itself when
// either is missing.
func loadRunFromRequest(c *gin.Context) (context.Context, *models.ImportRun, bool) {
	tenantId, err := ResolveTenantID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, nil, false
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return nil, nil, false
	}

	ctx := utils.SetTenantIdInContext(c.Request.Context(), tenantId)
	run, err := models.GetImportRun(ctx, tenantId, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return ctx, run, true
}

// ResolveTenantID returns the tenant a request acts for. Admins may act for another tenant
// through the X-Tenant-Id header.
func ResolveTenantID(c *gin.Context) (string, error) {
	ctx := c.Request.Context()
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || strings.TrimSpace(username) == "" {
		return "", errUnauthorized
	}

	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	tenantId = strings.TrimSpace(tenantId)
	if requested := strings.TrimSpace(c.GetHeader("X-Tenant-Id")); requested != "" {
		if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin || requested == tenantId {
			return requested, nil
		}
		return "", errUnauthorized
	}
	if tenantId == "" {
		return "", errors.New("tenant_id is required")
	}
	return tenantId, nil
}
