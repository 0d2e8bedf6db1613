package leaseimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/importer"
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var errRunAlreadyClaimed = errors.New("import run already claimed")

// processImportRun executes a queued run delivered through Pub/Sub. Runs that are gone or
// already processed are acknowledged without work.
func processImportRun(ctx context.Context, payload ImportRunPayload) error {
	run, err := models.GetImportRun(ctx, payload.TenantId, payload.RunId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if models.IsTerminalImportRunStatus(run.Status) {
		return nil
	}

	unlock, err := tenantLock(ctx, run.TenantId)
	if err != nil {
		return err
	}
	defer unlock()

	rows, err := loadRunRows(ctx, run)
	if err != nil {
		return failRun(ctx, run, fmt.Errorf("load rows: %w", err))
	}

	_, err = ExecuteRun(ctx, run, rows, nil)
	if errors.Is(err, errRunAlreadyClaimed) {
		return nil
	}
	return err
}

// loadRunRows returns the rows of a run from its stored JSON payload or its uploaded sheet.
func loadRunRows(ctx context.Context, run *models.ImportRun) ([]importer.ImportRow, error) {
	if run.SourceObjectKey != nil && *run.SourceObjectKey != "" {
		key := *run.SourceObjectKey
		format, err := importer.FormatFromFilename(key)
		if err != nil {
			return nil, err
		}
		data, err := utils.ReadFileFromGCS(ctx, key)
		if err != nil {
			return nil, err
		}
		return importer.ReadSheet(bytes.NewReader(data), format)
	}
	var rows []importer.ImportRow
	if len(run.RowsJSON) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(run.RowsJSON, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteRun claims a queued run, imports its rows and persists the outcome. The caller
// holds the tenant import lock. The returned report is nil only when the run could not
// be claimed. progress may be nil.
func ExecuteRun(ctx context.Context, run *models.ImportRun, rows []importer.ImportRow, progress func(done, total int)) (*importer.ImportReport, error) {
	logger := config.GetLogger()
	startedAt := time.Now()
	claimed, err := models.MarkImportRunRunning(ctx, run, startedAt)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errRunAlreadyClaimed
	}

	report, runErr := runEngine(ctx, run, rows, progress)
	if report == nil {
		report = rejectedReport(len(rows), runErr)
	}

	finishedAt := time.Now()
	applyReport(run, report, runErr)
	run.StartedAt = &startedAt
	run.FinishedAt = &finishedAt
	run.DurationMs = finishedAt.Sub(startedAt).Milliseconds()

	// finish even when the caller has gone away
	if err := models.FinishImportRun(context.WithoutCancel(ctx), run, runErrors(report, rows)); err != nil {
		config.LogError(logger, "leaseimport", "ExecuteRun", "finish import run", run.ID, err)
		return report, err
	}

	logger.WithFields(logrus.Fields{
		"module":      "leaseimport",
		"run_id":      run.ID,
		"tenant_id":   run.TenantId,
		"status":      run.Status,
		"errors":      run.ErrorCount,
		"duration_ms": run.DurationMs,
	}).Info("import run finished")
	return report, runErr
}

func runEngine(ctx context.Context, run *models.ImportRun, rows []importer.ImportRow, progress func(done, total int)) (*importer.ImportReport, error) {
	matcher, err := importer.MatcherFor(run.MatchStrategy)
	if err != nil {
		return nil, err
	}
	opts := importer.DefaultOptions()
	opts.Matcher = matcher
	opts.Compensate = run.Compensate
	opts.Progress = progress

	engine, err := importer.NewEngine(importer.NewGormStore(), opts)
	if err != nil {
		return nil, err
	}
	runId := run.ID
	return engine.Run(ctx, rows, importer.BatchParams{
		TenantId:        run.TenantId,
		BillingEntityId: run.BillingEntityId,
		Label:           run.Label,
		ImportRunId:     &runId,
	})
}

// rejectedReport describes a batch refused before any row was processed.
func rejectedReport(totalRows int, err error) *importer.ImportReport {
	msg := "import rejected"
	if err != nil {
		msg = err.Error()
	}
	return &importer.ImportReport{
		TotalRows: totalRows,
		Errors:    []importer.ReportError{{Row: 0, Message: msg}},
	}
}

func applyReport(run *models.ImportRun, report *importer.ImportReport, runErr error) {
	run.TotalRows = report.TotalRows
	run.ClientsCreated = report.ClientsCreated
	run.ClientsLinked = report.ClientsLinked
	run.OffersCreated = report.OffersCreated
	run.ContractsCreated = report.ContractsCreated
	run.ErrorCount = len(report.Errors)
	run.Status = runStatus(report, runErr)
}

func runStatus(report *importer.ImportReport, runErr error) string {
	switch {
	case runErr != nil:
		return models.ImportRunStatusFailed
	case len(report.Errors) == 0:
		return models.ImportRunStatusSuccess
	case len(report.Errors) >= report.TotalRows:
		return models.ImportRunStatusFailed
	default:
		return models.ImportRunStatusPartial
	}
}

// runErrors maps report errors to persisted rows, keeping the offending input row as payload.
func runErrors(report *importer.ImportReport, rows []importer.ImportRow) []models.ImportRunError {
	out := make([]models.ImportRunError, 0, len(report.Errors))
	for _, e := range report.Errors {
		item := models.ImportRunError{
			Row:     e.Row,
			Step:    string(e.Step),
			Message: e.Message,
		}
		if e.Row > 0 && e.Row <= len(rows) {
			if data, err := json.Marshal(rows[e.Row-1]); err == nil {
				item.PayloadJSON = data
			}
		}
		out = append(out, item)
	}
	return out
}

// failRun closes a run that could not be started, recording the cause as a batch error.
func failRun(ctx context.Context, run *models.ImportRun, cause error) error {
	now := time.Now()
	run.Status = models.ImportRunStatusFailed
	run.ErrorCount = 1
	run.StartedAt = &now
	run.FinishedAt = &now
	errs := []models.ImportRunError{{Row: 0, Message: cause.Error()}}
	if err := models.FinishImportRun(context.WithoutCancel(ctx), run, errs); err != nil {
		return err
	}
	config.LogError(config.GetLogger(), "leaseimport", "processImportRun", "import run failed", run.ID, cause)
	return nil
}
