package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"gorm.io/gorm"
)

// ImportRun records one execution of a bulk client/offer/contract import.
type ImportRun struct {
	ID               int        `gorm:"primary_key" json:"id"`
	TenantId         string     `gorm:"index;size:64;not null" json:"tenant_id"`
	BillingEntityId  int        `gorm:"index;not null" json:"billing_entity_id"`
	Label            string     `gorm:"size:100" json:"label"`
	Source           string     `gorm:"size:20;not null" json:"source"`
	SourceObjectKey  *string    `gorm:"size:512" json:"source_object_key"`
	RowsJSON         []byte     `gorm:"type:json" json:"-"`
	Status           string     `gorm:"size:20;not null;index" json:"status"`
	TriggeredBy      string     `gorm:"size:20" json:"triggered_by"`
	RequestedBy      string     `gorm:"size:100" json:"requested_by"`
	MatchStrategy    string     `gorm:"size:20" json:"match_strategy"`
	Compensate       bool       `gorm:"default:false" json:"compensate"`
	TotalRows        int        `json:"total_rows"`
	ClientsCreated   int        `json:"clients_created"`
	ClientsLinked    int        `json:"clients_linked"`
	OffersCreated    int        `json:"offers_created"`
	ContractsCreated int        `json:"contracts_created"`
	ErrorCount       int        `json:"error_count"`
	ParentRunId      *int       `gorm:"index" json:"parent_run_id"`
	StartedAt        *time.Time `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	DurationMs       int64      `json:"duration_ms"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type ImportRunError struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ImportRunId int       `gorm:"index;not null" json:"import_run_id"`
	TenantId    string    `gorm:"index;size:64;not null" json:"tenant_id"`
	Row         int       `gorm:"column:row_no;not null" json:"row"`
	Step        string    `gorm:"size:20" json:"step"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateImportRun(ctx context.Context, run *ImportRun) error {
	if run.TenantId == "" {
		return errors.New("tenant id is required")
	}
	if run.Status == "" {
		run.Status = ImportRunStatusQueued
	}
	return config.GetDB().WithContext(ctx).Create(run).Error
}

func GetImportRun(ctx context.Context, tenantId string, id int) (*ImportRun, error) {
	var run ImportRun
	err := config.GetDB().WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantId).
		Take(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func ListImportRuns(ctx context.Context, tenantId string, limit int) ([]ImportRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []ImportRun
	err := config.GetDB().WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Order("id desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func GetImportRunErrors(ctx context.Context, tenantId string, runId int) ([]ImportRunError, error) {
	var errs []ImportRunError
	err := config.GetDB().WithContext(ctx).
		Where("import_run_id = ? AND tenant_id = ?", runId, tenantId).
		Order("row_no, id").
		Find(&errs).Error
	if err != nil {
		return nil, err
	}
	return errs, nil
}

// MarkImportRunRunning moves a queued run to running. It returns false when the run
// was already claimed or finished.
func MarkImportRunRunning(ctx context.Context, run *ImportRun, startedAt time.Time) (bool, error) {
	res := config.GetDB().WithContext(ctx).
		Model(&ImportRun{}).
		Where("id = ? AND tenant_id = ? AND status = ?", run.ID, run.TenantId, ImportRunStatusQueued).
		Updates(map[string]interface{}{
			"status":     ImportRunStatusRunning,
			"started_at": startedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	run.Status = ImportRunStatusRunning
	run.StartedAt = &startedAt
	return true, nil
}

// FinishImportRun persists the counters, final status and row errors of a run in one transaction.
func FinishImportRun(ctx context.Context, run *ImportRun, errs []ImportRunError) error {
	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ImportRun{}).
			Where("id = ? AND tenant_id = ?", run.ID, run.TenantId).
			Updates(map[string]interface{}{
				"status":            run.Status,
				"total_rows":        run.TotalRows,
				"clients_created":   run.ClientsCreated,
				"clients_linked":    run.ClientsLinked,
				"offers_created":    run.OffersCreated,
				"contracts_created": run.ContractsCreated,
				"error_count":       run.ErrorCount,
				"started_at":        run.StartedAt,
				"finished_at":       run.FinishedAt,
				"duration_ms":       run.DurationMs,
			}).Error; err != nil {
			return err
		}
		if len(errs) == 0 {
			return nil
		}
		for i := range errs {
			errs[i].ImportRunId = run.ID
			errs[i].TenantId = run.TenantId
		}
		return tx.CreateInBatches(errs, 200).Error
	})
}
