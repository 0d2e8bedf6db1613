package leaseimport

import (
	"time"

	"github.com/mmdatafocus/leasing_backend/importer"
	"github.com/mmdatafocus/leasing_backend/models"
)

type ImportRequest struct {
	BillingEntityId int                  `json:"billing_entity_id"`
	Label           string               `json:"label"`
	Strategy        string               `json:"strategy"`
	Compensate      *bool                `json:"compensate"`
	Async           bool                 `json:"async"`
	Rows            []importer.ImportRow `json:"rows"`
}

func (r ImportRequest) Options() RunOptions {
	return RunOptions{
		BillingEntityId: r.BillingEntityId,
		Label:           r.Label,
		Strategy:        r.Strategy,
		Compensate:      r.Compensate,
	}
}

// RunOptions are the per-run settings shared by JSON and uploaded imports.
type RunOptions struct {
	BillingEntityId int    `validate:"required,gt=0"`
	Label           string `validate:"max=100"`
	Strategy        string `validate:"omitempty,oneof=default strict-tax-id fuzzy"`
	Compensate      *bool
}

type AcceptedResponse struct {
	RunId  int    `json:"runId"`
	Status string `json:"status"`
}

type RunHistoryResponse struct {
	Items []RunResponse `json:"items"`
}

type RunResponse struct {
	ID               int     `json:"id"`
	Status           string  `json:"status"`
	Label            string  `json:"label"`
	Source           string  `json:"source"`
	BillingEntityId  int     `json:"billingEntityId"`
	MatchStrategy    string  `json:"matchStrategy"`
	TotalRows        int     `json:"totalRows"`
	ClientsCreated   int     `json:"clientsCreated"`
	ClientsLinked    int     `json:"clientsLinked"`
	OffersCreated    int     `json:"offersCreated"`
	ContractsCreated int     `json:"contractsCreated"`
	ErrorCount       int     `json:"errorCount"`
	TriggeredBy      string  `json:"triggeredBy"`
	ParentRunId      *int    `json:"parentRunId"`
	StartedAt        *string `json:"startedAt"`
	FinishedAt       *string `json:"finishedAt"`
	DurationMs       int64   `json:"durationMs"`
}

type RunDetailResponse struct {
	RunResponse
	Errors []RunErrorResponse `json:"errors"`
}

type RunErrorResponse struct {
	Row     int    `json:"row"`
	Step    string `json:"step"`
	Message string `json:"message"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ImportRunPayload struct {
	RunId         int    `json:"run_id"`
	TenantId      string `json:"tenant_id"`
	CorrelationId string `json:"correlation_id,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.ImportRun) RunResponse {
	return RunResponse{
		ID:               run.ID,
		Status:           run.Status,
		Label:            run.Label,
		Source:           run.Source,
		BillingEntityId:  run.BillingEntityId,
		MatchStrategy:    run.MatchStrategy,
		TotalRows:        run.TotalRows,
		ClientsCreated:   run.ClientsCreated,
		ClientsLinked:    run.ClientsLinked,
		OffersCreated:    run.OffersCreated,
		ContractsCreated: run.ContractsCreated,
		ErrorCount:       run.ErrorCount,
		TriggeredBy:      run.TriggeredBy,
		ParentRunId:      run.ParentRunId,
		StartedAt:        formatTime(run.StartedAt),
		FinishedAt:       formatTime(run.FinishedAt),
		DurationMs:       run.DurationMs,
	}
}

func mapErrors(errs []models.ImportRunError) []RunErrorResponse {
	out := make([]RunErrorResponse, 0, len(errs))
	for _, e := range errs {
		out = append(out, RunErrorResponse{
			Row:     e.Row,
			Step:    e.Step,
			Message: e.Message,
		})
	}
	return out
}

// reportFromRun rebuilds the report of a finished run from its persisted counters.
func reportFromRun(run models.ImportRun, errs []models.ImportRunError) *importer.ImportReport {
	report := &importer.ImportReport{
		Success:          run.Status == models.ImportRunStatusSuccess,
		TotalRows:        run.TotalRows,
		ClientsCreated:   run.ClientsCreated,
		ClientsLinked:    run.ClientsLinked,
		OffersCreated:    run.OffersCreated,
		ContractsCreated: run.ContractsCreated,
		Errors:           make([]importer.ReportError, 0, len(errs)),
	}
	for _, e := range errs {
		report.Errors = append(report.Errors, importer.ReportError{
			Row:     e.Row,
			Message: e.Message,
			Step:    importer.Step(e.Step),
		})
	}
	return report
}
