package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("leasing-importer")

var validate = validator.New()

// BatchParams are the batch-level inputs of an import.
type BatchParams struct {
	TenantId        string `json:"tenant_id"`
	BillingEntityId int    `json:"billing_entity_id"`
	Label           string `json:"label" validate:"max=100"`
	ImportRunId     *int   `json:"import_run_id"`
}

type Options struct {
	// Matcher defaults to the strategy selected by IMPORT_MATCH_STRATEGY.
	Matcher Matcher
	// Compensate voids a row's offer when a later write of the row fails.
	Compensate bool
	// MaxRows rejects larger batches; zero means no limit.
	MaxRows      int
	PhoneCountry string
	Logger       *logrus.Logger
	Now          func() time.Time
	// Progress is called after every row.
	Progress func(done, total int)
}

// DefaultOptions reads the import feature flags.
func DefaultOptions() Options {
	return Options{
		Compensate: config.ImportCompensatePartial(),
		MaxRows:    config.ImportMaxRows(),
	}
}

// Engine reconciles import batches against a store. An Engine keeps no state between
// batches and may be shared; each Run owns its own client index.
type Engine struct {
	store Store
	opts  Options
}

func NewEngine(store Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("importer: store is required")
	}
	if opts.Matcher == nil {
		m, err := MatcherFor(config.ImportMatchStrategy())
		if err != nil {
			return nil, err
		}
		opts.Matcher = m
	}
	if opts.PhoneCountry == "" {
		opts.PhoneCountry = utils.CountryCode
	}
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{store: store, opts: opts}, nil
}

// Run imports rows in order. Invalid batches are rejected with a nil report. Once started,
// Run always returns a report; when the existing clients, partners or billing entity cannot
// be loaded no row is processed and the error wraps ErrBatchAborted.
func (e *Engine) Run(ctx context.Context, rows []ImportRow, params BatchParams) (*ImportReport, error) {
	if err := e.validateBatch(rows, params); err != nil {
		return nil, err
	}

	ctx = utils.SetTenantIdInContext(ctx, params.TenantId)
	ctx, span := tracer.Start(ctx, "importer.Run", trace.WithAttributes(
		attribute.String("tenant_id", params.TenantId),
		attribute.Int("billing_entity_id", params.BillingEntityId),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	logger := e.opts.Logger.WithFields(logrus.Fields{
		"module":    "importer",
		"tenant_id": params.TenantId,
	})
	started := e.opts.Now()
	report := newReport(len(rows))

	batch, index, err := e.loadBatch(ctx, params)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrBatchAborted, err)
		report.abort(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch aborted")
		logger.WithError(err).Error("import batch aborted")
		return report, err
	}

	fallback := FallbackDate(params.Label, started)
	for i, row := range rows {
		rowNo := i + 1
		outcome, rowErr := e.processRow(ctx, batch, index, rowNo, row, fallback)
		report.record(outcome, rowErr)
		if rowErr != nil {
			span.AddEvent("row_failed", trace.WithAttributes(
				attribute.Int("row", rowNo),
				attribute.String("step", string(rowErr.Step)),
			))
			logger.WithFields(logrus.Fields{
				"row":  rowNo,
				"step": rowErr.Step,
			}).Warn(rowErr.Error())
		}
		if e.opts.Progress != nil {
			e.opts.Progress(rowNo, len(rows))
		}
	}
	report.finish()

	span.SetAttributes(
		attribute.Int("clients_created", report.ClientsCreated),
		attribute.Int("clients_linked", report.ClientsLinked),
		attribute.Int("offers_created", report.OffersCreated),
		attribute.Int("contracts_created", report.ContractsCreated),
		attribute.Int("errors", len(report.Errors)),
	)
	logger.WithFields(logrus.Fields{
		"total_rows":        report.TotalRows,
		"clients_created":   report.ClientsCreated,
		"clients_linked":    report.ClientsLinked,
		"offers_created":    report.OffersCreated,
		"contracts_created": report.ContractsCreated,
		"errors":            len(report.Errors),
		"duration_ms":       e.opts.Now().Sub(started).Milliseconds(),
	}).Info("import batch finished")
	return report, nil
}

func (e *Engine) validateBatch(rows []ImportRow, params BatchParams) error {
	if len(rows) == 0 {
		return ErrEmptyBatch
	}
	if strings.TrimSpace(params.TenantId) == "" {
		return ErrMissingTenant
	}
	if params.BillingEntityId <= 0 {
		return ErrMissingBillingEntity
	}
	if e.opts.MaxRows > 0 && len(rows) > e.opts.MaxRows {
		return fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(rows), e.opts.MaxRows)
	}
	return validate.Struct(params)
}

// loadBatch reads everything a batch matches against, once.
func (e *Engine) loadBatch(ctx context.Context, params BatchParams) (*batchContext, *ClientIndex, error) {
	if err := e.store.BillingEntityExists(ctx, params.TenantId, params.BillingEntityId); err != nil {
		return nil, nil, fmt.Errorf("billing entity %d: %w", params.BillingEntityId, err)
	}
	clients, err := e.store.FindClients(ctx, params.TenantId)
	if err != nil {
		return nil, nil, fmt.Errorf("load clients: %w", err)
	}
	leasers, err := e.store.FindLeasers(ctx, params.TenantId)
	if err != nil {
		return nil, nil, fmt.Errorf("load leasers: %w", err)
	}

	batch := &batchContext{
		tenantId:        params.TenantId,
		billingEntityId: params.BillingEntityId,
		label:           strings.TrimSpace(params.Label),
		importRunId:     params.ImportRunId,
		leasers:         make(map[string]int, len(leasers)),
	}
	for _, l := range leasers {
		key := CanonicalName(l.Name)
		if _, taken := batch.leasers[key]; key != "" && !taken {
			batch.leasers[key] = l.ID
		}
	}
	return batch, NewClientIndex(clients), nil
}

// processRow runs validation, client resolution and the offer, equipment and contract
// writes of one row. A failing step stops the row; earlier writes stay unless compensation
// is enabled.
func (e *Engine) processRow(ctx context.Context, b *batchContext, ix *ClientIndex, rowNo int, row ImportRow, fallback time.Time) (RowOutcome, *RowError) {
	outcome := RowOutcome{Row: rowNo, Outcome: OutcomeFailed}

	values, rowErr := parseRowValues(rowNo, row, fallback)
	if rowErr != nil {
		return outcome, rowErr
	}

	client, created, rowErr := e.resolveClient(ctx, b, ix, rowNo, row)
	if rowErr != nil {
		return outcome, rowErr
	}
	outcome.ClientId = client.ID
	outcome.ClientCreated = created
	outcome.Outcome = OutcomeClientLinked
	if created {
		outcome.Outcome = OutcomeClientCreated
	}

	offer := buildOffer(b, row, values, client.ID)
	if err := e.store.InsertOffer(ctx, offer); err != nil {
		return outcome, rowError(rowNo, StepOffer, err)
	}
	outcome.OfferId = offer.ID
	outcome.Outcome = OutcomeOfferCreated

	if line := buildEquipment(offer, values); line != nil {
		if err := e.store.InsertOfferEquipment(ctx, line); err != nil {
			return e.compensate(ctx, b, outcome, rowError(rowNo, StepEquipment, err))
		}
	}

	contract := buildContract(offer, row, values)
	if err := e.store.InsertContract(ctx, contract); err != nil {
		return e.compensate(ctx, b, outcome, rowError(rowNo, StepContract, err))
	}
	outcome.ContractId = contract.ID
	outcome.Outcome = OutcomeContractCreated
	return outcome, nil
}

func (e *Engine) resolveClient(ctx context.Context, b *batchContext, ix *ClientIndex, rowNo int, row ImportRow) (*models.Client, bool, *RowError) {
	if c := e.opts.Matcher.Resolve(row, ix); c != nil {
		e.enrich(ctx, b, ix, c, rowNo, row)
		return c, false, nil
	}

	client := clientFromRow(row, b.tenantId, e.opts.PhoneCountry)
	if CanonicalName(client.Name) == "" {
		return nil, false, rowError(rowNo, StepClient, fmt.Errorf("client name is required to create a client"))
	}
	if err := e.store.InsertClient(ctx, client); err != nil {
		return nil, false, rowError(rowNo, StepClient, err)
	}
	ix.Add(client)
	return client, true, nil
}

// enrich fills empty fields of a matched client. Failures are logged and ignored.
func (e *Engine) enrich(ctx context.Context, b *batchContext, ix *ClientIndex, c *models.Client, rowNo int, row ImportRow) {
	fields := enrichmentFor(c, row, e.opts.PhoneCountry)
	if len(fields) == 0 {
		return
	}
	if err := e.store.UpdateClient(ctx, b.tenantId, c.ID, fields); err != nil {
		e.opts.Logger.WithFields(logrus.Fields{
			"module":    "importer",
			"tenant_id": b.tenantId,
			"row":       rowNo,
			"client_id": c.ID,
		}).WithError(err).Warn("client enrichment failed")
		return
	}
	applyEnrichment(c, fields)
	ix.Reindex(c)
}

// compensate voids the row's offer when compensation is enabled. A voided offer no
// longer counts as created.
func (e *Engine) compensate(ctx context.Context, b *batchContext, outcome RowOutcome, rowErr *RowError) (RowOutcome, *RowError) {
	offerId := outcome.OfferId
	if !e.opts.Compensate {
		rowErr.Err = fmt.Errorf("%w (offer %d kept)", rowErr.Err, offerId)
		return outcome, rowErr
	}
	if err := e.store.VoidOffer(ctx, b.tenantId, offerId); err != nil {
		rowErr.Err = fmt.Errorf("%w (offer %d kept, void failed: %v)", rowErr.Err, offerId, err)
		return outcome, rowErr
	}
	outcome.OfferId = 0
	rowErr.Err = fmt.Errorf("%w (offer %d voided)", rowErr.Err, offerId)
	return outcome, rowErr
}
