package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testTenant = "tenant-a"

func setupTestDB(t *testing.T) (*gorm.DB, int) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)

	tenantCtx := utils.SetTenantIdInContext(context.Background(), testTenant)
	entity, err := models.CreateBillingEntity(tenantCtx, &models.NewBillingEntity{Name: "Main Entity", IsDefault: true})
	if err != nil {
		t.Fatalf("seed billing entity: %v", err)
	}
	return db, entity.ID
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestEngine(t *testing.T, store Store, compensate bool) *Engine {
	engine, err := NewEngine(store, Options{
		Matcher:    DefaultMatcher{},
		Compensate: compensate,
		Logger:     quietLogger(),
		Now:        func() time.Time { return time.Date(2024, time.June, 7, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func acmeRows() []ImportRow {
	return []ImportRow{
		NewImportRow(map[string]string{"client_name": "Acme Corp", "client_vat": "BE0123456789", "financed_amount": "1.000,00", "monthly_payment": "30,00"}),
		NewImportRow(map[string]string{"client_name": "ACME CORP", "client_vat": "BE 0123.456.789", "financed_amount": "500,00", "monthly_payment": "15,00"}),
	}
}

// faultyStore wraps the gorm store and fails selected steps.
type faultyStore struct {
	GormStore
	findClientsErr error
	findLeasersErr error
	offerErr       error
	equipmentErr   error
	contractErr    error
	updateErr      error
	voidErr        error

	clientInserts int
	contractCalls int
}

func (s *faultyStore) FindClients(ctx context.Context, tenantId string) ([]models.Client, error) {
	if s.findClientsErr != nil {
		return nil, s.findClientsErr
	}
	return s.GormStore.FindClients(ctx, tenantId)
}

func (s *faultyStore) FindLeasers(ctx context.Context, tenantId string) ([]models.Leaser, error) {
	if s.findLeasersErr != nil {
		return nil, s.findLeasersErr
	}
	return s.GormStore.FindLeasers(ctx, tenantId)
}

func (s *faultyStore) InsertClient(ctx context.Context, client *models.Client) error {
	s.clientInserts++
	return s.GormStore.InsertClient(ctx, client)
}

func (s *faultyStore) UpdateClient(ctx context.Context, tenantId string, id int, fields map[string]interface{}) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.GormStore.UpdateClient(ctx, tenantId, id, fields)
}

func (s *faultyStore) InsertOffer(ctx context.Context, offer *models.Offer) error {
	if s.offerErr != nil {
		return s.offerErr
	}
	return s.GormStore.InsertOffer(ctx, offer)
}

func (s *faultyStore) InsertOfferEquipment(ctx context.Context, line *models.OfferEquipment) error {
	if s.equipmentErr != nil {
		return s.equipmentErr
	}
	return s.GormStore.InsertOfferEquipment(ctx, line)
}

func (s *faultyStore) InsertContract(ctx context.Context, contract *models.Contract) error {
	s.contractCalls++
	if s.contractErr != nil {
		return s.contractErr
	}
	return s.GormStore.InsertContract(ctx, contract)
}

func (s *faultyStore) VoidOffer(ctx context.Context, tenantId string, offerId int) error {
	if s.voidErr != nil {
		return s.voidErr
	}
	return s.GormStore.VoidOffer(ctx, tenantId, offerId)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestEngineRun_AcmeScenario(t *testing.T) {
	db, entityID := setupTestDB(t)
	engine := newTestEngine(t, NewGormStore(), false)

	report, err := engine.Run(context.Background(), acmeRows(), BatchParams{TenantId: testTenant, BillingEntityId: entityID, Label: "2023"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Success || report.TotalRows != 2 {
		t.Fatalf("expected successful report of 2 rows, got %+v", report)
	}
	if report.ClientsCreated != 1 || report.ClientsLinked != 1 {
		t.Fatalf("expected 1 created and 1 linked client, got %d/%d", report.ClientsCreated, report.ClientsLinked)
	}
	if report.OffersCreated != 2 || report.ContractsCreated != 2 {
		t.Fatalf("expected 2 offers and 2 contracts, got %d/%d", report.OffersCreated, report.ContractsCreated)
	}

	out, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	if !strings.Contains(string(out), `"errors":[]`) || !strings.Contains(string(out), `"clientsLinked":1`) {
		t.Fatalf("unexpected report json %s", out)
	}

	var clients []models.Client
	if err := db.Find(&clients).Error; err != nil {
		t.Fatalf("load clients: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(clients))
	}
	if utils.DereferencePtr(clients[0].TaxId) != "BE0123456789" || clients[0].Source != models.ClientSourceImport {
		t.Fatalf("unexpected client %+v", clients[0])
	}
	if clients[0].Email != nil || clients[0].Phone != nil {
		t.Fatalf("expected absent contact fields to stay null, got %+v", clients[0])
	}

	var offers []models.Offer
	if err := db.Order("id").Find(&offers).Error; err != nil {
		t.Fatalf("load offers: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
	first := offers[0]
	if !first.Amount.Equal(decimal.NewFromInt(1000)) || !first.MonthlyPayment.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected amounts %s %s", first.Amount, first.MonthlyPayment)
	}
	if !first.Coefficient.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected coefficient 3, got %s", first.Coefficient)
	}
	if first.Status != models.OfferStatusAccepted || first.Type != models.OfferTypeHistoricalImport {
		t.Fatalf("unexpected offer status/type %s/%s", first.Status, first.Type)
	}
	if first.Title != "Import 2023" {
		t.Fatalf("expected title from label, got %q", first.Title)
	}
	if countRows(t, db, &models.Contract{}) != 2 {
		t.Fatalf("expected 2 contracts")
	}
}

func TestEngineRun_RerunCreatesNoClients(t *testing.T) {
	db, entityID := setupTestDB(t)
	engine := newTestEngine(t, NewGormStore(), false)
	rows := append(acmeRows(), NewImportRow(map[string]string{
		"first_name": "Jane", "last_name": "Doe", "financed_amount": "2000", "monthly_payment": "60",
	}))
	params := BatchParams{TenantId: testTenant, BillingEntityId: entityID, Label: "2023"}

	if _, err := engine.Run(context.Background(), rows, params); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := engine.Run(context.Background(), rows, params)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.ClientsCreated != 0 || report.ClientsLinked != len(rows) {
		t.Fatalf("expected all clients linked on rerun, got created=%d linked=%d", report.ClientsCreated, report.ClientsLinked)
	}
	if n := countRows(t, db, &models.Client{}); n != 2 {
		t.Fatalf("expected 2 clients after rerun, got %d", n)
	}
}

func TestEngineRun_SameIdentityCreatesOnce(t *testing.T) {
	_, entityID := setupTestDB(t)
	store := &faultyStore{}
	engine := newTestEngine(t, store, false)
	rows := []ImportRow{
		{ClientName: "Beta SA", FinancedAmount: "100", MonthlyPayment: "3"},
		{ClientName: "Gamma", FinancedAmount: "100", MonthlyPayment: "3"},
		{ClientName: "beta s.a.", FinancedAmount: "200", MonthlyPayment: "6"},
		{ClientName: "BETA-SA", FinancedAmount: "300", MonthlyPayment: "9"},
	}
	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.clientInserts != 2 || report.ClientsCreated != 2 || report.ClientsLinked != 2 {
		t.Fatalf("expected 2 client writes, got inserts=%d report=%+v", store.clientInserts, report)
	}
	if report.Rows[0].ClientId != report.Rows[2].ClientId || report.Rows[2].ClientId != report.Rows[3].ClientId {
		t.Fatalf("expected rows 1, 3 and 4 to resolve to the same client: %+v", report.Rows)
	}
}

func TestEngineRun_ErrorIsolation(t *testing.T) {
	db, entityID := setupTestDB(t)
	engine := newTestEngine(t, NewGormStore(), false)
	rows := []ImportRow{
		{ClientName: "One", FinancedAmount: "100", MonthlyPayment: "3"},
		{ClientName: "Two", FinancedAmount: "100", MonthlyPayment: "3"},
		{ClientName: "Three", MonthlyPayment: "3"},
		{ClientName: "Four", FinancedAmount: "100", MonthlyPayment: "3"},
		{ClientName: "Five", FinancedAmount: "-5", MonthlyPayment: "3"},
	}
	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Success || len(report.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %+v", report.Errors)
	}
	if report.Errors[0].Row != 3 || !strings.Contains(report.Errors[0].Message, "financed amount is required") {
		t.Fatalf("unexpected first error %+v", report.Errors[0])
	}
	if report.Errors[1].Row != 5 || report.Errors[1].Step != StepValidation {
		t.Fatalf("unexpected second error %+v", report.Errors[1])
	}
	if report.ClientsCreated != 3 || report.OffersCreated != 3 || report.ContractsCreated != 3 {
		t.Fatalf("expected the 3 valid rows processed, got %+v", report)
	}
	if n := countRows(t, db, &models.Client{}); n != 3 {
		t.Fatalf("expected no client written for invalid rows, got %d clients", n)
	}
}

func TestEngineRun_DatesDurationAndEquipment(t *testing.T) {
	db, entityID := setupTestDB(t)
	engine := newTestEngine(t, NewGormStore(), false)
	rows := []ImportRow{
		{ClientName: "Dated", FinancedAmount: "1000", MonthlyPayment: "30", Date: "15/03/2023", Duration: "36",
			EquipmentDescription: "Copieur", EquipmentQuantity: "4", Coefficient: "3,1", TrackingNumber: "C-001"},
		{ClientName: "Undated", FinancedAmount: "1000", MonthlyPayment: "30", Date: "sometime"},
	}
	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID, Label: "2021"})
	if err != nil || !report.Success {
		t.Fatalf("Run: %v %+v", err, report)
	}

	var contracts []models.Contract
	if err := db.Order("id").Find(&contracts).Error; err != nil {
		t.Fatalf("load contracts: %v", err)
	}
	if len(contracts) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(contracts))
	}
	if got := contracts[0].StartDate.Format("2006-01-02"); got != "2023-03-15" {
		t.Fatalf("expected parsed start date, got %s", got)
	}
	if contracts[0].EndDate == nil || contracts[0].EndDate.Format("2006-01-02") != "2026-03-15" {
		t.Fatalf("expected end date 36 months later, got %v", contracts[0].EndDate)
	}
	if utils.DereferencePtr(contracts[0].TrackingNumber) != "C-001" {
		t.Fatalf("expected tracking number, got %v", contracts[0].TrackingNumber)
	}
	if got := contracts[1].StartDate.Format("2006-01-02"); got != "2021-01-01" {
		t.Fatalf("expected fallback date from label, got %s", got)
	}
	if contracts[1].EndDate != nil || contracts[1].DurationMonths != nil {
		t.Fatalf("expected no duration for undated row")
	}

	var offer models.Offer
	if err := db.Where("id = ?", contracts[0].OfferId).Take(&offer).Error; err != nil {
		t.Fatalf("load offer: %v", err)
	}
	if offer.Title != "Copieur" || !offer.Coefficient.Equal(decimal.RequireFromString("3.1")) {
		t.Fatalf("unexpected offer %+v", offer)
	}
	var lines []models.OfferEquipment
	if err := db.Find(&lines).Error; err != nil {
		t.Fatalf("load equipment: %v", err)
	}
	if len(lines) != 1 || lines[0].OfferId != offer.ID || lines[0].Quantity != 4 {
		t.Fatalf("expected one equipment line of 4 units, got %+v", lines)
	}
	if !lines[0].PurchasePrice.Equal(decimal.NewFromInt(250)) || !lines[0].MonthlyPayment.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("unexpected unit prices %s %s", lines[0].PurchasePrice, lines[0].MonthlyPayment)
	}
}

func TestEngineRun_LeaserLookup(t *testing.T) {
	db, entityID := setupTestDB(t)
	tenantCtx := utils.SetTenantIdInContext(context.Background(), testTenant)
	leaser, err := models.CreateLeaser(tenantCtx, &models.NewLeaser{Name: "Grenke Lease"})
	if err != nil {
		t.Fatalf("seed leaser: %v", err)
	}
	engine := newTestEngine(t, NewGormStore(), false)
	rows := []ImportRow{
		{ClientName: "One", FinancedAmount: "100", MonthlyPayment: "3", Leaser: "GRENKE-lease"},
		{ClientName: "Two", FinancedAmount: "100", MonthlyPayment: "3", Leaser: "Unknown Bank"},
	}
	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil || !report.Success {
		t.Fatalf("Run: %v %+v", err, report)
	}
	var offers []models.Offer
	if err := db.Order("id").Find(&offers).Error; err != nil {
		t.Fatalf("load offers: %v", err)
	}
	if offers[0].LeaserId == nil || *offers[0].LeaserId != leaser.ID {
		t.Fatalf("expected leaser %d on first offer, got %v", leaser.ID, offers[0].LeaserId)
	}
	if offers[1].LeaserId != nil {
		t.Fatalf("expected unknown leaser to be left empty")
	}
}

func TestEngineRun_EnrichesMatchedClient(t *testing.T) {
	db, entityID := setupTestDB(t)
	existing := models.Client{TenantId: testTenant, Name: "Acme Corp", Email: utils.NilIfEmpty("old@acme.test")}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	engine := newTestEngine(t, NewGormStore(), false)
	rows := []ImportRow{
		{ClientName: "Acme Corp", Email: "new@acme.test", City: "Liège", TaxID: "BE0123456789", FinancedAmount: "100", MonthlyPayment: "3"},
		{ClientName: "Other name", TaxID: "BE 0123 456 789", FinancedAmount: "100", MonthlyPayment: "3"},
	}
	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil || !report.Success {
		t.Fatalf("Run: %v %+v", err, report)
	}
	if report.ClientsLinked != 2 || report.ClientsCreated != 0 {
		t.Fatalf("expected both rows linked to the enriched client, got %+v", report)
	}
	var got models.Client
	if err := db.Where("id = ?", existing.ID).Take(&got).Error; err != nil {
		t.Fatalf("load client: %v", err)
	}
	if utils.DereferencePtr(got.Email) != "old@acme.test" {
		t.Fatalf("expected existing email kept, got %v", got.Email)
	}
	if utils.DereferencePtr(got.City) != "Liège" || utils.DereferencePtr(got.TaxId) != "BE0123456789" {
		t.Fatalf("expected empty fields filled, got %+v", got)
	}
}

func TestEngineRun_EnrichmentFailureDoesNotFailRow(t *testing.T) {
	db, entityID := setupTestDB(t)
	if err := db.Create(&models.Client{TenantId: testTenant, Name: "Acme Corp"}).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	store := &faultyStore{updateErr: errors.New("update refused")}
	engine := newTestEngine(t, store, false)
	rows := []ImportRow{{ClientName: "Acme Corp", Email: "x@acme.test", FinancedAmount: "100", MonthlyPayment: "3"}}
	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil || !report.Success || report.ContractsCreated != 1 {
		t.Fatalf("expected row to succeed despite enrichment failure: %v %+v", err, report)
	}
}

func TestEngineRun_ContractFailureKeepsOffer(t *testing.T) {
	db, entityID := setupTestDB(t)
	store := &faultyStore{contractErr: errors.New("contracts table locked")}
	engine := newTestEngine(t, store, false)
	rows := []ImportRow{{ClientName: "Acme Corp", FinancedAmount: "100", MonthlyPayment: "3"}}

	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.OffersCreated != 1 || report.ContractsCreated != 0 || len(report.Errors) != 1 {
		t.Fatalf("expected offer kept and contract error, got %+v", report)
	}
	e := report.Errors[0]
	if e.Step != StepContract || !strings.Contains(e.Message, "contracts table locked") || !strings.HasPrefix(e.Message, "contract: ") {
		t.Fatalf("expected contract step error with store message, got %+v", e)
	}
	var offer models.Offer
	if err := db.Take(&offer).Error; err != nil {
		t.Fatalf("load offer: %v", err)
	}
	if offer.Status != models.OfferStatusAccepted {
		t.Fatalf("expected offer to stay accepted, got %s", offer.Status)
	}
}

func TestEngineRun_CompensationVoidsOffer(t *testing.T) {
	db, entityID := setupTestDB(t)
	store := &faultyStore{contractErr: errors.New("contracts table locked")}
	engine := newTestEngine(t, store, true)
	rows := []ImportRow{{ClientName: "Acme Corp", FinancedAmount: "100", MonthlyPayment: "3", EquipmentQuantity: "2"}}

	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.OffersCreated != 0 || report.ClientsCreated != 1 || len(report.Errors) != 1 {
		t.Fatalf("expected voided offer not counted, got %+v", report)
	}
	if !strings.Contains(report.Errors[0].Message, "voided") {
		t.Fatalf("expected compensation in message, got %q", report.Errors[0].Message)
	}
	var offer models.Offer
	if err := db.Take(&offer).Error; err != nil {
		t.Fatalf("load offer: %v", err)
	}
	if offer.Status != models.OfferStatusVoid {
		t.Fatalf("expected void offer, got %s", offer.Status)
	}
	if n := countRows(t, db, &models.OfferEquipment{}); n != 0 {
		t.Fatalf("expected equipment removed, got %d lines", n)
	}
}

func TestEngineRun_EquipmentFailure(t *testing.T) {
	cases := []struct {
		name       string
		compensate bool
		offers     int
		status     string
		message    string
	}{
		{"offer kept", false, 1, models.OfferStatusAccepted, "kept"},
		{"offer voided", true, 0, models.OfferStatusVoid, "voided"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, entityID := setupTestDB(t)
			store := &faultyStore{equipmentErr: errors.New("equipment table locked")}
			engine := newTestEngine(t, store, tc.compensate)
			rows := []ImportRow{{ClientName: "Acme Corp", FinancedAmount: "100", MonthlyPayment: "3", EquipmentQuantity: "2"}}

			report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if store.contractCalls != 0 {
				t.Fatalf("contract must not be attempted after equipment failure, got %d calls", store.contractCalls)
			}
			if report.ClientsCreated != 1 || report.OffersCreated != tc.offers || report.ContractsCreated != 0 || len(report.Errors) != 1 {
				t.Fatalf("unexpected report %+v", report)
			}
			e := report.Errors[0]
			if e.Row != 1 || e.Step != StepEquipment || !strings.Contains(e.Message, "equipment table locked") || !strings.Contains(e.Message, tc.message) {
				t.Fatalf("expected equipment step error, got %+v", e)
			}

			var offer models.Offer
			if err := db.Take(&offer).Error; err != nil {
				t.Fatalf("load offer: %v", err)
			}
			if offer.Status != tc.status {
				t.Fatalf("expected offer %s, got %s", tc.status, offer.Status)
			}
			if n := countRows(t, db, &models.OfferEquipment{}); n != 0 {
				t.Fatalf("expected no equipment lines, got %d", n)
			}
			if n := countRows(t, db, &models.Contract{}); n != 0 {
				t.Fatalf("expected no contract, got %d", n)
			}
		})
	}
}

func TestEngineRun_OfferFailureSkipsContract(t *testing.T) {
	_, entityID := setupTestDB(t)
	store := &faultyStore{offerErr: errors.New("offer rejected")}
	engine := newTestEngine(t, store, false)
	rows := []ImportRow{
		{ClientName: "Acme Corp", FinancedAmount: "100", MonthlyPayment: "3"},
		{ClientName: "Beta", FinancedAmount: "100", MonthlyPayment: "3"},
	}
	report, err := engine.Run(context.Background(), rows, BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.contractCalls != 0 {
		t.Fatalf("expected no contract write without an offer, got %d", store.contractCalls)
	}
	if len(report.Errors) != 2 || report.Errors[0].Step != StepOffer || report.ClientsCreated != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, o := range report.Rows {
		if o.ContractId != 0 && o.OfferId == 0 {
			t.Fatalf("row %d has a contract without an offer", o.Row)
		}
	}
}

func TestEngineRun_BatchAbort(t *testing.T) {
	db, entityID := setupTestDB(t)

	store := &faultyStore{findClientsErr: errors.New("connection reset")}
	report, err := newTestEngine(t, store, false).Run(context.Background(), acmeRows(), BatchParams{TenantId: testTenant, BillingEntityId: entityID})
	if !errors.Is(err, ErrBatchAborted) {
		t.Fatalf("expected ErrBatchAborted, got %v", err)
	}
	if report == nil || report.Success || len(report.Errors) != 1 || report.Errors[0].Row != 0 {
		t.Fatalf("expected failed report with batch error, got %+v", report)
	}
	if store.clientInserts != 0 || countRows(t, db, &models.Offer{}) != 0 {
		t.Fatalf("expected no row processed")
	}

	store = &faultyStore{findLeasersErr: errors.New("leasers unavailable")}
	if _, err := newTestEngine(t, store, false).Run(context.Background(), acmeRows(), BatchParams{TenantId: testTenant, BillingEntityId: entityID}); !errors.Is(err, ErrBatchAborted) {
		t.Fatalf("expected ErrBatchAborted when leasers fail, got %v", err)
	}

	report, err = newTestEngine(t, NewGormStore(), false).Run(context.Background(), acmeRows(), BatchParams{TenantId: testTenant, BillingEntityId: entityID + 100})
	if !errors.Is(err, ErrBatchAborted) || !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected unknown billing entity to abort, got %v", err)
	}
	if report.TotalRows != 2 || report.ClientsCreated != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestEngineRun_RejectsMalformedInput(t *testing.T) {
	engine, err := NewEngine(&faultyStore{}, Options{Matcher: DefaultMatcher{}, MaxRows: 2, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	row := ImportRow{ClientName: "Acme", FinancedAmount: "1", MonthlyPayment: "1"}
	cases := []struct {
		name     string
		rows     []ImportRow
		params   BatchParams
		expected error
	}{
		{"nil rows", nil, BatchParams{TenantId: testTenant, BillingEntityId: 1}, ErrEmptyBatch},
		{"empty rows", []ImportRow{}, BatchParams{TenantId: testTenant, BillingEntityId: 1}, ErrEmptyBatch},
		{"missing tenant", []ImportRow{row}, BatchParams{BillingEntityId: 1}, ErrMissingTenant},
		{"missing billing entity", []ImportRow{row}, BatchParams{TenantId: testTenant}, ErrMissingBillingEntity},
		{"too many rows", []ImportRow{row, row, row}, BatchParams{TenantId: testTenant, BillingEntityId: 1}, ErrTooManyRows},
	}
	for _, tc := range cases {
		report, err := engine.Run(context.Background(), tc.rows, tc.params)
		if !errors.Is(err, tc.expected) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, err)
		}
		if report != nil {
			t.Fatalf("%s: expected no report", tc.name)
		}
	}
	if _, err := NewEngine(nil, Options{}); err == nil {
		t.Fatalf("expected nil store to be rejected")
	}
}

func TestWriteReportXlsx(t *testing.T) {
	report := newReport(3)
	report.record(RowOutcome{Row: 1, ClientId: 1, ClientCreated: true, OfferId: 1, ContractId: 1}, nil)
	report.record(RowOutcome{Row: 2}, validationError(2, "financed amount is required"))
	report.finish()

	var buf bytes.Buffer
	if err := WriteReportXlsx(&buf, report); err != nil {
		t.Fatalf("WriteReportXlsx: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	created, err := f.GetCellValue("Summary", "B3")
	if err != nil || created != "1" {
		t.Fatalf("expected 1 client created in summary, got %q %v", created, err)
	}
	msg, err := f.GetCellValue("Errors", "C2")
	if err != nil || msg != "validation: financed amount is required" {
		t.Fatalf("unexpected error message cell %q %v", msg, err)
	}
}
