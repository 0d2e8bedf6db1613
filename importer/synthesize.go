package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// rowValues are the parsed transactional fields of a row.
type rowValues struct {
	financed    decimal.Decimal
	monthly     decimal.Decimal
	coefficient *decimal.Decimal
	margin      *decimal.Decimal
	duration    *int
	quantity    int
	date        time.Time
}

// ValidateRows checks the transactional fields of every row without touching the store.
// The returned errors are in row order.
func ValidateRows(rows []ImportRow, label string, now time.Time) []*RowError {
	fallback := FallbackDate(label, now)
	var errs []*RowError
	for i, row := range rows {
		if _, rowErr := parseRowValues(i+1, row, fallback); rowErr != nil {
			errs = append(errs, rowErr)
		}
	}
	return errs
}

// parseRowValues validates the transactional fields. It runs before any write of the row.
func parseRowValues(rowNo int, row ImportRow, fallback time.Time) (*rowValues, *RowError) {
	financed, err := requiredAmount(rowNo, "financed amount", row.FinancedAmount)
	if err != nil {
		return nil, err
	}
	monthly, err := requiredAmount(rowNo, "monthly payment", row.MonthlyPayment)
	if err != nil {
		return nil, err
	}
	v := &rowValues{financed: financed, monthly: monthly, date: fallback}

	if v.coefficient, err = optionalAmount(rowNo, "coefficient", row.Coefficient); err != nil {
		return nil, err
	}
	if v.margin, err = optionalAmount(rowNo, "margin", row.Margin); err != nil {
		return nil, err
	}
	duration, err := optionalAmount(rowNo, "duration", row.Duration)
	if err != nil {
		return nil, err
	}
	if duration != nil && duration.IsPositive() {
		months := int(duration.IntPart())
		v.duration = &months
	}
	quantity, err := optionalAmount(rowNo, "equipment quantity", row.EquipmentQuantity)
	if err != nil {
		return nil, err
	}
	if quantity != nil {
		v.quantity = int(quantity.IntPart())
	}
	if d := ParseDate(row.Date); d != nil {
		v.date = *d
	}
	return v, nil
}

func requiredAmount(rowNo int, name, raw string) (decimal.Decimal, *RowError) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, validationError(rowNo, "%s is required", name)
	}
	d, ok := ParseNumberStrict(raw)
	if !ok {
		return decimal.Zero, validationError(rowNo, "%s %q is not a number", name, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, validationError(rowNo, "%s must not be negative", name)
	}
	return d, nil
}

// optionalAmount returns nil for an absent or unparseable value.
func optionalAmount(rowNo int, name, raw string) (*decimal.Decimal, *RowError) {
	d, ok := ParseNumberStrict(raw)
	if !ok {
		return nil, nil
	}
	if d.IsNegative() {
		return nil, validationError(rowNo, "%s must not be negative", name)
	}
	return &d, nil
}

// batchContext is what synthesis needs from the batch besides the row.
type batchContext struct {
	tenantId        string
	billingEntityId int
	label           string
	importRunId     *int
	leasers         map[string]int
}

func (b *batchContext) leaserFor(row ImportRow) *int {
	id, ok := b.leasers[CanonicalName(row.Leaser)]
	if !ok {
		return nil
	}
	return &id
}

func buildOffer(b *batchContext, row ImportRow, v *rowValues, clientId int) *models.Offer {
	title := strings.TrimSpace(row.EquipmentDescription)
	if title == "" {
		title = strings.TrimSpace(fmt.Sprintf("Import %s", b.label))
	}
	return &models.Offer{
		TenantId:             b.tenantId,
		ClientId:             clientId,
		BillingEntityId:      b.billingEntityId,
		LeaserId:             b.leaserFor(row),
		ImportRunId:          b.importRunId,
		Title:                title,
		Amount:               v.financed,
		MonthlyPayment:       v.monthly,
		Coefficient:          coefficientOf(v),
		Margin:               v.margin,
		EquipmentDescription: utils.NilIfEmpty(strings.TrimSpace(row.EquipmentDescription)),
		Remarks:              utils.NilIfEmpty(strings.TrimSpace(row.Remarks)),
		OfferDate:            v.date,
		Status:               models.OfferStatusAccepted,
		Type:                 models.OfferTypeHistoricalImport,
	}
}

// coefficientOf is the row's coefficient, else monthly / financed * 100.
func coefficientOf(v *rowValues) decimal.Decimal {
	if v.coefficient != nil {
		return v.coefficient.Round(4)
	}
	if v.financed.IsZero() {
		return decimal.Zero
	}
	return v.monthly.Div(v.financed).Mul(hundred).Round(4)
}

// buildEquipment returns nil when the row carries no item count.
func buildEquipment(offer *models.Offer, v *rowValues) *models.OfferEquipment {
	if v.quantity <= 0 {
		return nil
	}
	qty := decimal.NewFromInt(int64(v.quantity))
	title := utils.DereferencePtr(offer.EquipmentDescription, offer.Title)
	return &models.OfferEquipment{
		TenantId:       offer.TenantId,
		OfferId:        offer.ID,
		Title:          title,
		Quantity:       v.quantity,
		PurchasePrice:  v.financed.Div(qty).Round(4),
		MonthlyPayment: v.monthly.Div(qty).Round(4),
	}
}

func buildContract(offer *models.Offer, row ImportRow, v *rowValues) *models.Contract {
	c := &models.Contract{
		TenantId:             offer.TenantId,
		OfferId:              offer.ID,
		ClientId:             offer.ClientId,
		LeaserId:             offer.LeaserId,
		BillingEntityId:      offer.BillingEntityId,
		MonthlyPayment:       v.monthly,
		DurationMonths:       v.duration,
		StartDate:            v.date,
		EquipmentDescription: offer.EquipmentDescription,
		Status:               models.ContractStatusActive,
		TrackingNumber:       utils.NilIfEmpty(strings.TrimSpace(row.TrackingNumber)),
	}
	if v.duration != nil {
		end := v.date.AddDate(0, *v.duration, 0)
		c.EndDate = &end
	}
	return c
}
