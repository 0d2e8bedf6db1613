package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/shopspring/decimal"
)

// Contract is created from an accepted offer. OfferId is never zero.
type Contract struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	TenantId             string          `gorm:"index;size:64;not null" json:"tenant_id"`
	OfferId              int             `gorm:"index;not null" json:"offer_id"`
	ClientId             int             `gorm:"index;not null" json:"client_id"`
	LeaserId             *int            `gorm:"index" json:"leaser_id"`
	BillingEntityId      int             `gorm:"index;not null" json:"billing_entity_id"`
	MonthlyPayment       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_payment"`
	DurationMonths       *int            `json:"duration_months"`
	StartDate            time.Time       `gorm:"not null" json:"start_date"`
	EndDate              *time.Time      `json:"end_date"`
	EquipmentDescription *string         `gorm:"type:text" json:"equipment_description"`
	Status               string          `gorm:"size:20;not null" json:"status"`
	TrackingNumber       *string         `gorm:"size:100" json:"tracking_number"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreateContract(ctx context.Context, contract *Contract) error {
	if contract.OfferId == 0 {
		return errors.New("contract requires an offer")
	}
	if contract.Status == "" {
		contract.Status = ContractStatusActive
	}
	return config.GetDB().WithContext(ctx).Create(contract).Error
}
