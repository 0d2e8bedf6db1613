package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Offer struct {
	ID                   int              `gorm:"primary_key" json:"id"`
	TenantId             string           `gorm:"index;size:64;not null" json:"tenant_id"`
	ClientId             int              `gorm:"index;not null" json:"client_id"`
	BillingEntityId      int              `gorm:"index;not null" json:"billing_entity_id"`
	LeaserId             *int             `gorm:"index" json:"leaser_id"`
	ImportRunId          *int             `gorm:"index" json:"import_run_id"`
	Title                string           `gorm:"size:255;not null" json:"title"`
	Amount               decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount"`
	MonthlyPayment       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"monthly_payment"`
	Coefficient          decimal.Decimal  `gorm:"type:decimal(10,4);default:0" json:"coefficient"`
	Margin               *decimal.Decimal `gorm:"type:decimal(20,4)" json:"margin"`
	EquipmentDescription *string          `gorm:"type:text" json:"equipment_description"`
	Remarks              *string          `gorm:"type:text" json:"remarks"`
	OfferDate            time.Time        `gorm:"not null" json:"offer_date"`
	Status               string           `gorm:"size:20;not null" json:"status"`
	Type                 string           `gorm:"size:30;not null" json:"type"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// OfferEquipment is one equipment line of an offer; prices are per unit.
type OfferEquipment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	TenantId       string          `gorm:"index;size:64;not null" json:"tenant_id"`
	OfferId        int             `gorm:"index;not null" json:"offer_id"`
	Title          string          `gorm:"size:255;not null" json:"title"`
	Quantity       int             `gorm:"not null;default:1" json:"quantity"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	MonthlyPayment decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_payment"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (OfferEquipment) TableName() string {
	return "offer_equipment"
}

func CreateOffer(ctx context.Context, offer *Offer) error {
	if offer.ClientId == 0 {
		return errors.New("offer requires a client")
	}
	return config.GetDB().WithContext(ctx).Create(offer).Error
}

func CreateOfferEquipment(ctx context.Context, line *OfferEquipment) error {
	if line.OfferId == 0 {
		return errors.New("equipment requires an offer")
	}
	return config.GetDB().WithContext(ctx).Create(line).Error
}

// VoidOffer marks an offer void and removes its equipment lines.
func VoidOffer(ctx context.Context, tenantId string, offerId int) error {
	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Offer{}).
			Where("id = ? AND tenant_id = ?", offerId, tenantId).
			Update("status", OfferStatusVoid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("offer_id = ? AND tenant_id = ?", offerId, tenantId).
			Delete(&OfferEquipment{}).Error
	})
}
