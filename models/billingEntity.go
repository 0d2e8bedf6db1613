package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/utils"
)

// BillingEntity is the tenant's own legal entity that issues offers and contracts.
type BillingEntity struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"index;size:64;not null" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	TaxId     *string   `gorm:"size:64" json:"tax_id"`
	IsDefault *bool     `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBillingEntity struct {
	Name      string `json:"name" validate:"required,max=255"`
	TaxId     string `json:"tax_id"`
	IsDefault bool   `json:"is_default"`
}

func CreateBillingEntity(ctx context.Context, input *NewBillingEntity) (*BillingEntity, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("name is required")
	}
	isDefault := input.IsDefault
	entity := BillingEntity{
		TenantId:  tenantId,
		Name:      strings.TrimSpace(input.Name),
		TaxId:     utils.NilIfEmpty(strings.TrimSpace(input.TaxId)),
		IsDefault: &isDefault,
	}
	if err := config.GetDB().WithContext(ctx).Create(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}
