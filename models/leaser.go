package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/utils"
)

// Leaser is a financing partner an offer can be placed with.
type Leaser struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"index;size:64;not null" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     *string   `gorm:"size:255" json:"email"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLeaser struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"omitempty,email"`
}

func CreateLeaser(ctx context.Context, input *NewLeaser) (*Leaser, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("name is required")
	}
	leaser := Leaser{
		TenantId: tenantId,
		Name:     strings.TrimSpace(input.Name),
		Email:    utils.NilIfEmpty(strings.TrimSpace(input.Email)),
		IsActive: utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&leaser).Error; err != nil {
		return nil, err
	}
	return &leaser, nil
}

// GetActiveLeasers returns a tenant's active financing partners ordered by id.
func GetActiveLeasers(ctx context.Context, tenantId string) ([]Leaser, error) {
	db := config.GetDB()
	var results []Leaser
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantId, true).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
