package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"gorm.io/gorm"
)

type Client struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TenantId    string    `gorm:"index;size:64;not null" json:"tenant_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	CompanyName *string   `gorm:"size:255" json:"company_name"`
	FirstName   *string   `gorm:"size:100" json:"first_name"`
	LastName    *string   `gorm:"size:100" json:"last_name"`
	TaxId       *string   `gorm:"size:64;index" json:"tax_id"`
	Email       *string   `gorm:"size:255" json:"email"`
	Phone       *string   `gorm:"size:50" json:"phone"`
	Address     *string   `gorm:"size:255" json:"address"`
	City        *string   `gorm:"size:100" json:"city"`
	PostalCode  *string   `gorm:"size:20" json:"postal_code"`
	Country     *string   `gorm:"size:100" json:"country"`
	Status      string    `gorm:"size:20;not null;default:'active'" json:"status"`
	Source      string    `gorm:"size:20;not null;default:'manual'" json:"source"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClientColumn maps the nullable identity fields to their column names.
// Used for minimal-field updates.
var ClientColumn = struct {
	CompanyName string
	FirstName   string
	LastName    string
	TaxId       string
	Email       string
	Phone       string
	Address     string
	City        string
	PostalCode  string
	Country     string
}{
	CompanyName: "company_name",
	FirstName:   "first_name",
	LastName:    "last_name",
	TaxId:       "tax_id",
	Email:       "email",
	Phone:       "phone",
	Address:     "address",
	City:        "city",
	PostalCode:  "postal_code",
	Country:     "country",
}

// GetClientsByTenant returns every client of a tenant ordered by id.
func GetClientsByTenant(ctx context.Context, tenantId string) ([]Client, error) {
	db := config.GetDB()
	var results []Client
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func CreateClient(ctx context.Context, client *Client) error {
	if client.Status == "" {
		client.Status = ClientStatusActive
	}
	if client.Source == "" {
		client.Source = ClientSourceManual
	}
	return config.GetDB().WithContext(ctx).Create(client).Error
}

// UpdateClientFields writes only the given columns of one client.
func UpdateClientFields(ctx context.Context, tenantId string, id int, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := config.GetDB().WithContext(ctx).
		Model(&Client{}).
		Where("id = ? AND tenant_id = ?", id, tenantId).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
