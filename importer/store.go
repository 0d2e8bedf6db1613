package importer

import (
	"context"

	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
)

// Store is the persistence the engine needs. Writes are awaited one at a time.
type Store interface {
	FindClients(ctx context.Context, tenantId string) ([]models.Client, error)
	InsertClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, tenantId string, id int, fields map[string]interface{}) error

	FindLeasers(ctx context.Context, tenantId string) ([]models.Leaser, error)
	BillingEntityExists(ctx context.Context, tenantId string, id int) error

	InsertOffer(ctx context.Context, offer *models.Offer) error
	InsertOfferEquipment(ctx context.Context, line *models.OfferEquipment) error
	InsertContract(ctx context.Context, contract *models.Contract) error
	VoidOffer(ctx context.Context, tenantId string, offerId int) error
}

// GormStore persists through the models package on the shared connection.
type GormStore struct{}

func NewGormStore() *GormStore {
	return &GormStore{}
}

func (GormStore) FindClients(ctx context.Context, tenantId string) ([]models.Client, error) {
	return models.GetClientsByTenant(ctx, tenantId)
}

func (GormStore) InsertClient(ctx context.Context, client *models.Client) error {
	return models.CreateClient(ctx, client)
}

func (GormStore) UpdateClient(ctx context.Context, tenantId string, id int, fields map[string]interface{}) error {
	return models.UpdateClientFields(ctx, tenantId, id, fields)
}

func (GormStore) FindLeasers(ctx context.Context, tenantId string) ([]models.Leaser, error) {
	return models.GetActiveLeasers(ctx, tenantId)
}

func (GormStore) BillingEntityExists(ctx context.Context, tenantId string, id int) error {
	return utils.ValidateResourceId[models.BillingEntity](ctx, tenantId, id)
}

func (GormStore) InsertOffer(ctx context.Context, offer *models.Offer) error {
	return models.CreateOffer(ctx, offer)
}

func (GormStore) InsertOfferEquipment(ctx context.Context, line *models.OfferEquipment) error {
	return models.CreateOfferEquipment(ctx, line)
}

func (GormStore) InsertContract(ctx context.Context, contract *models.Contract) error {
	return models.CreateContract(ctx, contract)
}

func (GormStore) VoidOffer(ctx context.Context, tenantId string, offerId int) error {
	return models.VoidOffer(ctx, tenantId, offerId)
}
