package models

import (
	"log"

	"github.com/mmdatafocus/leasing_backend/config"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table of the service on db.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&BillingEntity{}, &Client{}, &Contract{},
		&IdempotencyKey{}, &ImportRun{}, &ImportRunError{},
		&Leaser{},
		&Offer{}, &OfferEquipment{},
	)
}

func MigrateTable() {
	if err := AutoMigrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
