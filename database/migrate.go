package database

import (
	"fmt"

	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"gorm.io/gorm"
)

// Models lists every table the service owns, parents first.
var Models = []interface{}{
	&models.Product{},
	&models.ProductVariant{},
	&models.ProductImage{},
	&models.Order{},
	&models.OrderItem{},
	&models.OrderSequence{},
	&models.AdminSession{},
}

// Migrate creates or updates the schema and checks the indexes the order flow
// depends on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	required := []struct {
		model interface{}
		index string
	}{
		{&models.Order{}, "ReferenceNumber"},
		{&models.Order{}, "ZiinaPaymentID"},
		{&models.OrderItem{}, "OrderID"},
	}
	for _, r := range required {
		if !db.Migrator().HasIndex(r.model, r.index) {
			return fmt.Errorf("index on %T.%s is missing", r.model, r.index)
		}
	}

	utils.InfoLogger.WithField("tables", len(Models)).Info("Database schema is up to date")
	return nil
}
