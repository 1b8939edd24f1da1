package database

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"gorm.io/gorm"
)

//go:embed catalog.json
var catalogJSON []byte

// DefaultCatalog is the launch menu.
func DefaultCatalog() ([]services.ProductInput, error) {
	var products []services.ProductInput
	if err := json.Unmarshal(catalogJSON, &products); err != nil {
		return nil, fmt.Errorf("decode default catalog: %w", err)
	}
	return products, nil
}

// SeedCatalog loads the default catalog into an empty products table. It is a
// no-op once any product exists.
func SeedCatalog(ctx context.Context, db *gorm.DB, catalog *services.CatalogService) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	products, err := DefaultCatalog()
	if err != nil {
		return 0, err
	}

	for _, p := range products {
		if _, err := catalog.CreateProduct(ctx, p); err != nil {
			return 0, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	utils.InfoLogger.WithField("products", len(products)).Info("Seeded default catalog")
	return len(products), nil
}
