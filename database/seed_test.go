package database

import (
	"context"
	"testing"

	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Migrate(db))

	for _, m := range Models {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	// Running again against an existing schema is a no-op.
	require.NoError(t, Migrate(db))
}

func TestDefaultCatalog(t *testing.T) {
	products, err := DefaultCatalog()
	require.NoError(t, err)
	require.Len(t, products, 10)

	seen := map[string]bool{}
	for _, p := range products {
		assert.True(t, models.ValidCategory(p.Category), p.ID)
		assert.NotEmpty(t, p.Variants, p.ID)
		for _, v := range p.Variants {
			assert.False(t, seen[v.ID], "duplicate variant %s", v.ID)
			seen[v.ID] = true
			assert.True(t, v.Price.IsPositive(), v.ID)
		}
	}
}

func TestSeedCatalog(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Migrate(db))
	catalog := services.NewCatalogService(db)
	ctx := context.Background()

	n, err := SeedCatalog(ctx, db, catalog)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	product, variant, err := catalog.FindVariant(ctx, "mini-cookies", "mini-cookies-300g")
	require.NoError(t, err)
	assert.Equal(t, "Mini Cookies", product.Name)
	assert.Equal(t, "90", variant.Price.String())
	assert.Equal(t, 2, variant.IncludedAddOns)

	var variants int64
	require.NoError(t, db.Model(&models.ProductVariant{}).Count(&variants).Error)
	assert.EqualValues(t, 25, variants)

	n, err = SeedCatalog(ctx, db, catalog)
	require.NoError(t, err)
	assert.Zero(t, n)

	var products int64
	require.NoError(t, db.Model(&models.Product{}).Count(&products).Error)
	assert.EqualValues(t, 10, products)
}
