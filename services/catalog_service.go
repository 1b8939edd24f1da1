package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VariantInput struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Description    *string         `json:"description"`
	IncludedAddOns int             `json:"includedAddOns"`
}

type ProductInput struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Subcategory *string        `json:"subcategory"`
	IsActive    *bool          `json:"isActive"`
	Images      []string       `json:"images"`
	Variants    []VariantInput `json:"variants"`
}

// ProductPatch updates only the fields that are set. Variants and Images, when
// present, replace the existing ones wholesale.
type ProductPatch struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Subcategory *string         `json:"subcategory"`
	IsActive    *bool           `json:"isActive"`
	Images      *[]string       `json:"images"`
	Variants    *[]VariantInput `json:"variants"`
}

type VariantPatch struct {
	Name           *string          `json:"name"`
	Price          *decimal.Decimal `json:"price"`
	Description    *string          `json:"description"`
	IncludedAddOns *int             `json:"includedAddOns"`
}

type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func withCatalog(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("price, id") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order, id") })
}

// ListProducts returns the catalog grouped by category. Inactive products are
// only included for the admin.
func (s *CatalogService) ListProducts(ctx context.Context, category string, includeInactive bool) ([]models.Product, error) {
	query := withCatalog(s.db.WithContext(ctx))
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var products []models.Product
	if err := query.Order("category, name").Find(&products).Error; err != nil {
		return nil, storeErr("list products", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string, includeInactive bool) (*models.Product, error) {
	query := withCatalog(s.db.WithContext(ctx)).Where("id = ?", id)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var product models.Product
	if err := query.First(&product).Error; err != nil {
		return nil, lookupErr("product", id, err)
	}
	return &product, nil
}

// Categories lists the categories that currently have something for sale, in
// navigation order.
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	var present []string
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("is_active = ?", true).
		Distinct().
		Pluck("category", &present).Error
	if err != nil {
		return nil, storeErr("list categories", err)
	}

	categories := make([]string, 0, len(present))
	for _, c := range models.ProductCategories {
		for _, p := range present {
			if p == c {
				categories = append(categories, c)
				break
			}
		}
	}
	return categories, nil
}

// FindVariant resolves a cart line. Inactive products cannot be ordered.
func (s *CatalogService) FindVariant(ctx context.Context, productID, variantID string) (*models.Product, *models.ProductVariant, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", productID, true).
		First(&product).Error
	if err != nil {
		return nil, nil, lookupErr("product", productID, err)
	}

	var variant models.ProductVariant
	err = s.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", variantID, productID).
		First(&variant).Error
	if err != nil {
		return nil, nil, lookupErr("variant", variantID, err)
	}
	return &product, &variant, nil
}

func validateVariant(v *ValidationError, field string, in VariantInput) {
	if strings.TrimSpace(in.ID) == "" {
		v.Add(field+".id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		v.Add(field+".name", "is required")
	}
	if !in.Price.IsPositive() {
		v.Add(field+".price", "must be greater than zero")
	}
	if in.IncludedAddOns < 0 {
		v.Add(field+".includedAddOns", "must not be negative")
	}
}

func validateVariants(v *ValidationError, variants []VariantInput) {
	if len(variants) == 0 {
		v.Add("variants", "at least one variant is required")
	}
	seen := make(map[string]bool, len(variants))
	for i, in := range variants {
		validateVariant(v, fmt.Sprintf("variants[%d]", i), in)
		if seen[in.ID] {
			v.Add(fmt.Sprintf("variants[%d].id", i), "is duplicated")
		}
		seen[in.ID] = true
	}
}

// variantsOwnedElsewhere rejects variant ids that already belong to another
// product. Variant ids are unique across the whole catalog.
func variantsOwnedElsewhere(tx *gorm.DB, productID string, in []VariantInput) error {
	ids := make([]string, 0, len(in))
	for _, v := range in {
		ids = append(ids, strings.TrimSpace(v.ID))
	}
	if len(ids) == 0 {
		return nil
	}

	var taken []models.ProductVariant
	err := tx.Select("id", "product_id").
		Where("id IN ? AND product_id <> ?", ids, productID).
		Order("id").
		Find(&taken).Error
	if err != nil {
		return storeErr("check variant ids", err)
	}
	if len(taken) > 0 {
		return &ConflictError{Message: fmt.Sprintf("variant %s already belongs to product %s", taken[0].ID, taken[0].ProductID)}
	}
	return nil
}

func buildVariants(productID string, in []VariantInput) []models.ProductVariant {
	out := make([]models.ProductVariant, 0, len(in))
	for _, v := range in {
		out = append(out, models.ProductVariant{
			ID:             strings.TrimSpace(v.ID),
			ProductID:      productID,
			Name:           strings.TrimSpace(v.Name),
			Price:          v.Price,
			Description:    v.Description,
			IncludedAddOns: v.IncludedAddOns,
		})
	}
	return out
}

func buildImages(productID string, urls []string) []models.ProductImage {
	out := make([]models.ProductImage, 0, len(urls))
	for i, u := range urls {
		out = append(out, models.ProductImage{ProductID: productID, ImageURL: u, DisplayOrder: i})
	}
	return out
}

// CreateProduct stores a product with its variants and images in one go.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	v := &ValidationError{}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		v.Add("id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "is required")
	}
	if !models.ValidCategory(in.Category) {
		v.Add("category", "must be one of "+strings.Join(models.ProductCategories, ", "))
	}
	validateVariants(v, in.Variants)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	product := models.Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    in.Category,
		Subcategory: in.Subcategory,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Variants:    buildVariants(id, in.Variants),
		Images:      buildImages(id, in.Images),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return storeErr("check product id", err)
		}
		if exists > 0 {
			return &ConflictError{Message: fmt.Sprintf("product %s already exists", id)}
		}
		if err := variantsOwnedElsewhere(tx, id, in.Variants); err != nil {
			return err
		}
		if err := tx.Omit("Variants", "Images").Create(&product).Error; err != nil {
			return storeErr("create product", err)
		}
		if len(product.Variants) > 0 {
			if err := tx.Create(&product.Variants).Error; err != nil {
				return storeErr("create variants", err)
			}
		}
		if len(product.Images) > 0 {
			if err := tx.Create(&product.Images).Error; err != nil {
				return storeErr("create images", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithField("product", id).Info("Product created")
	return s.GetProduct(ctx, id, true)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	v := &ValidationError{}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			v.Add("name", "must not be empty")
		}
		updates["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Category != nil {
		if !models.ValidCategory(*patch.Category) {
			v.Add("category", "must be one of "+strings.Join(models.ProductCategories, ", "))
		}
		updates["category"] = *patch.Category
	}
	if patch.Subcategory != nil {
		if *patch.Subcategory == "" {
			updates["subcategory"] = nil
		} else {
			updates["subcategory"] = *patch.Subcategory
		}
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if patch.Variants != nil {
		validateVariants(v, *patch.Variants)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Select("id").First(&product, "id = ?", id).Error; err != nil {
			return lookupErr("product", id, err)
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return storeErr("update product", err)
			}
		}

		if patch.Variants != nil {
			if err := variantsOwnedElsewhere(tx, id, *patch.Variants); err != nil {
				return err
			}
			if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
				return storeErr("replace variants", err)
			}
			variants := buildVariants(id, *patch.Variants)
			if err := tx.Create(&variants).Error; err != nil {
				return storeErr("replace variants", err)
			}
		}

		if patch.Images != nil {
			if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
				return storeErr("replace images", err)
			}
			if images := buildImages(id, *patch.Images); len(images) > 0 {
				if err := tx.Create(&images).Error; err != nil {
					return storeErr("replace images", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetProduct(ctx, id, true)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return storeErr("delete images", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return storeErr("delete variants", err)
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return storeErr("delete product", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "product", Key: id}
		}
		return nil
	})
}

func (s *CatalogService) UpdateVariant(ctx context.Context, id string, patch VariantPatch) (*models.ProductVariant, error) {
	v := &ValidationError{}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			v.Add("name", "must not be empty")
		}
		updates["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Price != nil {
		if !patch.Price.IsPositive() {
			v.Add("price", "must be greater than zero")
		}
		updates["price"] = *patch.Price
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.IncludedAddOns != nil {
		if *patch.IncludedAddOns < 0 {
			v.Add("includedAddOns", "must not be negative")
		}
		updates["included_add_ons"] = *patch.IncludedAddOns
	}
	if len(updates) == 0 {
		v.Add("body", "nothing to update")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&models.ProductVariant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, storeErr("update variant", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{Resource: "variant", Key: id}
	}

	var variant models.ProductVariant
	if err := db.First(&variant, "id = ?", id).Error; err != nil {
		return nil, lookupErr("variant", id, err)
	}
	return &variant, nil
}

// DeleteVariant refuses to remove a product's last variant.
func (s *CatalogService) DeleteVariant(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var variant models.ProductVariant
		if err := tx.First(&variant, "id = ?", id).Error; err != nil {
			return lookupErr("variant", id, err)
		}

		var siblings int64
		if err := tx.Model(&models.ProductVariant{}).Where("product_id = ?", variant.ProductID).Count(&siblings).Error; err != nil {
			return storeErr("count variants", err)
		}
		if siblings <= 1 {
			return &ConflictError{Message: "a product needs at least one variant"}
		}

		if err := tx.Delete(&models.ProductVariant{}, "id = ?", id).Error; err != nil {
			return storeErr("delete variant", err)
		}
		return nil
	})
}

// ReorderImages sets display order from imageIDs, which must list every image
// of the product exactly once.
func (s *CatalogService) ReorderImages(ctx context.Context, productID string, imageIDs []uint) ([]models.ProductImage, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var images []models.ProductImage
		if err := tx.Where("product_id = ?", productID).Find(&images).Error; err != nil {
			return storeErr("list images", err)
		}
		if len(images) == 0 {
			var count int64
			if err := tx.Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
				return storeErr("find product", err)
			}
			if count == 0 {
				return &NotFoundError{Resource: "product", Key: productID}
			}
		}

		known := make(map[uint]bool, len(images))
		for _, img := range images {
			known[img.ID] = true
		}
		seen := make(map[uint]bool, len(imageIDs))
		for _, id := range imageIDs {
			if !known[id] || seen[id] {
				return &ValidationError{Fields: []FieldError{{Field: "imageIds", Message: "must list each image of the product once"}}}
			}
			seen[id] = true
		}
		if len(seen) != len(known) {
			return &ValidationError{Fields: []FieldError{{Field: "imageIds", Message: "must list each image of the product once"}}}
		}

		for order, id := range imageIDs {
			if err := tx.Model(&models.ProductImage{}).Where("id = ?", id).Update("display_order", order).Error; err != nil {
				return storeErr("reorder images", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var images []models.ProductImage
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("display_order, id").Find(&images).Error; err != nil {
		return nil, storeErr("list images", err)
	}
	return images, nil
}
