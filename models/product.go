package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string           `gorm:"type:varchar(255);not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	Category    string           `gorm:"type:varchar(64);not null;index" json:"category"`
	Subcategory *string          `gorm:"type:varchar(64)" json:"subcategory,omitempty"`
	IsActive    bool             `gorm:"not null" json:"isActive"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"variants"`
	Images      []ProductImage   `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"images"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type ProductVariant struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProductID      string          `gorm:"type:varchar(64);not null;index" json:"productId"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Price          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Description    *string         `gorm:"type:text" json:"description,omitempty"`
	IncludedAddOns int             `gorm:"not null;default:0" json:"includedAddOns"`
}

// ProductImage display order is explicit so admins can reorder.
type ProductImage struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ProductID    string `gorm:"type:varchar(64);not null;index" json:"productId"`
	ImageURL     string `gorm:"type:varchar(512);not null" json:"imageUrl"`
	DisplayOrder int    `gorm:"not null;default:0" json:"displayOrder"`
}

// ProductCategories mirrors the storefront navigation.
var ProductCategories = []string{
	"Cookies",
	"Brownies",
	"Tiramisu",
	"Rocky Road",
	"Gathering Boxes",
	"Custom Orders",
}

func ValidCategory(c string) bool {
	return contains(ProductCategories, c)
}
