package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderItem is one cart line captured at checkout. Product and variant names are
// snapshots so historical orders survive catalog edits.
type OrderItem struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	OrderID        uint                        `gorm:"not null;index" json:"orderId"`
	ProductID      string                      `gorm:"type:varchar(64);not null" json:"productId"`
	ProductName    string                      `gorm:"type:varchar(255);not null" json:"productName"`
	VariantID      string                      `gorm:"type:varchar(64);not null" json:"variantId"`
	VariantName    string                      `gorm:"type:varchar(255);not null" json:"variantName"`
	Quantity       int                         `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal             `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	TotalPrice     decimal.Decimal             `gorm:"type:decimal(10,2);not null" json:"totalPrice"`
	SelectedAddOns datatypes.JSONSlice[string] `json:"selectedAddOns,omitempty"`
}

// AddOnOptions is the closed set of dipping sauces a customer may pick for
// variants that include them.
var AddOnOptions = []string{
	"Nutella",
	"Lotus Biscoff",
	"Pistachio",
	"White Chocolate",
	"Salted Caramel",
	"Kinder",
}

// ValidAddOn reports whether name is one of AddOnOptions.
func ValidAddOn(name string) bool {
	return contains(AddOnOptions, name)
}
