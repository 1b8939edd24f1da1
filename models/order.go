package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Order status values. The happy path runs pending → confirmed → preparing →
// ready → delivered; cancelled is terminal.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment status values.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Delivery types.
const (
	DeliveryTypeStandard = "standard"
	DeliveryTypeExpress  = "express"
)

var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var PaymentStatuses = []string{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
}

type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ReferenceNumber  string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"referenceNumber"`
	CustomerName     string          `gorm:"type:varchar(255);not null" json:"customerName"`
	CustomerPhone    string          `gorm:"type:varchar(32);not null" json:"customerPhone"`
	CustomerEmail    *string         `gorm:"type:varchar(255)" json:"customerEmail"`
	City             string          `gorm:"type:varchar(64);not null" json:"city"`
	DeliveryAddress  string          `gorm:"type:text;not null" json:"deliveryAddress"`
	DeliveryType     string          `gorm:"type:varchar(16);not null;default:'standard'" json:"deliveryType"`
	DeliveryDate     string          `gorm:"type:varchar(10);not null" json:"deliveryDate"`
	DeliveryTimeSlot *string         `gorm:"type:varchar(16)" json:"deliveryTimeSlot"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	DeliveryFee      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"deliveryFee"`
	Total            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	Status           string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaymentStatus    string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"paymentStatus"`
	ZiinaPaymentID   *string         `gorm:"type:varchar(64);index" json:"ziinaPaymentId"`
	AdminNotes       *string         `gorm:"type:text" json:"adminNotes"`
	CreatedAt        time.Time       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updatedAt"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items,omitempty"`
}

// IsExpress reports whether the order was placed for express delivery.
func (o *Order) IsExpress() bool {
	return o.DeliveryType == DeliveryTypeExpress
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	return contains(OrderStatuses, s)
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s string) bool {
	return contains(PaymentStatuses, s)
}
