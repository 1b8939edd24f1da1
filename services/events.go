package services

import (
	"context"

	"github.com/douxbatter/storefront/models"
)

// Live feed event names.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
	EventOrderUpdated       = "order.updated"
	EventOrderDeleted       = "order.deleted"
)

// EventPublisher fans order changes out to connected admin dashboards.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

// OrderNotifier tells the shop about orders that need attention.
type OrderNotifier interface {
	OrderPaid(ctx context.Context, order *models.Order) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}
