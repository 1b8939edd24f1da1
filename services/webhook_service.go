package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Ziina webhook event types.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.failed"
)

// WebhookOutcome says what a delivered webhook did.
type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeNotFound  WebhookOutcome = "not_found"
	OutcomeIgnored   WebhookOutcome = "ignored"
)

// webhookEvent accepts both the current "type" field and the legacy "event".
type webhookEvent struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

func (e webhookEvent) name() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Event
}

// WebhookService reconciles orders with payment notifications.
type WebhookService struct {
	db       *gorm.DB
	verifier SignatureVerifier
	events   EventPublisher
	notifier OrderNotifier
}

func NewWebhookService(db *gorm.DB, verifier SignatureVerifier) *WebhookService {
	return &WebhookService{
		db:       db,
		verifier: verifier,
		events:   nopPublisher{},
	}
}

func (s *WebhookService) WithEvents(p EventPublisher) *WebhookService {
	if p != nil {
		s.events = p
	}
	return s
}

func (s *WebhookService) WithNotifier(n OrderNotifier) *WebhookService {
	s.notifier = n
	return s
}

// HandleWebhook verifies and applies one delivery. Replays are harmless: every
// write is conditional, so an already applied event changes nothing and does
// not notify twice.
func (s *WebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	if !s.verifier.VerifyWebhookSignature(payload, signature) {
		return "", ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	name := event.name()
	if name == "" || event.Data.ID == "" {
		return "", fmt.Errorf("%w: missing event type or data.id", ErrMalformedWebhook)
	}

	log := utils.InfoLogger.WithFields(logrus.Fields{
		"event":      name,
		"payment_id": event.Data.ID,
	})

	if name != EventPaymentSucceeded && name != EventPaymentFailed {
		log.Info("Ignoring unhandled webhook event")
		return OutcomeIgnored, nil
	}

	db := s.db.WithContext(ctx)

	var order models.Order
	err := db.Where("ziina_payment_id = ?", event.Data.ID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event":      name,
			"payment_id": event.Data.ID,
		}).Warn("Webhook for unknown payment intent")
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", storeErr("find order by payment id", err)
	}
	log = log.WithField("reference", order.ReferenceNumber)

	switch name {
	case EventPaymentSucceeded:
		return s.markPaid(ctx, db, &order, log)
	default:
		return s.markFailed(ctx, db, &order, log)
	}
}

func (s *WebhookService) markPaid(ctx context.Context, db *gorm.DB, order *models.Order, log *logrus.Entry) (WebhookOutcome, error) {
	// Only pending orders move to confirmed. Anything an admin already moved on
	// (or cancelled) keeps its status.
	res := db.Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", order.ID, models.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				models.OrderStatusPending, models.OrderStatusConfirmed),
		})
	if res.Error != nil {
		return "", storeErr("mark order paid", res.Error)
	}
	if res.RowsAffected == 0 {
		log.Info("Payment already recorded, duplicate webhook")
		return OutcomeDuplicate, nil
	}

	paid, err := s.reload(ctx, order.ID)
	if err != nil {
		return "", err
	}
	log.WithField("status", paid.Status).Info("Payment received")

	s.events.Publish(EventOrderPaid, paid)
	if s.notifier != nil {
		if err := s.notifier.OrderPaid(ctx, paid); err != nil {
			utils.ErrorLogger.WithField("reference", paid.ReferenceNumber).
				WithError(err).Error("Failed to send payment notification")
		}
	}
	return OutcomeApplied, nil
}

func (s *WebhookService) markFailed(ctx context.Context, db *gorm.DB, order *models.Order, log *logrus.Entry) (WebhookOutcome, error) {
	res := db.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusFailed)
	if res.Error != nil {
		return "", storeErr("mark payment failed", res.Error)
	}
	if res.RowsAffected == 0 {
		log.WithField("payment_status", order.PaymentStatus).Info("Payment failure not applied, order already settled")
		return OutcomeDuplicate, nil
	}

	failed, err := s.reload(ctx, order.ID)
	if err != nil {
		return "", err
	}
	log.Warn("Payment failed")
	s.events.Publish(EventOrderPaymentFailed, failed)
	return OutcomeApplied, nil
}

func (s *WebhookService) reload(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := withItems(s.db.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, lookupErr("order", fmt.Sprint(id), err)
	}
	return &order, nil
}
