package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/douxbatter/storefront/config"
	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	dateLayout       = "2006-01-02"
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var (
	// Client-sent amounts may differ from ours by at most this much.
	priceTolerance = decimal.RequireFromString("0.01")
	phonePattern   = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,19}$`)
)

// CatalogLookup resolves the variant a cart line refers to.
type CatalogLookup interface {
	FindVariant(ctx context.Context, productID, variantID string) (*models.Product, *models.ProductVariant, error)
}

type CreateOrderRequest struct {
	CustomerName     string             `json:"customerName"`
	CustomerPhone    string             `json:"customerPhone"`
	CustomerEmail    *string            `json:"customerEmail"`
	City             string             `json:"city"`
	DeliveryAddress  string             `json:"deliveryAddress"`
	DeliveryType     string             `json:"deliveryType"`
	DeliveryDate     string             `json:"deliveryDate"`
	DeliveryTimeSlot *string            `json:"deliveryTimeSlot"`
	Items            []OrderItemRequest `json:"items"`
	Subtotal         *decimal.Decimal   `json:"subtotal"`
	Total            *decimal.Decimal   `json:"total"`
}

type OrderItemRequest struct {
	ProductID      string           `json:"productId"`
	ProductName    string           `json:"productName"`
	VariantID      string           `json:"variantId"`
	VariantName    string           `json:"variantName"`
	Quantity       int              `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	SelectedAddOns []string         `json:"selectedAddOns"`
}

type CheckoutResult struct {
	ReferenceNumber string        `json:"referenceNumber"`
	PaymentURL      string        `json:"paymentUrl"`
	WhatsAppURL     string        `json:"whatsAppUrl,omitempty"`
	Order           *models.Order `json:"-"`
}

type OrderFilter struct {
	Status        string
	PaymentStatus string
	Page          int
	Limit         int
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// OrderSummary is a list row: the order without its lines, plus how many units
// it carries.
type OrderSummary struct {
	models.Order
	Units int `json:"itemCount"`
}

type OrderPage struct {
	Orders     []OrderSummary `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

type OrderPatch struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
	AdminNotes    *string `json:"adminNotes"`
}

type OrderStats struct {
	TotalOrders     int64            `json:"totalOrders"`
	OrdersToday     int64            `json:"ordersToday"`
	ByStatus        map[string]int64 `json:"byStatus"`
	ByPaymentStatus map[string]int64 `json:"byPaymentStatus"`
	PaidRevenue     decimal.Decimal  `json:"paidRevenue"`
}

type OrderService struct {
	db       *gorm.DB
	catalog  CatalogLookup
	refs     *ReferenceGenerator
	gateway  PaymentGateway
	fees     config.DeliveryConfig
	events   EventPublisher
	whatsApp *WhatsAppLinker
}

func NewOrderService(db *gorm.DB, catalog CatalogLookup, refs *ReferenceGenerator, gateway PaymentGateway, fees config.DeliveryConfig) *OrderService {
	return &OrderService{
		db:      db,
		catalog: catalog,
		refs:    refs,
		gateway: gateway,
		fees:    fees,
		events:  nopPublisher{},
	}
}

func (s *OrderService) WithEvents(p EventPublisher) *OrderService {
	if p != nil {
		s.events = p
	}
	return s
}

func (s *OrderService) WithWhatsApp(l *WhatsAppLinker) *OrderService {
	s.whatsApp = l
	return s
}

// DeliveryFee is the configured fee for a delivery type.
func (s *OrderService) DeliveryFee(deliveryType string) decimal.Decimal {
	if deliveryType == models.DeliveryTypeExpress {
		return s.fees.ExpressFee
	}
	return s.fees.StandardFee
}

// CreateOrder validates and prices the cart against the catalog, stores the
// order and opens a payment intent for it.
//
// The order is committed before the gateway is called. If the gateway fails the
// order stays pending and the returned result is non-nil alongside the error,
// so the caller can still report the reference number.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CheckoutResult, error) {
	order, err := s.assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := s.refs.Next(ctx, tx)
		if err != nil {
			return err
		}
		order.ReferenceNumber = ref
		if err := tx.Create(order).Error; err != nil {
			return storeErr("insert order", err)
		}
		return nil
	})
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"operation": "create order",
			"customer":  order.CustomerName,
		}).WithError(err).Error("Failed to store order")
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reference": order.ReferenceNumber,
		"total":     order.Total.StringFixed(2),
		"delivery":  order.DeliveryType,
	}).Info("Order created")
	s.events.Publish(EventOrderCreated, order)

	result := &CheckoutResult{ReferenceNumber: order.ReferenceNumber, Order: order}
	if s.whatsApp != nil {
		result.WhatsAppURL = s.whatsApp.OrderURL(order)
	}

	intent, err := s.openIntent(ctx, order)
	if err != nil {
		return result, err
	}
	result.PaymentURL = intent.RedirectURL
	return result, nil
}

// openIntent creates a payment intent and records its id on the order.
func (s *OrderService) openIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	intent, err := s.gateway.CreatePaymentIntent(ctx, order)
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"reference": order.ReferenceNumber,
			"operation": "create payment intent",
		}).WithError(err).Error("Payment gateway call failed, order left pending")
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", order.ID, models.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"ziina_payment_id": intent.ID,
			"payment_status":   models.PaymentStatusPending,
		})
	if res.Error != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"reference":  order.ReferenceNumber,
			"payment_id": intent.ID,
		}).WithError(res.Error).Error("Failed to attach payment intent to order")
		return nil, storeErr("attach payment intent", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &ConflictError{Message: "order is already paid"}
	}

	order.ZiinaPaymentID = &intent.ID
	order.PaymentStatus = models.PaymentStatusPending
	return intent, nil
}

func (s *OrderService) assemble(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	v := &ValidationError{}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		v.Add("customerName", "is required")
	}

	phone := strings.TrimSpace(req.CustomerPhone)
	if phone == "" {
		v.Add("customerPhone", "is required")
	} else if !phonePattern.MatchString(phone) {
		v.Add("customerPhone", "must be a valid phone number")
	}

	var email *string
	if req.CustomerEmail != nil {
		if e := strings.TrimSpace(*req.CustomerEmail); e != "" {
			if addr, err := mail.ParseAddress(e); err != nil || addr.Address != e {
				v.Add("customerEmail", "must be a valid email address")
			}
			email = &e
		}
	}

	city := strings.TrimSpace(req.City)
	if city == "" {
		v.Add("city", "is required")
	} else if !models.ValidCity(city) {
		v.Add("city", fmt.Sprintf("we do not deliver to %q", city))
	}

	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		v.Add("deliveryAddress", "is required")
	}

	deliveryType := strings.TrimSpace(req.DeliveryType)
	if deliveryType == "" {
		deliveryType = models.DeliveryTypeStandard
	}

	date := strings.TrimSpace(req.DeliveryDate)
	if date == "" {
		v.Add("deliveryDate", "is required")
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		v.Add("deliveryDate", "must be a date in YYYY-MM-DD format")
	}

	var slot *string
	switch deliveryType {
	case models.DeliveryTypeStandard:
		// Standard delivery has no time window.
	case models.DeliveryTypeExpress:
		if models.ValidCity(city) && !models.ExpressCity(city) {
			v.Add("deliveryType", fmt.Sprintf("express delivery is not available in %s", city))
		}
		if req.DeliveryTimeSlot == nil || strings.TrimSpace(*req.DeliveryTimeSlot) == "" {
			v.Add("deliveryTimeSlot", "is required for express delivery")
		} else if trimmed := strings.TrimSpace(*req.DeliveryTimeSlot); !models.ValidTimeSlot(trimmed) {
			v.Add("deliveryTimeSlot", "must be one of "+strings.Join(models.DeliveryTimeSlots, ", "))
		} else {
			slot = &trimmed
		}
	default:
		v.Add("deliveryType", "must be standard or express")
	}

	if len(req.Items) == 0 {
		v.Add("items", "at least one item is required")
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for i, line := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		ok := true

		if line.Quantity < 1 {
			v.Add(field+".quantity", "must be at least 1")
			ok = false
		}
		if line.ProductID == "" || line.VariantID == "" {
			v.Add(field, "productId and variantId are required")
			continue
		}

		product, variant, err := s.catalog.FindVariant(ctx, line.ProductID, line.VariantID)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				v.Add(field+".variantId", "unknown product variant")
				continue
			}
			return nil, err
		}

		if line.UnitPrice != nil && line.UnitPrice.Sub(variant.Price).Abs().GreaterThan(priceTolerance) {
			v.Add(field+".unitPrice", fmt.Sprintf("price has changed to %s", utils.FormatAED(variant.Price)))
			ok = false
		}

		for _, addOn := range line.SelectedAddOns {
			if !models.ValidAddOn(addOn) {
				v.Add(field+".selectedAddOns", fmt.Sprintf("unknown add-on %q", addOn))
				ok = false
			}
		}
		if len(line.SelectedAddOns) > variant.IncludedAddOns {
			v.Add(field+".selectedAddOns", fmt.Sprintf("at most %d add-ons can be selected", variant.IncludedAddOns))
			ok = false
		}

		if !ok {
			continue
		}

		lineTotal := variant.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		var addOns []string
		if len(line.SelectedAddOns) > 0 {
			addOns = append(addOns, line.SelectedAddOns...)
		}
		items = append(items, models.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			VariantID:      variant.ID,
			VariantName:    variant.Name,
			Quantity:       line.Quantity,
			UnitPrice:      variant.Price,
			TotalPrice:     lineTotal,
			SelectedAddOns: addOns,
		})
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	fee := s.DeliveryFee(deliveryType)
	total := subtotal.Add(fee)

	if req.Subtotal != nil && req.Subtotal.Sub(subtotal).Abs().GreaterThan(priceTolerance) {
		v.Add("subtotal", fmt.Sprintf("does not match the cart, expected %s", utils.FormatAED(subtotal)))
	}
	if req.Total != nil && req.Total.Sub(total).Abs().GreaterThan(priceTolerance) {
		v.Add("total", fmt.Sprintf("does not match the cart, expected %s", utils.FormatAED(total)))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return &models.Order{
		CustomerName:     name,
		CustomerPhone:    phone,
		CustomerEmail:    email,
		City:             city,
		DeliveryAddress:  address,
		DeliveryType:     deliveryType,
		DeliveryDate:     date,
		DeliveryTimeSlot: slot,
		Subtotal:         subtotal,
		DeliveryFee:      fee,
		Total:            total,
		Status:           models.OrderStatusPending,
		PaymentStatus:    models.PaymentStatusPending,
		Items:            items,
	}, nil
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id")
	})
}

// GetOrderByReference is the customer-facing lookup.
func (s *OrderService) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := withItems(s.db.WithContext(ctx)).
		Where("reference_number = ?", reference).
		First(&order).Error
	if err != nil {
		return nil, lookupErr("order", reference, err)
	}
	return &order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := withItems(s.db.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, lookupErr("order", fmt.Sprint(id), err)
	}
	return &order, nil
}

// ListOrders returns one page of orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) (*OrderPage, error) {
	v := &ValidationError{}
	if filter.Status != "" && !models.ValidOrderStatus(filter.Status) {
		v.Add("status", "must be one of "+strings.Join(models.OrderStatuses, ", "))
	}
	if filter.PaymentStatus != "" && !models.ValidPaymentStatus(filter.PaymentStatus) {
		v.Add("payment_status", "must be one of "+strings.Join(models.PaymentStatuses, ", "))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, storeErr("count orders", err)
	}

	var orders []models.Order
	err := query.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, storeErr("list orders", err)
	}

	counts, err := s.itemCounts(ctx, orders)
	if err != nil {
		return nil, err
	}

	summaries := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		summaries = append(summaries, OrderSummary{Order: o, Units: counts[o.ID]})
	}

	return &OrderPage{
		Orders: summaries,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

func (s *OrderService) itemCounts(ctx context.Context, orders []models.Order) (map[uint]int, error) {
	counts := make(map[uint]int, len(orders))
	if len(orders) == 0 {
		return counts, nil
	}

	ids := make([]uint, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	var rows []struct {
		OrderID uint
		Units   int
	}
	err := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Select("order_id, SUM(quantity) AS units").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("count order items", err)
	}
	for _, r := range rows {
		counts[r.OrderID] = r.Units
	}
	return counts, nil
}

// UpdateOrder applies an admin edit. Status changes only land if the order still
// has the statuses read at the start, so a payment confirmation arriving in the
// meantime is reported as a conflict instead of being overwritten.
func (s *OrderService) UpdateOrder(ctx context.Context, id uint, patch OrderPatch) (*models.Order, error) {
	v := &ValidationError{}
	if patch.Status == nil && patch.PaymentStatus == nil && patch.AdminNotes == nil {
		v.Add("body", "nothing to update")
	}
	if patch.Status != nil && !models.ValidOrderStatus(*patch.Status) {
		v.Add("status", "must be one of "+strings.Join(models.OrderStatuses, ", "))
	}
	if patch.PaymentStatus != nil && !models.ValidPaymentStatus(*patch.PaymentStatus) {
		v.Add("paymentStatus", "must be one of "+strings.Join(models.PaymentStatuses, ", "))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var current models.Order
	if err := db.First(&current, id).Error; err != nil {
		return nil, lookupErr("order", fmt.Sprint(id), err)
	}

	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.PaymentStatus != nil {
		updates["payment_status"] = *patch.PaymentStatus
	}
	if patch.AdminNotes != nil {
		if notes := strings.TrimSpace(*patch.AdminNotes); notes != "" {
			updates["admin_notes"] = notes
		} else {
			updates["admin_notes"] = nil
		}
	}

	query := db.Model(&models.Order{}).Where("id = ?", id)
	if patch.Status != nil || patch.PaymentStatus != nil {
		query = query.Where("status = ? AND payment_status = ?", current.Status, current.PaymentStatus)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return nil, storeErr("update order", res.Error)
	}
	if res.RowsAffected == 0 {
		var remaining int64
		if err := db.Model(&models.Order{}).Where("id = ?", id).Count(&remaining).Error; err != nil {
			return nil, storeErr("update order", err)
		}
		if remaining == 0 {
			return nil, &NotFoundError{Resource: "order", Key: fmt.Sprint(id)}
		}
		return nil, &ConflictError{Message: "order changed while you were editing it, reload and try again"}
	}

	updated, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reference":      updated.ReferenceNumber,
		"status":         updated.Status,
		"payment_status": updated.PaymentStatus,
	}).Info("Order updated by admin")
	s.events.Publish(EventOrderUpdated, updated)

	return updated, nil
}

// DeleteOrder removes an order and its lines.
func (s *OrderService) DeleteOrder(ctx context.Context, id uint) error {
	var reference string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Select("id", "reference_number").First(&order, id).Error; err != nil {
			return lookupErr("order", fmt.Sprint(id), err)
		}
		reference = order.ReferenceNumber

		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return storeErr("delete order items", err)
		}
		if err := tx.Delete(&models.Order{}, id).Error; err != nil {
			return storeErr("delete order", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.InfoLogger.WithField("reference", reference).Info("Order deleted by admin")
	s.events.Publish(EventOrderDeleted, map[string]interface{}{"id": id, "referenceNumber": reference})
	return nil
}

// RetryPayment opens a fresh payment page for an order whose first attempt was
// abandoned or failed.
func (s *OrderService) RetryPayment(ctx context.Context, reference string) (*CheckoutResult, error) {
	order, err := s.GetOrderByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, &ConflictError{Message: "order is already paid"}
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, &ConflictError{Message: "order has been cancelled"}
	}

	if order.ZiinaPaymentID != nil {
		previous, err := s.gateway.GetPaymentIntent(ctx, *order.ZiinaPaymentID)
		switch {
		case err != nil:
			utils.ErrorLogger.WithFields(logrus.Fields{
				"reference":  reference,
				"payment_id": *order.ZiinaPaymentID,
			}).WithError(err).Warn("Could not check previous payment intent, opening a new one")
		case previous.Status == IntentStatusCompleted:
			return nil, &ConflictError{Message: "payment already completed, confirmation is on its way"}
		}
	}

	intent, err := s.openIntent(ctx, order)
	if err != nil {
		return &CheckoutResult{ReferenceNumber: order.ReferenceNumber, Order: order}, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reference":  reference,
		"payment_id": intent.ID,
	}).Info("Payment retried")

	return &CheckoutResult{
		ReferenceNumber: order.ReferenceNumber,
		PaymentURL:      intent.RedirectURL,
		Order:           order,
	}, nil
}

// OrderStats summarises orders for the admin dashboard. "Today" is the business
// day of the reference generator.
func (s *OrderService) OrderStats(ctx context.Context) (*OrderStats, error) {
	db := s.db.WithContext(ctx)
	stats := &OrderStats{
		ByStatus:        make(map[string]int64, len(models.OrderStatuses)),
		ByPaymentStatus: make(map[string]int64, len(models.PaymentStatuses)),
		PaidRevenue:     decimal.Zero,
	}
	for _, st := range models.OrderStatuses {
		stats.ByStatus[st] = 0
	}
	for _, st := range models.PaymentStatuses {
		stats.ByPaymentStatus[st] = 0
	}

	type bucket struct {
		Bucket string
		Count  int64
	}

	var byStatus []bucket
	if err := db.Model(&models.Order{}).Select("status AS bucket, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, storeErr("count orders by status", err)
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Bucket] = b.Count
		stats.TotalOrders += b.Count
	}

	var byPayment []bucket
	if err := db.Model(&models.Order{}).Select("payment_status AS bucket, COUNT(*) AS count").Group("payment_status").Scan(&byPayment).Error; err != nil {
		return nil, storeErr("count orders by payment status", err)
	}
	for _, b := range byPayment {
		stats.ByPaymentStatus[b.Bucket] = b.Count
	}

	var revenue decimal.NullDecimal
	row := db.Model(&models.Order{}).
		Select("SUM(total)").
		Where("payment_status = ?", models.PaymentStatusPaid).
		Row()
	if err := row.Scan(&revenue); err != nil {
		return nil, storeErr("sum paid revenue", err)
	}
	if revenue.Valid {
		stats.PaidRevenue = revenue.Decimal
	}

	prefix := s.refs.DayPrefix(s.refs.now())
	if err := db.Model(&models.Order{}).Where("reference_number LIKE ?", prefix+"%").Count(&stats.OrdersToday).Error; err != nil {
		return nil, storeErr("count today's orders", err)
	}

	return stats, nil
}
