package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/douxbatter/storefront/config"
	"github.com/douxbatter/storefront/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dubai = mustLoad("Asia/Dubai")

// 14:00 in Dubai.
var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection, otherwise every new one sees a fresh empty database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.ProductImage{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderSequence{},
		&models.AdminSession{},
	))
	return db
}

// isNotFound is for assertions that only care about absence.
func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var testFees = config.DeliveryConfig{
	StandardFee: decimal.NewFromInt(35),
	ExpressFee:  decimal.NewFromInt(60),
}

func seedCatalog(t *testing.T, db *gorm.DB) *CatalogService {
	t.Helper()
	catalog := NewCatalogService(db)
	ctx := context.Background()

	_, err := catalog.CreateProduct(ctx, ProductInput{
		ID:          "mini-cookies",
		Name:        "Mini Cookies",
		Description: "Bite-sized cookies served with dipping sauces.",
		Category:    "Cookies",
		Images:      []string{"/images/mini-cookies-1.jpg", "/images/mini-cookies-2.jpg"},
		Variants: []VariantInput{
			{ID: "mini-cookies-300g", Name: "Box of 300g", Price: dec("90"), IncludedAddOns: 2},
			{ID: "mini-cookies-1kg", Name: "Box of 1kg", Price: dec("285"), IncludedAddOns: 8},
		},
	})
	require.NoError(t, err)

	_, err = catalog.CreateProduct(ctx, ProductInput{
		ID:       "tiramisu",
		Name:     "Tiramisu",
		Category: "Tiramisu",
		Variants: []VariantInput{
			{ID: "tiramisu-m", Name: "M", Price: dec("180")},
		},
	})
	require.NoError(t, err)

	inactive := false
	_, err = catalog.CreateProduct(ctx, ProductInput{
		ID:       "seasonal-box",
		Name:     "Seasonal Box",
		Category: "Gathering Boxes",
		IsActive: &inactive,
		Variants: []VariantInput{
			{ID: "seasonal-box-1", Name: "One box", Price: dec("120")},
		},
	})
	require.NoError(t, err)

	return catalog
}

// fakeGateway hands out sequential intent ids.
type fakeGateway struct {
	mu           sync.Mutex
	err          error
	getErr       error
	intentStatus string
	created      []string
	orders       []string
}

func (f *fakeGateway) CreatePaymentIntent(_ context.Context, order *models.Order) (*PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("pi_%d", len(f.created)+1)
	f.created = append(f.created, id)
	f.orders = append(f.orders, order.ReferenceNumber)
	return &PaymentIntent{
		ID:          id,
		RedirectURL: "https://pay.ziina.test/" + id,
		Status:      "requires_payment_instrument",
		Amount:      order.Total.Shift(2).IntPart(),
	}, nil
}

func (f *fakeGateway) GetPaymentIntent(_ context.Context, id string) (*PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &PaymentIntent{ID: id, Status: f.intentStatus}, nil
}

type recordedEvent struct {
	name    string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: event, payload: payload})
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	paid []string
}

func (n *fakeNotifier) OrderPaid(_ context.Context, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid = append(n.paid, order.ReferenceNumber)
	return nil
}

type testEnv struct {
	db      *gorm.DB
	catalog *CatalogService
	gateway *fakeGateway
	events  *fakePublisher
	refs    *ReferenceGenerator
	orders  *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	env := &testEnv{
		db:      db,
		catalog: seedCatalog(t, db),
		gateway: &fakeGateway{},
		events:  &fakePublisher{},
		refs:    NewReferenceGenerator(dubai).WithClock(func() time.Time { return fixedNow }),
	}
	env.orders = NewOrderService(db, env.catalog, env.refs, env.gateway, testFees).
		WithEvents(env.events).
		WithWhatsApp(NewWhatsAppLinker("+971500000000"))
	return env
}

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		CustomerName:    "Aisha Khan",
		CustomerPhone:   "+971501234567",
		CustomerEmail:   strPtr("aisha@example.com"),
		City:            "Dubai",
		DeliveryAddress: "Villa 12, Street 4, Jumeirah 1",
		DeliveryType:    models.DeliveryTypeStandard,
		DeliveryDate:    "2024-03-18",
		Items: []OrderItemRequest{
			{
				ProductID:      "mini-cookies",
				VariantID:      "mini-cookies-300g",
				Quantity:       2,
				UnitPrice:      decPtr("90"),
				SelectedAddOns: []string{"Nutella", "Pistachio"},
			},
		},
	}
}
