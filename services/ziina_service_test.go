package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/douxbatter/storefront/config"
	"github.com/douxbatter/storefront/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testZiinaConfig(apiURL string) config.ZiinaConfig {
	return config.ZiinaConfig{
		AccessToken:   "test-access-token",
		WebhookSecret: testWebhookSecret,
		APIURL:        apiURL,
		TestMode:      true,
		Timeout:       2 * time.Second,
		MaxRetries:    2,
		Currency:      "AED",
	}
}

func testOrder() *models.Order {
	return &models.Order{ReferenceNumber: "DB-20240315-0001", Total: dec("215")}
}

func TestZiinaService_ValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  config.ZiinaConfig
		wantErr bool
	}{
		{"valid config", testZiinaConfig("https://api.test"), false},
		{"missing access token", config.ZiinaConfig{APIURL: "https://api.test", WebhookSecret: "s"}, true},
		{"missing webhook secret", config.ZiinaConfig{APIURL: "https://api.test", AccessToken: "t"}, true},
		{"unsigned webhooks allowed", config.ZiinaConfig{APIURL: "https://api.test", AccessToken: "t", AllowUnsignedWebhooks: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewZiinaService(tt.config, "https://douxbatter.test").ValidateConfig()
			assert.Equal(t, tt.wantErr, err != nil, "ValidateConfig() error = %v", err)
		})
	}
}

func TestZiinaService_CreatePaymentIntent(t *testing.T) {
	var got paymentIntentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intent", r.URL.Path)
		assert.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","redirect_url":"https://pay.ziina.com/pi_123","status":"requires_payment_instrument","amount":21500,"currency_code":"AED"}`))
	}))
	defer server.Close()

	zs := NewZiinaService(testZiinaConfig(server.URL), "https://douxbatter.test/")
	intent, err := zs.CreatePaymentIntent(context.Background(), testOrder())
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "https://pay.ziina.com/pi_123", intent.RedirectURL)

	assert.Equal(t, int64(21500), got.Amount)
	assert.Equal(t, "AED", got.CurrencyCode)
	assert.Equal(t, "DouxBatter Order #DB-20240315-0001", got.Message)
	assert.Equal(t, "https://douxbatter.test/payment-success?ref=DB-20240315-0001", got.SuccessURL)
	assert.Equal(t, "https://douxbatter.test/payment-failed?ref=DB-20240315-0001", got.FailureURL)
	assert.Equal(t, "https://douxbatter.test/payment-cancelled?ref=DB-20240315-0001", got.CancelURL)
	assert.True(t, got.Test)
}

func TestZiinaService_RetriesTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"message":"try later"}`))
			return
		}
		w.Write([]byte(`{"id":"pi_ok","redirect_url":"https://pay.ziina.com/pi_ok"}`))
	}))
	defer server.Close()

	zs := NewZiinaService(testZiinaConfig(server.URL), "https://douxbatter.test").WithBackoff(time.Millisecond)
	intent, err := zs.CreatePaymentIntent(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "pi_ok", intent.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestZiinaService_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	zs := NewZiinaService(testZiinaConfig(server.URL), "https://douxbatter.test").WithBackoff(time.Millisecond)
	_, err := zs.CreatePaymentIntent(context.Background(), testOrder())

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.StatusCode)
	assert.True(t, gwErr.Transient())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestZiinaService_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"amount too small"}}`))
	}))
	defer server.Close()

	zs := NewZiinaService(testZiinaConfig(server.URL), "https://douxbatter.test").WithBackoff(time.Millisecond)
	_, err := zs.CreatePaymentIntent(context.Background(), testOrder())

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "amount too small", gwErr.Message)
	assert.False(t, gwErr.Transient())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestZiinaService_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"id":"late","redirect_url":"https://pay.ziina.com/late"}`))
	}))
	defer server.Close()

	cfg := testZiinaConfig(server.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 0

	_, err := NewZiinaService(cfg, "https://douxbatter.test").CreatePaymentIntent(context.Background(), testOrder())
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 0, gwErr.StatusCode)
}

func TestZiinaService_NotConfigured(t *testing.T) {
	zs := NewZiinaService(config.ZiinaConfig{APIURL: "https://api.test"}, "https://douxbatter.test")

	_, err := zs.CreatePaymentIntent(context.Background(), testOrder())
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, errors.Is(err, errGatewayNotConfigured))
}

func TestZiinaService_GetPaymentIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/payment_intent/pi_123", r.URL.Path)
		w.Write([]byte(`{"id":"pi_123","status":"completed"}`))
	}))
	defer server.Close()

	intent, err := NewZiinaService(testZiinaConfig(server.URL), "https://douxbatter.test").
		GetPaymentIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, IntentStatusCompleted, intent.Status)
}

func TestZiinaService_VerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"payment_intent.succeeded","data":{"id":"pi_1"}}`)
	valid := SignWebhookPayload(testWebhookSecret, payload)

	tests := []struct {
		name      string
		config    config.ZiinaConfig
		signature string
		want      bool
	}{
		{"valid", config.ZiinaConfig{WebhookSecret: testWebhookSecret}, valid, true},
		{"valid with prefix", config.ZiinaConfig{WebhookSecret: testWebhookSecret}, "sha256=" + valid, true},
		{"wrong secret", config.ZiinaConfig{WebhookSecret: "other"}, valid, false},
		{"empty signature", config.ZiinaConfig{WebhookSecret: testWebhookSecret}, "", false},
		{"not hex", config.ZiinaConfig{WebhookSecret: testWebhookSecret}, "xyz", false},
		{"no secret fails closed", config.ZiinaConfig{}, valid, false},
		{"no secret, unsigned allowed", config.ZiinaConfig{AllowUnsignedWebhooks: true}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zs := NewZiinaService(tt.config, "https://douxbatter.test")
			assert.Equal(t, tt.want, zs.VerifyWebhookSignature(payload, tt.signature))
		})
	}
}
