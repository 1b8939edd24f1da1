package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/douxbatter/storefront/config"
	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"github.com/sirupsen/logrus"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Ziina-Signature"

// Ziina payment intent statuses we act on.
const (
	IntentStatusCompleted = "completed"
	IntentStatusFailed    = "failed"
	IntentStatusCanceled  = "canceled"
)

var errGatewayNotConfigured = errors.New("ZIINA_ACCESS_TOKEN is not configured")

// PaymentGateway creates hosted payment pages for orders.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
}

// SignatureVerifier authenticates inbound webhooks.
type SignatureVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) bool
}

type PaymentIntent struct {
	ID           string `json:"id"`
	RedirectURL  string `json:"redirect_url"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type paymentIntentRequest struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	Message      string `json:"message"`
	SuccessURL   string `json:"success_url"`
	FailureURL   string `json:"failure_url"`
	CancelURL    string `json:"cancel_url"`
	Test         bool   `json:"test"`
}

// ZiinaService talks to the Ziina payment API.
type ZiinaService struct {
	config        config.ZiinaConfig
	publicBaseURL string
	httpClient    *http.Client
	backoff       time.Duration
}

// NewZiinaService builds the adapter. publicBaseURL is the storefront origin the
// customer returns to after paying.
func NewZiinaService(cfg config.ZiinaConfig, publicBaseURL string) *ZiinaService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ZiinaService{
		config:        cfg,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		backoff: 250 * time.Millisecond,
	}
}

// WithHTTPClient swaps the transport, keeping the configured timeout if the
// client has none.
func (zs *ZiinaService) WithHTTPClient(client *http.Client) *ZiinaService {
	if client.Timeout == 0 {
		client.Timeout = zs.httpClient.Timeout
	}
	zs.httpClient = client
	return zs
}

// WithBackoff sets the base delay between retries.
func (zs *ZiinaService) WithBackoff(d time.Duration) *ZiinaService {
	zs.backoff = d
	return zs
}

// ValidateConfig reports settings the adapter cannot work without.
func (zs *ZiinaService) ValidateConfig() error {
	var errs []error
	if zs.config.AccessToken == "" {
		errs = append(errs, errGatewayNotConfigured)
	}
	if zs.config.APIURL == "" {
		errs = append(errs, errors.New("ZIINA_API_URL is not set"))
	}
	if zs.config.WebhookSecret == "" && !zs.config.AllowUnsignedWebhooks {
		errs = append(errs, errors.New("ZIINA_WEBHOOK_SECRET is not set, all webhooks will be rejected"))
	}
	return errors.Join(errs...)
}

// CallbackURLs returns the success, failure and cancel pages for a reference.
func (zs *ZiinaService) CallbackURLs(reference string) (success, failure, cancel string) {
	ref := url.QueryEscape(reference)
	success = fmt.Sprintf("%s/payment-success?ref=%s", zs.publicBaseURL, ref)
	failure = fmt.Sprintf("%s/payment-failed?ref=%s", zs.publicBaseURL, ref)
	cancel = fmt.Sprintf("%s/payment-cancelled?ref=%s", zs.publicBaseURL, ref)
	return success, failure, cancel
}

// CreatePaymentIntent asks Ziina for a hosted payment page for the order total.
// Transport errors, 429 and 5xx are retried with exponential backoff; 4xx are
// returned immediately.
func (zs *ZiinaService) CreatePaymentIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	if zs.config.AccessToken == "" {
		return nil, &GatewayError{Message: "payment gateway is not configured", Err: errGatewayNotConfigured}
	}

	success, failure, cancel := zs.CallbackURLs(order.ReferenceNumber)
	payload, err := json.Marshal(paymentIntentRequest{
		Amount:       utils.ToMinorUnits(order.Total),
		CurrencyCode: zs.config.Currency,
		Message:      fmt.Sprintf("DouxBatter Order #%s", order.ReferenceNumber),
		SuccessURL:   success,
		FailureURL:   failure,
		CancelURL:    cancel,
		Test:         zs.config.TestMode,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payment intent: %w", err)
	}

	var intent PaymentIntent
	err = zs.withRetry(ctx, "create payment intent", order.ReferenceNumber, func() error {
		return zs.do(ctx, http.MethodPost, zs.config.APIURL+"/payment_intent", payload, &intent)
	})
	if err != nil {
		return nil, err
	}
	if intent.ID == "" || intent.RedirectURL == "" {
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: "payment intent response is missing id or redirect_url"}
	}
	return &intent, nil
}

// GetPaymentIntent fetches the current state of an intent.
func (zs *ZiinaService) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	if zs.config.AccessToken == "" {
		return nil, &GatewayError{Message: "payment gateway is not configured", Err: errGatewayNotConfigured}
	}

	var intent PaymentIntent
	endpoint := zs.config.APIURL + "/payment_intent/" + url.PathEscape(intentID)
	err := zs.withRetry(ctx, "get payment intent", intentID, func() error {
		return zs.do(ctx, http.MethodGet, endpoint, nil, &intent)
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (zs *ZiinaService) withRetry(ctx context.Context, op, key string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= zs.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := zs.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}

		var gwErr *GatewayError
		if !errors.As(lastErr, &gwErr) || !gwErr.Transient() || ctx.Err() != nil {
			return lastErr
		}

		utils.ErrorLogger.WithFields(logrus.Fields{
			"operation": op,
			"key":       key,
			"attempt":   attempt + 1,
			"status":    gwErr.StatusCode,
		}).Warn("Ziina call failed, retrying")
	}
	return lastErr
}

func (zs *ZiinaService) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build ziina request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+zs.config.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := zs.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{
			StatusCode: resp.StatusCode,
			Message:    gatewayMessage(respBody),
			Body:       string(respBody),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &GatewayError{StatusCode: resp.StatusCode, Message: "unreadable response", Body: string(respBody), Err: err}
	}
	return nil
}

// gatewayMessage digs a human message out of an error body, if there is one.
func gatewayMessage(body []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "detail"} {
		switch v := parsed[key].(type) {
		case string:
			return v
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok {
				return msg
			}
		}
	}
	return ""
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of payload in constant time.
// Without a secret every webhook is rejected, unless unsigned webhooks were
// explicitly allowed for development.
func (zs *ZiinaService) VerifyWebhookSignature(payload []byte, signature string) bool {
	if zs.config.WebhookSecret == "" {
		if zs.config.AllowUnsignedWebhooks {
			utils.ErrorLogger.Warn("ZIINA_WEBHOOK_SECRET not set, accepting unsigned webhook (development only)")
			return true
		}
		return false
	}

	sig := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	given, err := hex.DecodeString(sig)
	if err != nil || len(given) == 0 {
		return false
	}
	return hmac.Equal(given, computeSignature([]byte(zs.config.WebhookSecret), payload))
}

// SignWebhookPayload returns the hex signature Ziina would send for payload.
func SignWebhookPayload(secret string, payload []byte) string {
	return hex.EncodeToString(computeSignature([]byte(secret), payload))
}

func computeSignature(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
