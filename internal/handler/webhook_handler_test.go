package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ak55m/orderuv2/internal/billing"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

type webhookStore struct {
	rec   *billing.Record
	saves int
}

func (s *webhookStore) Get(ctx context.Context, restaurantID uint) (*billing.Record, error) {
	if s.rec == nil || s.rec.RestaurantID != restaurantID {
		return nil, errors.New("record not found")
	}
	cp := *s.rec
	return &cp, nil
}

func (s *webhookStore) Save(ctx context.Context, rec *billing.Record) error {
	cp := *rec
	s.rec = &cp
	s.saves++
	return nil
}

type webhookProvider struct{}

func (p *webhookProvider) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (p *webhookProvider) GetInvoice(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	return nil, errors.New("not implemented")
}

func (p *webhookProvider) FindOrCreateCustomer(ctx context.Context, email string, restaurantID uint) (string, error) {
	return "", errors.New("not implemented")
}

func (p *webhookProvider) CreateCheckoutSession(ctx context.Context, params billing.CheckoutSessionParams) (string, error) {
	return "", errors.New("not implemented")
}

func (p *webhookProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "", errors.New("not implemented")
}

func (p *webhookProvider) CreateSubscription(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.Subscription, error) {
	return nil, errors.New("not implemented")
}

// signPayload produces a Stripe-Signature header value for the payload, in the
// t=<timestamp>,v1=<hmac> format the verifier expects.
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookEnvelope(eventType string, data string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"object": "event",
		"type": %q,
		"data": {"object": %s}
	}`, eventType, data))
}

func postWebhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, StripeWebhook(c))
	return rec
}

func initWebhookTest(store *webhookStore) {
	provider := &webhookProvider{}
	reconciler := billing.NewReconciler(store, provider)
	verifier := billing.NewVerifier(store, provider)
	InitBilling(provider, reconciler, verifier, testWebhookSecret, "http://localhost:5173")
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	store := &webhookStore{rec: &billing.Record{RestaurantID: 42}}
	initWebhookTest(store)

	rec := postWebhook(t, webhookEnvelope("customer.subscription.updated", `{"id": "sub_1"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "No signature found", body["error"])
	assert.Zero(t, store.saves)
}

func TestStripeWebhook_TamperedPayload(t *testing.T) {
	store := &webhookStore{rec: &billing.Record{RestaurantID: 42}}
	initWebhookTest(store)

	payload := webhookEnvelope("customer.subscription.updated", `{"id": "sub_1"}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())
	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '

	rec := postWebhook(t, tampered, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.saves)
}

func TestStripeWebhook_WrongSecret(t *testing.T) {
	store := &webhookStore{rec: &billing.Record{RestaurantID: 42}}
	initWebhookTest(store)

	payload := webhookEnvelope("customer.subscription.updated", `{"id": "sub_1"}`)
	sig := signPayload(payload, "whsec_other_secret", time.Now())

	rec := postWebhook(t, payload, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.saves)
}

func TestStripeWebhook_SubscriptionUpdatedApplied(t *testing.T) {
	store := &webhookStore{rec: &billing.Record{RestaurantID: 42, Status: billing.StatusNone}}
	initWebhookTest(store)

	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	payload := webhookEnvelope("customer.subscription.updated", fmt.Sprintf(`{
		"id": "sub_1",
		"object": "subscription",
		"status": "active",
		"metadata": {"restaurant_id": "42"},
		"items": {"data": [{"current_period_end": %d}]}
	}`, periodEnd))
	sig := signPayload(payload, testWebhookSecret, time.Now())

	rec := postWebhook(t, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["received"])

	require.Equal(t, 1, store.saves)
	assert.Equal(t, billing.StatusActive, store.rec.Status)
	assert.True(t, store.rec.IsActive)
	require.NotNil(t, store.rec.SubscriptionID)
	assert.Equal(t, "sub_1", *store.rec.SubscriptionID)
}

func TestStripeWebhook_UnknownEventAcked(t *testing.T) {
	store := &webhookStore{rec: &billing.Record{RestaurantID: 42}}
	initWebhookTest(store)

	payload := webhookEnvelope("charge.refunded", `{"id": "ch_1"}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	rec := postWebhook(t, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, store.saves)
}

func TestStripeWebhook_ReconcileFailureReturns500(t *testing.T) {
	// No restaurant_id in metadata makes the reconciler reject the event, so
	// the provider will redeliver it.
	store := &webhookStore{rec: &billing.Record{RestaurantID: 42}}
	initWebhookTest(store)

	payload := webhookEnvelope("customer.subscription.updated", `{
		"id": "sub_1",
		"object": "subscription",
		"status": "active",
		"items": {"data": []}
	}`)
	sig := signPayload(payload, testWebhookSecret, time.Now())

	rec := postWebhook(t, payload, sig)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Error processing webhook", body["error"])
	assert.Zero(t, store.saves)
}
