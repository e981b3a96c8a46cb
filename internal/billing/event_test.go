package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_SubscriptionUpdated(t *testing.T) {
	payload := []byte(`{
		"id": "sub_123",
		"object": "subscription",
		"status": "active",
		"metadata": {"restaurant_id": "42", "platform": "OrderU"},
		"items": {"data": [{"id": "si_1", "current_period_end": 1767225600}]},
		"latest_invoice": "in_456"
	}`)

	ev, err := DecodeEvent("customer.subscription.updated", payload)
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionUpdated, ev.Kind)
	require.NotNil(t, ev.Subscription)
	assert.Nil(t, ev.Invoice)
	assert.Equal(t, "sub_123", ev.Subscription.ID)
	assert.Equal(t, "active", ev.Subscription.Status)
	assert.Equal(t, "42", ev.Subscription.RestaurantID)
	assert.Equal(t, int64(1767225600), ev.Subscription.CurrentPeriodEnd)
	assert.Equal(t, "in_456", ev.Subscription.LatestInvoiceID)
}

func TestDecodeEvent_ExpandedLatestInvoice(t *testing.T) {
	payload := []byte(`{
		"id": "sub_123",
		"status": "trialing",
		"metadata": {"restaurant_id": "7"},
		"items": {"data": []},
		"latest_invoice": {"id": "in_789", "object": "invoice"}
	}`)

	ev, err := DecodeEvent("customer.subscription.created", payload)
	require.NoError(t, err)

	assert.Equal(t, "in_789", ev.Subscription.LatestInvoiceID)
	assert.Equal(t, int64(0), ev.Subscription.CurrentPeriodEnd)
}

func TestDecodeEvent_InvoiceLegacySubscriptionRef(t *testing.T) {
	payload := []byte(`{
		"id": "in_1",
		"object": "invoice",
		"subscription": "sub_123",
		"amount_paid": 6000,
		"created": 1767225600,
		"status_transitions": {"paid_at": 1767225700}
	}`)

	ev, err := DecodeEvent("invoice.payment_succeeded", payload)
	require.NoError(t, err)

	assert.Equal(t, EventInvoicePaid, ev.Kind)
	require.NotNil(t, ev.Invoice)
	assert.Nil(t, ev.Subscription)
	assert.Equal(t, "sub_123", ev.Invoice.SubscriptionID)
	assert.Equal(t, int64(6000), ev.Invoice.AmountPaid)
	assert.Equal(t, int64(1767225700), ev.Invoice.PaidAt)
}

func TestDecodeEvent_InvoiceParentSubscriptionRef(t *testing.T) {
	payload := []byte(`{
		"id": "in_2",
		"object": "invoice",
		"amount_paid": 6000,
		"created": 1767225600,
		"parent": {"subscription_details": {"subscription": "sub_999"}}
	}`)

	ev, err := DecodeEvent("invoice.payment_failed", payload)
	require.NoError(t, err)

	assert.Equal(t, EventInvoiceFailed, ev.Kind)
	assert.Equal(t, "sub_999", ev.Invoice.SubscriptionID)
	assert.Equal(t, int64(0), ev.Invoice.PaidAt)
}

func TestDecodeEvent_UnknownKind(t *testing.T) {
	ev, err := DecodeEvent("charge.refunded", []byte(`{"id": "ch_1"}`))
	require.NoError(t, err)

	assert.Equal(t, EventUnknown, ev.Kind)
	assert.Equal(t, "charge.refunded", ev.Type)
	assert.Nil(t, ev.Subscription)
	assert.Nil(t, ev.Invoice)
}

func TestDecodeEvent_MalformedPayload(t *testing.T) {
	_, err := DecodeEvent("customer.subscription.updated", []byte(`{"status": `))
	assert.Error(t, err)
}

func TestDecodeEvent_MissingMetadata(t *testing.T) {
	payload := []byte(`{"id": "sub_1", "status": "active", "items": {"data": []}}`)

	ev, err := DecodeEvent("customer.subscription.deleted", payload)
	require.NoError(t, err)

	// Decoding succeeds; the reconciler is the one that rejects the event.
	assert.Equal(t, "", ev.Subscription.RestaurantID)
}
