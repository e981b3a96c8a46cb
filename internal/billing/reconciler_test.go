package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func futureUnix() int64 {
	return time.Now().Add(30 * 24 * time.Hour).Unix()
}

func subEvent(kind EventKind, p SubscriptionPayload) *Event {
	return &Event{Kind: kind, Type: string(kind), Subscription: &p}
}

func invEvent(kind EventKind, p InvoicePayload) *Event {
	return &Event{Kind: kind, Type: string(kind), Invoice: &p}
}

func TestReconciler_SubscriptionUpdatedActive(t *testing.T) {
	periodEnd := futureUnix()
	store := newFakeStore(&Record{RestaurantID: 42, Status: StatusNone})
	provider := &fakeProvider{
		invoices: map[string]*Invoice{
			"in_1": {ID: "in_1", Status: "paid", AmountPaid: 6000, PaidAt: 1767225700, Created: 1767225600},
		},
	}
	r := NewReconciler(store, provider)

	err := r.Apply(context.Background(), subEvent(EventSubscriptionUpdated, SubscriptionPayload{
		ID:               "sub_1",
		Status:           StatusActive,
		RestaurantID:     "42",
		CurrentPeriodEnd: periodEnd,
		LatestInvoiceID:  "in_1",
	}))
	require.NoError(t, err)

	rec := store.record(42)
	assert.True(t, rec.IsActive)
	assert.Equal(t, StatusActive, rec.Status)
	require.NotNil(t, rec.SubscriptionID)
	assert.Equal(t, "sub_1", *rec.SubscriptionID)
	require.NotNil(t, rec.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(periodEnd, 0).UTC(), *rec.CurrentPeriodEnd)
	require.NotNil(t, rec.LastPaymentStatus)
	assert.Equal(t, PaymentSucceeded, *rec.LastPaymentStatus)
	require.NotNil(t, rec.LastPaymentAmount)
	assert.Equal(t, 60.0, *rec.LastPaymentAmount)
	require.NotNil(t, rec.LastPaymentDate)
	assert.Equal(t, time.Unix(1767225700, 0).UTC(), *rec.LastPaymentDate)
}

func TestReconciler_TrialWithoutInvoice(t *testing.T) {
	store := newFakeStore(&Record{RestaurantID: 7, Status: StatusNone})
	provider := &fakeProvider{}
	r := NewReconciler(store, provider)

	err := r.Apply(context.Background(), subEvent(EventSubscriptionCreated, SubscriptionPayload{
		ID:               "sub_t",
		Status:           StatusTrialing,
		RestaurantID:     "7",
		CurrentPeriodEnd: futureUnix(),
	}))
	require.NoError(t, err)

	rec := store.record(7)
	assert.True(t, rec.IsActive)
	assert.Equal(t, StatusTrialing, rec.Status)
	require.NotNil(t, rec.LastPaymentStatus)
	assert.Equal(t, PaymentTrial, *rec.LastPaymentStatus)
	require.NotNil(t, rec.LastPaymentAmount)
	assert.Equal(t, 0.0, *rec.LastPaymentAmount)
	assert.Zero(t, provider.getInvCalls)
}

func TestReconciler_PaymentFailedPreservesEvidence(t *testing.T) {
	lastDate := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	succeeded := PaymentSucceeded
	amount := 60.0
	subID := "sub_1"
	store := newFakeStore(&Record{
		RestaurantID:      42,
		SubscriptionID:    &subID,
		Status:            StatusActive,
		IsActive:          true,
		LastPaymentStatus: &succeeded,
		LastPaymentDate:   &lastDate,
		LastPaymentAmount: &amount,
	})
	provider := &fakeProvider{
		subs: map[string]*Subscription{
			"sub_1": {ID: "sub_1", Status: StatusPastDue, Metadata: map[string]string{MetadataRestaurantID: "42"}},
		},
	}
	r := NewReconciler(store, provider)

	err := r.Apply(context.Background(), invEvent(EventInvoiceFailed, InvoicePayload{
		ID:             "in_f",
		SubscriptionID: "sub_1",
	}))
	require.NoError(t, err)

	rec := store.record(42)
	assert.False(t, rec.IsActive)
	assert.Equal(t, StatusPastDue, rec.Status)
	require.NotNil(t, rec.LastPaymentStatus)
	assert.Equal(t, PaymentFailed, *rec.LastPaymentStatus)
	// The last successful payment evidence must survive the failure.
	require.NotNil(t, rec.LastPaymentAmount)
	assert.Equal(t, 60.0, *rec.LastPaymentAmount)
	require.NotNil(t, rec.LastPaymentDate)
	assert.Equal(t, lastDate, *rec.LastPaymentDate)
}

func TestReconciler_SubscriptionDeleted(t *testing.T) {
	subID := "sub_1"
	periodEnd := time.Now().Add(24 * time.Hour)
	store := newFakeStore(&Record{
		RestaurantID:     42,
		SubscriptionID:   &subID,
		Status:           StatusActive,
		IsActive:         true,
		CurrentPeriodEnd: &periodEnd,
	})
	r := NewReconciler(store, &fakeProvider{})

	err := r.Apply(context.Background(), subEvent(EventSubscriptionDeleted, SubscriptionPayload{
		ID:           "sub_1",
		RestaurantID: "42",
	}))
	require.NoError(t, err)

	rec := store.record(42)
	assert.False(t, rec.IsActive)
	assert.Equal(t, StatusCanceled, rec.Status)
	assert.Nil(t, rec.SubscriptionID)
	assert.Nil(t, rec.CurrentPeriodEnd)
}

func TestReconciler_PaymentSucceeded(t *testing.T) {
	subID := "sub_1"
	store := newFakeStore(&Record{
		RestaurantID:   42,
		SubscriptionID: &subID,
		Status:         StatusPastDue,
	})
	provider := &fakeProvider{
		subs: map[string]*Subscription{
			"sub_1": {ID: "sub_1", Status: StatusActive, Metadata: map[string]string{MetadataRestaurantID: "42"}},
		},
	}
	r := NewReconciler(store, provider)

	err := r.Apply(context.Background(), invEvent(EventInvoicePaid, InvoicePayload{
		ID:             "in_1",
		SubscriptionID: "sub_1",
		AmountPaid:     6000,
		PaidAt:         1767225700,
	}))
	require.NoError(t, err)

	rec := store.record(42)
	assert.True(t, rec.IsActive)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, PaymentSucceeded, *rec.LastPaymentStatus)
	assert.Equal(t, 60.0, *rec.LastPaymentAmount)
	assert.Equal(t, time.Unix(1767225700, 0).UTC(), *rec.LastPaymentDate)
}

func TestReconciler_ReplayIsIdempotent(t *testing.T) {
	subID := "sub_1"
	store := newFakeStore(&Record{RestaurantID: 42, SubscriptionID: &subID})
	provider := &fakeProvider{
		subs: map[string]*Subscription{
			"sub_1": {ID: "sub_1", Status: StatusActive, Metadata: map[string]string{MetadataRestaurantID: "42"}},
		},
	}
	r := NewReconciler(store, provider)

	ev := invEvent(EventInvoicePaid, InvoicePayload{
		ID:             "in_1",
		SubscriptionID: "sub_1",
		AmountPaid:     6000,
		PaidAt:         1767225700,
	})

	require.NoError(t, r.Apply(context.Background(), ev))
	first := *store.record(42)

	require.NoError(t, r.Apply(context.Background(), ev))
	second := *store.record(42)

	assert.Equal(t, first, second)
}

func TestReconciler_MissingRestaurantMetadata(t *testing.T) {
	store := newFakeStore(&Record{RestaurantID: 42})
	r := NewReconciler(store, &fakeProvider{})

	err := r.Apply(context.Background(), subEvent(EventSubscriptionUpdated, SubscriptionPayload{
		ID:     "sub_1",
		Status: StatusActive,
	}))
	require.Error(t, err)
	assert.Zero(t, store.saves)
}

func TestReconciler_InvoiceWithoutSubscriptionRef(t *testing.T) {
	store := newFakeStore(&Record{RestaurantID: 42})
	r := NewReconciler(store, &fakeProvider{})

	err := r.Apply(context.Background(), invEvent(EventInvoicePaid, InvoicePayload{ID: "in_1"}))
	require.Error(t, err)
	assert.Zero(t, store.saves)
}

func TestReconciler_InvoiceFetchFallback(t *testing.T) {
	store := newFakeStore(&Record{RestaurantID: 42, Status: StatusNone})
	provider := &fakeProvider{invErr: errors.New("provider down")}
	r := NewReconciler(store, provider)

	err := r.Apply(context.Background(), subEvent(EventSubscriptionUpdated, SubscriptionPayload{
		ID:               "sub_1",
		Status:           StatusActive,
		RestaurantID:     "42",
		CurrentPeriodEnd: futureUnix(),
		LatestInvoiceID:  "in_1",
	}))
	require.NoError(t, err)

	rec := store.record(42)
	assert.True(t, rec.IsActive)
	require.NotNil(t, rec.LastPaymentStatus)
	assert.Equal(t, PaymentSucceeded, *rec.LastPaymentStatus)
	assert.Nil(t, rec.LastPaymentAmount)
}

func TestReconciler_ImplausiblePeriodEnd(t *testing.T) {
	store := newFakeStore(&Record{RestaurantID: 42})
	r := NewReconciler(store, &fakeProvider{})

	err := r.Apply(context.Background(), subEvent(EventSubscriptionUpdated, SubscriptionPayload{
		ID:               "sub_1",
		Status:           StatusCanceled,
		RestaurantID:     "42",
		CurrentPeriodEnd: 99999999999999,
	}))
	require.NoError(t, err)

	rec := store.record(42)
	assert.Nil(t, rec.CurrentPeriodEnd)
	assert.False(t, rec.IsActive)
}

func TestReconciler_TrialWillEndIsNoop(t *testing.T) {
	store := newFakeStore(&Record{RestaurantID: 42})
	r := NewReconciler(store, &fakeProvider{})

	err := r.Apply(context.Background(), subEvent(EventTrialWillEnd, SubscriptionPayload{
		ID:           "sub_1",
		RestaurantID: "42",
	}))
	require.NoError(t, err)
	assert.Zero(t, store.saves)
}

func TestReconciler_UnknownKindIsNoop(t *testing.T) {
	store := newFakeStore(&Record{RestaurantID: 42})
	r := NewReconciler(store, &fakeProvider{})

	err := r.Apply(context.Background(), &Event{Kind: EventUnknown, Type: "charge.refunded"})
	require.NoError(t, err)
	assert.Zero(t, store.saves)
}

func TestPeriodEndFromUnix(t *testing.T) {
	assert.Nil(t, periodEndFromUnix(0))
	assert.Nil(t, periodEndFromUnix(-1))
	assert.Nil(t, periodEndFromUnix(99999999999999))

	ts := int64(1767225600)
	got := periodEndFromUnix(ts)
	require.NotNil(t, got)
	assert.Equal(t, time.Unix(ts, 0).UTC(), *got)
}
