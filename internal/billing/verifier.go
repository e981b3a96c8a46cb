package billing

import (
	"context"
	"time"

	"github.com/ak55m/orderuv2/pkg/logger"
	"go.uber.org/zap"
)

// Verification error strings surfaced to callers.
const (
	ErrRestaurantNotFound = "Restaurant not found"
	ErrNoSubscription     = "No subscription found"
	ErrVerifyFailed       = "Failed to verify subscription"
)

// Status is the result of an on-demand subscription verification.
type Status struct {
	IsValid          bool       `json:"isValid"`
	IsActive         bool       `json:"isActive"`
	IsExpired        bool       `json:"isExpired"`
	SubscriptionID   string     `json:"subscriptionId,omitempty"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
	Err              string     `json:"error,omitempty"`
}

// Verifier refreshes a restaurant's subscription record straight from the
// billing provider, for callers that need ground truth before a webhook has
// landed. Any uncertainty fails closed.
type Verifier struct {
	store    SubscriptionStore
	provider Provider
}

// NewVerifier creates a verifier over the given store and provider.
func NewVerifier(store SubscriptionStore, provider Provider) *Verifier {
	return &Verifier{store: store, provider: provider}
}

// Verify checks the restaurant's subscription against the provider and
// reconciles the stored record when its status drifted. Restaurants without
// billing references short-circuit without any provider call.
func (v *Verifier) Verify(ctx context.Context, restaurantID uint) Status {
	log := logger.FromContext(ctx)

	rec, err := v.store.Get(ctx, restaurantID)
	if err != nil {
		return Status{Err: ErrRestaurantNotFound}
	}

	if rec.CustomerID == nil || rec.SubscriptionID == nil {
		return Status{Err: ErrNoSubscription}
	}

	sub, err := v.provider.GetSubscription(ctx, *rec.SubscriptionID)
	if err != nil {
		log.Error("Subscription verification error",
			zap.Uint("restaurant_id", restaurantID),
			zap.Error(err))
		return Status{Err: ErrVerifyFailed}
	}

	isActive := IsActiveStatus(sub.Status)
	periodEnd := periodEndFromUnix(sub.CurrentPeriodEnd)
	isExpired := periodEnd == nil || periodEnd.Before(time.Now())

	// Validity is judged against the payment evidence recorded before this
	// refresh; the refresh below only mirrors live lifecycle state.
	lastPaymentSucceeded := rec.LastPaymentStatus != nil && *rec.LastPaymentStatus == PaymentSucceeded

	// Persist only when the stored record drifted from live state.
	if rec.IsActive != isActive || rec.Status != sub.Status {
		rec.IsActive = isActive
		rec.Status = sub.Status
		rec.CurrentPeriodEnd = periodEnd
		rec.LastPaymentStatus = strPtr(sub.Status)

		if err := v.store.Save(ctx, rec); err != nil {
			log.Error("Failed to persist verified subscription state",
				zap.Uint("restaurant_id", restaurantID),
				zap.Error(err))
			return Status{Err: ErrVerifyFailed}
		}

		log.Info("Subscription record reconciled from live state",
			zap.Uint("restaurant_id", restaurantID),
			zap.String("status", sub.Status))
	}

	return Status{
		IsValid:          isActive && !isExpired && lastPaymentSucceeded,
		IsActive:         isActive,
		IsExpired:        isExpired,
		SubscriptionID:   sub.ID,
		CurrentPeriodEnd: periodEnd,
	}
}
