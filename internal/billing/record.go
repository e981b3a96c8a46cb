package billing

import (
	"context"
	"time"
)

// Subscription lifecycle states mirrored from the billing provider. The
// provider may report states beyond these (incomplete, unpaid, ...); they are
// stored as-is and simply never satisfy the active predicate below.
const (
	StatusNone     = "none"
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Payment outcomes recorded on the subscription record.
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentTrial     = "trial"
)

// IsActiveStatus reports whether a subscription status counts as active.
// The active flag on the record is always derived from this predicate.
func IsActiveStatus(status string) bool {
	return status == StatusActive || status == StatusTrialing
}

// Record is the subscription record kept per restaurant. Both update paths
// (webhook reconciliation and on-demand verification) write it as a whole so
// replayed events are idempotent.
type Record struct {
	RestaurantID      uint
	CustomerID        *string
	SubscriptionID    *string
	Status            string
	IsActive          bool
	CurrentPeriodEnd  *time.Time
	LastPaymentStatus *string
	LastPaymentDate   *time.Time
	LastPaymentAmount *float64
}

// SubscriptionStore persists subscription records.
type SubscriptionStore interface {
	// Get loads the record for a restaurant.
	Get(ctx context.Context, restaurantID uint) (*Record, error)
	// Save overwrites the subscription columns of the record's restaurant
	// as a single atomic row update.
	Save(ctx context.Context, rec *Record) error
}

// periodEndFromUnix converts a provider period-end timestamp (seconds) to a
// time. Zero, negative and implausible values are treated as unknown.
func periodEndFromUnix(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	if t.Year() < 2000 || t.Year() > 3000 {
		return nil
	}
	return &t
}
