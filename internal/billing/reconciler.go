package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ak55m/orderuv2/pkg/logger"
	"go.uber.org/zap"
)

// Reconciler maps verified billing events onto the subscription record.
// Each event is processed independently; a failing event is surfaced to the
// receiver so the provider redelivers it, without touching other tenants.
type Reconciler struct {
	store    SubscriptionStore
	provider Provider
}

// NewReconciler creates a reconciler over the given store and provider.
func NewReconciler(store SubscriptionStore, provider Provider) *Reconciler {
	return &Reconciler{store: store, provider: provider}
}

// Apply computes and persists the next subscription record state for one
// event. Replaying the same event is idempotent: updates are whole-record
// overwrites derived from the event's fields, not incremental deltas.
func (r *Reconciler) Apply(ctx context.Context, ev *Event) error {
	log := logger.FromContext(ctx)

	switch ev.Kind {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return r.applySubscriptionChange(ctx, ev.Subscription)
	case EventSubscriptionDeleted:
		return r.applySubscriptionDeleted(ctx, ev.Subscription)
	case EventInvoicePaid:
		return r.applyPaymentSucceeded(ctx, ev.Invoice)
	case EventInvoiceFailed:
		return r.applyPaymentFailed(ctx, ev.Invoice)
	case EventTrialWillEnd:
		// Reserved for merchant notification; no record mutation.
		log.Info("Trial ending soon", zap.String("restaurant_id", ev.Subscription.RestaurantID))
		return nil
	default:
		log.Info("Unhandled webhook event type", zap.String("type", ev.Type))
		return nil
	}
}

func (r *Reconciler) applySubscriptionChange(ctx context.Context, p *SubscriptionPayload) error {
	log := logger.FromContext(ctx)

	restaurantID, err := parseRestaurantID(p.RestaurantID)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", p.ID, err)
	}

	rec, err := r.store.Get(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("loading record for restaurant %d: %w", restaurantID, err)
	}

	rec.Status = p.Status
	rec.IsActive = IsActiveStatus(p.Status)
	rec.SubscriptionID = &p.ID
	rec.CurrentPeriodEnd = periodEndFromUnix(p.CurrentPeriodEnd)

	if IsActiveStatus(p.Status) {
		r.applyPaymentEvidence(ctx, rec, p)
	}

	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("saving record for restaurant %d: %w", restaurantID, err)
	}

	log.Info("Restaurant subscription updated",
		zap.Uint("restaurant_id", restaurantID),
		zap.String("status", p.Status),
		zap.Bool("is_active", rec.IsActive))
	return nil
}

// applyPaymentEvidence best-effort populates the payment fields from the
// subscription's most recent invoice. Invoice lookup failure falls back to
// mirroring the subscription status and never fails the reconciliation.
func (r *Reconciler) applyPaymentEvidence(ctx context.Context, rec *Record, p *SubscriptionPayload) {
	log := logger.FromContext(ctx)

	if p.LatestInvoiceID == "" {
		if p.Status == StatusTrialing {
			rec.LastPaymentStatus = strPtr(PaymentTrial)
			rec.LastPaymentAmount = float64Ptr(0)
		}
		return
	}

	inv, err := r.provider.GetInvoice(ctx, p.LatestInvoiceID)
	if err != nil {
		log.Warn("Failed to fetch latest invoice, mirroring subscription status",
			zap.String("invoice_id", p.LatestInvoiceID),
			zap.Error(err))
		if p.Status == StatusActive {
			rec.LastPaymentStatus = strPtr(PaymentSucceeded)
		} else {
			rec.LastPaymentStatus = strPtr(p.Status)
		}
		return
	}

	switch {
	case inv.Status == "paid":
		rec.LastPaymentStatus = strPtr(PaymentSucceeded)
		rec.LastPaymentDate = paymentTime(inv.PaidAt, inv.Created)
		rec.LastPaymentAmount = float64Ptr(float64(inv.AmountPaid) / 100)
	case p.Status == StatusTrialing:
		rec.LastPaymentStatus = strPtr(PaymentTrial)
		rec.LastPaymentAmount = float64Ptr(0)
	}
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, p *SubscriptionPayload) error {
	log := logger.FromContext(ctx)

	restaurantID, err := parseRestaurantID(p.RestaurantID)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", p.ID, err)
	}

	rec, err := r.store.Get(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("loading record for restaurant %d: %w", restaurantID, err)
	}

	rec.Status = StatusCanceled
	rec.IsActive = false
	rec.CurrentPeriodEnd = nil
	rec.SubscriptionID = nil

	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("saving record for restaurant %d: %w", restaurantID, err)
	}

	log.Info("Restaurant subscription cancelled", zap.Uint("restaurant_id", restaurantID))
	return nil
}

func (r *Reconciler) applyPaymentSucceeded(ctx context.Context, p *InvoicePayload) error {
	log := logger.FromContext(ctx)

	rec, sub, err := r.resolveInvoiceRestaurant(ctx, p)
	if err != nil {
		return err
	}

	rec.IsActive = true
	rec.Status = sub.Status
	rec.LastPaymentStatus = strPtr(PaymentSucceeded)
	rec.LastPaymentDate = paymentTime(p.PaidAt, 0)
	rec.LastPaymentAmount = float64Ptr(float64(p.AmountPaid) / 100)

	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("saving record for restaurant %d: %w", rec.RestaurantID, err)
	}

	log.Info("Restaurant payment recorded",
		zap.Uint("restaurant_id", rec.RestaurantID),
		zap.Float64("amount", float64(p.AmountPaid)/100))
	return nil
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, p *InvoicePayload) error {
	log := logger.FromContext(ctx)

	rec, _, err := r.resolveInvoiceRestaurant(ctx, p)
	if err != nil {
		return err
	}

	rec.IsActive = false
	rec.Status = StatusPastDue
	rec.LastPaymentStatus = strPtr(PaymentFailed)
	// LastPaymentDate and LastPaymentAmount are left untouched so the last
	// successful payment evidence survives failures.

	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("saving record for restaurant %d: %w", rec.RestaurantID, err)
	}

	log.Warn("Restaurant payment failed", zap.Uint("restaurant_id", rec.RestaurantID))
	return nil
}

// resolveInvoiceRestaurant resolves the tenant behind an invoice event via a
// live subscription fetch, since invoices carry no restaurant metadata of
// their own.
func (r *Reconciler) resolveInvoiceRestaurant(ctx context.Context, p *InvoicePayload) (*Record, *Subscription, error) {
	if p.SubscriptionID == "" {
		return nil, nil, fmt.Errorf("invoice %s: no subscription reference", p.ID)
	}

	sub, err := r.provider.GetSubscription(ctx, p.SubscriptionID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching subscription %s: %w", p.SubscriptionID, err)
	}

	restaurantID, err := parseRestaurantID(sub.Metadata[MetadataRestaurantID])
	if err != nil {
		return nil, nil, fmt.Errorf("subscription %s: %w", p.SubscriptionID, err)
	}

	rec, err := r.store.Get(ctx, restaurantID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading record for restaurant %d: %w", restaurantID, err)
	}
	return rec, sub, nil
}

func parseRestaurantID(value string) (uint, error) {
	if value == "" {
		return 0, fmt.Errorf("no restaurant id in subscription metadata")
	}
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid restaurant id %q in subscription metadata", value)
	}
	return uint(id), nil
}

// paymentTime converts a paid-at timestamp, falling back to the secondary
// timestamp and finally to now, matching invoice payloads where paid_at may
// be absent.
func paymentTime(paidAt, fallback int64) *time.Time {
	ts := paidAt
	if ts <= 0 {
		ts = fallback
	}
	if ts <= 0 {
		now := time.Now().UTC()
		return &now
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func strPtr(s string) *string { return &s }

func float64Ptr(f float64) *float64 { return &f }
