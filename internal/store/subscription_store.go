package store

import (
	"context"

	"github.com/ak55m/orderuv2/internal/billing"
	"github.com/ak55m/orderuv2/internal/model"
	"gorm.io/gorm"
)

// SubscriptionStore is the gorm-backed billing.SubscriptionStore, mapping
// subscription records onto the restaurant row.
type SubscriptionStore struct {
	db *gorm.DB
}

// NewSubscriptionStore creates a store over the given database handle.
func NewSubscriptionStore(db *gorm.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Get loads the subscription record for a restaurant.
func (s *SubscriptionStore) Get(ctx context.Context, restaurantID uint) (*billing.Record, error) {
	var restaurant model.Restaurant
	if err := s.db.WithContext(ctx).First(&restaurant, restaurantID).Error; err != nil {
		return nil, err
	}

	return &billing.Record{
		RestaurantID:      restaurant.ID,
		CustomerID:        restaurant.StripeCustomerID,
		SubscriptionID:    restaurant.StripeSubscriptionID,
		Status:            restaurant.SubscriptionStatus,
		IsActive:          restaurant.IsActive,
		CurrentPeriodEnd:  restaurant.SubscriptionCurrentPeriodEnd,
		LastPaymentStatus: restaurant.LastPaymentStatus,
		LastPaymentDate:   restaurant.LastPaymentDate,
		LastPaymentAmount: restaurant.LastPaymentAmount,
	}, nil
}

// Save overwrites the restaurant's subscription columns in a single atomic
// row update. Explicit column values are used so fields cleared on the record
// (period end, subscription ref) are written as NULL rather than skipped.
func (s *SubscriptionStore) Save(ctx context.Context, rec *billing.Record) error {
	updates := map[string]interface{}{
		"is_active":                       rec.IsActive,
		"subscription_status":             rec.Status,
		"subscription_current_period_end": rec.CurrentPeriodEnd,
		"stripe_customer_id":              rec.CustomerID,
		"stripe_subscription_id":          rec.SubscriptionID,
		"last_payment_status":             rec.LastPaymentStatus,
		"last_payment_date":               rec.LastPaymentDate,
		"last_payment_amount":             rec.LastPaymentAmount,
	}

	return s.db.WithContext(ctx).
		Model(&model.Restaurant{}).
		Where("id = ?", rec.RestaurantID).
		Updates(updates).Error
}
