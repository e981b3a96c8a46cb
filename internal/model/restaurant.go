package model

import (
	"time"

	"gorm.io/gorm"
)

// Subscription lifecycle states mirrored from the billing provider.
const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Restaurant represents a restaurant (tenant) and its subscription record.
// The subscription columns are mutated only by the billing reconciler and
// the on-demand verifier.
type Restaurant struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Email       string `json:"email" gorm:"type:varchar(100);index;not null"`
	Name        string `json:"name" gorm:"type:varchar(100)"`
	Description string `json:"description" gorm:"type:text"`
	Address     string `json:"address" gorm:"type:varchar(255)"`
	Phone       string `json:"phone" gorm:"type:varchar(30)"`

	// Subscription record
	IsActive                     bool       `json:"is_active" gorm:"default:false"`
	SubscriptionStatus           string     `json:"subscription_status" gorm:"type:varchar(30);default:'none'"`
	SubscriptionCurrentPeriodEnd *time.Time `json:"subscription_current_period_end"`
	StripeCustomerID             *string    `json:"stripe_customer_id,omitempty" gorm:"type:varchar(255);index"`
	StripeSubscriptionID         *string    `json:"stripe_subscription_id,omitempty" gorm:"type:varchar(255);index"`
	LastPaymentStatus            *string    `json:"last_payment_status" gorm:"type:varchar(30)"`
	LastPaymentDate              *time.Time `json:"last_payment_date"`
	LastPaymentAmount            *float64   `json:"last_payment_amount"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Merchants []Merchant `json:"merchants,omitempty" gorm:"foreignKey:RestaurantID"`
}

// IsSubscriptionValid reports whether the restaurant currently holds a fully
// paid-up subscription. All four conditions are required.
func (r *Restaurant) IsSubscriptionValid() bool {
	return r.IsActive &&
		r.SubscriptionStatus == SubscriptionStatusActive &&
		r.SubscriptionCurrentPeriodEnd != nil &&
		r.SubscriptionCurrentPeriodEnd.After(time.Now()) &&
		r.LastPaymentStatus != nil &&
		*r.LastPaymentStatus == "succeeded"
}
