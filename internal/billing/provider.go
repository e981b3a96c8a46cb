package billing

import "context"

// MetadataRestaurantID is the metadata key carrying the restaurant reference
// on provider-side customer and subscription objects.
const MetadataRestaurantID = "restaurant_id"

// Subscription is the provider-neutral view of a live subscription.
type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd int64 // unix seconds, 0 when unknown
	LatestInvoiceID  string
	Metadata         map[string]string
	// ClientSecret is set only on subscriptions created with an expanded
	// latest invoice, for frontend payment confirmation.
	ClientSecret string
}

// Invoice is the provider-neutral view of an invoice.
type Invoice struct {
	ID             string
	SubscriptionID string
	Status         string
	AmountPaid     int64 // smallest currency unit (cents)
	PaidAt         int64 // unix seconds, 0 when not paid
	Created        int64 // unix seconds
}

// CheckoutSessionParams describes a hosted checkout session request.
type CheckoutSessionParams struct {
	CustomerID   string
	RestaurantID uint
	SuccessURL   string
	CancelURL    string
}

// CreateSubscriptionParams describes a direct subscription creation with a
// saved payment method.
type CreateSubscriptionParams struct {
	CustomerID      string
	RestaurantID    uint
	PriceID         string
	PaymentMethodID string
}

// Provider is the billing provider the reconciler, verifier and billing
// handlers talk to. Implementations must not retry indefinitely; transient
// network failures are retried a bounded number of times and then surfaced.
type Provider interface {
	// GetSubscription fetches live subscription state.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	// GetInvoice fetches an invoice.
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	// FindOrCreateCustomer returns the id of an existing customer with the
	// given email, creating one only if none exists.
	FindOrCreateCustomer(ctx context.Context, email string, restaurantID uint) (string, error)
	// CreateCheckoutSession returns a hosted checkout URL.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (string, error)
	// CreatePortalSession returns a hosted customer portal URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// CreateSubscription attaches the payment method and creates a
	// subscription on it.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
}
