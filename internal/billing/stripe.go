package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/invoice"
	"github.com/stripe/stripe-go/v83/paymentmethod"
	"github.com/stripe/stripe-go/v83/subscription"
)

const platformName = "OrderU"

// StripeConfig holds the Stripe provider configuration.
type StripeConfig struct {
	SecretKey string
	// PriceID, when set, is used for checkout sessions instead of inline
	// price data for the standard plan.
	PriceID string
	// MaxNetworkRetries bounds the SDK's transient-network retries
	// (exponential backoff); failures are surfaced after exhaustion.
	MaxNetworkRetries int
}

// StripeProvider implements Provider using Stripe.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a Stripe billing provider. The secret key is set
// globally on the SDK, as is the retry-bounded API backend.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	stripe.Key = config.SecretKey

	retries := config.MaxNetworkRetries
	if retries <= 0 {
		retries = 3
	}
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(int64(retries)),
	}))

	return &StripeProvider{config: config}, nil
}

// GetSubscription fetches live subscription state.
func (s *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving subscription %s: %w", subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

// GetInvoice fetches an invoice.
func (s *StripeProvider) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx

	inv, err := invoice.Get(invoiceID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving invoice %s: %w", invoiceID, err)
	}
	return invoiceFromStripe(inv), nil
}

// FindOrCreateCustomer searches for a customer by email before creating one,
// so the same restaurant never ends up with duplicate customer records.
func (s *StripeProvider) FindOrCreateCustomer(ctx context.Context, email string, restaurantID uint) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := customer.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("searching customer by email: %w", err)
	}

	createParams := &stripe.CustomerParams{Email: stripe.String(email)}
	createParams.Context = ctx
	createParams.AddMetadata(MetadataRestaurantID, formatRestaurantID(restaurantID))
	createParams.AddMetadata("platform", platformName)

	cus, err := customer.New(createParams)
	if err != nil {
		return "", fmt.Errorf("creating customer: %w", err)
	}
	return cus.ID, nil
}

// CreateCheckoutSession creates a hosted checkout session for the standard
// monthly plan, tagging both the session and the resulting subscription with
// the restaurant reference.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (string, error) {
	metadata := map[string]string{
		MetadataRestaurantID: formatRestaurantID(p.RestaurantID),
		"platform":           platformName,
	}

	lineItem := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if s.config.PriceID != "" {
		lineItem.Price = stripe.String(s.config.PriceID)
	} else {
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String("usd"),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String("Standard Plan"),
				Description: stripe.String("Monthly subscription for restaurant platform"),
			},
			UnitAmount: stripe.Int64(6000),
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String("month"),
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{lineItem},
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a hosted customer portal session.
func (s *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("creating portal session: %w", err)
	}
	return sess.URL, nil
}

// CreateSubscription attaches the payment method as the customer's default
// and creates the subscription on it.
func (s *StripeProvider) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*Subscription, error) {
	attachParams := &stripe.PaymentMethodAttachParams{Customer: stripe.String(p.CustomerID)}
	attachParams.Context = ctx
	if _, err := paymentmethod.Attach(p.PaymentMethodID, attachParams); err != nil {
		return nil, fmt.Errorf("attaching payment method: %w", err)
	}

	updateParams := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(p.PaymentMethodID),
		},
	}
	updateParams.Context = ctx
	if _, err := customer.Update(p.CustomerID, updateParams); err != nil {
		return nil, fmt.Errorf("setting default payment method: %w", err)
	}

	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(p.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	subParams.Context = ctx
	subParams.AddMetadata(MetadataRestaurantID, formatRestaurantID(p.RestaurantID))
	subParams.AddMetadata("platform", platformName)
	subParams.AddExpand("latest_invoice.confirmation_secret")

	sub, err := subscription.New(subParams)
	if err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}

	result := subscriptionFromStripe(sub)
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		result.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return result, nil
}

func subscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	result := &Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		result.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		result.CurrentPeriodEnd = sub.Items.Data[0].CurrentPeriodEnd
	}
	if sub.LatestInvoice != nil {
		result.LatestInvoiceID = sub.LatestInvoice.ID
	}
	return result
}

func invoiceFromStripe(inv *stripe.Invoice) *Invoice {
	result := &Invoice{
		ID:         inv.ID,
		Status:     string(inv.Status),
		AmountPaid: inv.AmountPaid,
		Created:    inv.Created,
	}
	if inv.StatusTransitions != nil {
		result.PaidAt = inv.StatusTransitions.PaidAt
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		result.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return result
}

func formatRestaurantID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
