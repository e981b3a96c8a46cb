package handler

import "github.com/ak55m/orderuv2/internal/billing"

// Billing dependencies shared by the subscription and webhook handlers,
// wired once at startup.
var (
	billingProvider      billing.Provider
	billingReconciler    *billing.Reconciler
	subscriptionVerifier *billing.Verifier
	stripeWebhookSecret  string
	frontendURL          string
)

// InitBilling wires the billing provider, reconciler and verifier into the
// handler package.
func InitBilling(provider billing.Provider, reconciler *billing.Reconciler, verifier *billing.Verifier, webhookSecret, frontend string) {
	billingProvider = provider
	billingReconciler = reconciler
	subscriptionVerifier = verifier
	stripeWebhookSecret = webhookSecret
	frontendURL = frontend
}
