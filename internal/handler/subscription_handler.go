package handler

import (
	"net/http"
	"time"

	"github.com/ak55m/orderuv2/internal/model"
	"github.com/ak55m/orderuv2/pkg/database"
	"github.com/ak55m/orderuv2/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ak55m/orderuv2/internal/billing"
)

// GetMerchantSubscription returns the stored subscription record together
// with the derived validity flags.
func GetMerchantSubscription(c echo.Context) error {
	log := logger.FromEcho(c)

	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	var restaurant model.Restaurant
	if err := database.GetDB().First(&restaurant, restaurantID).Error; err != nil {
		log.Error("Restaurant not found", zap.Uint("restaurant_id", restaurantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Restaurant not found"})
	}

	isValid := restaurant.IsSubscriptionValid()

	return c.JSON(http.StatusOK, echo.Map{
		"isActive":                     restaurant.IsActive,
		"subscriptionStatus":           restaurant.SubscriptionStatus,
		"subscriptionCurrentPeriodEnd": restaurant.SubscriptionCurrentPeriodEnd,
		"lastPaymentStatus":            restaurant.LastPaymentStatus,
		"lastPaymentDate":              restaurant.LastPaymentDate,
		"lastPaymentAmount":            restaurant.LastPaymentAmount,
		"stripeSubscriptionId":         restaurant.StripeSubscriptionID,
		"isSubscriptionValid":          isValid,
		"hasActiveSubscription":        isValid,
	})
}

// GetSubscriptionStatus returns the cheap stored-record status view used by
// the billing pages.
func GetSubscriptionStatus(c echo.Context) error {
	log := logger.FromEcho(c)

	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	var restaurant model.Restaurant
	if err := database.GetDB().First(&restaurant, restaurantID).Error; err != nil {
		log.Error("Restaurant not found", zap.Uint("restaurant_id", restaurantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Restaurant not found"})
	}

	isExpired := restaurant.SubscriptionCurrentPeriodEnd == nil ||
		restaurant.SubscriptionCurrentPeriodEnd.Before(time.Now())
	hasActive := restaurant.IsActive && restaurant.SubscriptionStatus == model.SubscriptionStatusActive

	return c.JSON(http.StatusOK, echo.Map{
		"isValid":               hasActive,
		"isActive":              restaurant.IsActive,
		"isExpired":             isExpired,
		"subscriptionId":        restaurant.StripeSubscriptionID,
		"currentPeriodEnd":      restaurant.SubscriptionCurrentPeriodEnd,
		"hasActiveSubscription": hasActive,
		"isSubscriptionValid":   hasActive,
		"lastPaymentStatus":     restaurant.LastPaymentStatus,
		"lastPaymentDate":       restaurant.LastPaymentDate,
		"lastPaymentAmount":     restaurant.LastPaymentAmount,
	})
}

// CreateCheckoutSession creates a hosted checkout session for the standard
// plan, creating or reusing the restaurant's billing customer.
func CreateCheckoutSession(c echo.Context) error {
	log := logger.FromEcho(c)

	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	var restaurant model.Restaurant
	if err := database.GetDB().First(&restaurant, restaurantID).Error; err != nil {
		log.Error("Restaurant not found", zap.Uint("restaurant_id", restaurantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}

	ctx := logger.WithContext(c.Request().Context(), log)

	customerID, err := ensureCustomer(c, &restaurant)
	if err != nil {
		log.Error("Failed to resolve billing customer", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error creating checkout session"})
	}

	url, err := billingProvider.CreateCheckoutSession(ctx, billing.CheckoutSessionParams{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		SuccessURL:   frontendURL + "/subscriptions",
		CancelURL:    frontendURL + "/subscriptions",
	})
	if err != nil {
		log.Error("Failed to create checkout session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error creating checkout session"})
	}

	log.Info("Checkout session created",
		zap.Uint("restaurant_id", restaurantID),
		zap.String("customer_id", customerID))

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// CreatePortalSession creates a hosted customer portal session for managing
// the subscription.
func CreatePortalSession(c echo.Context) error {
	log := logger.FromEcho(c)

	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	var restaurant model.Restaurant
	if err := database.GetDB().First(&restaurant, restaurantID).Error; err != nil {
		log.Error("Restaurant not found", zap.Uint("restaurant_id", restaurantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}

	if restaurant.StripeCustomerID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No Stripe customer found"})
	}

	ctx := logger.WithContext(c.Request().Context(), log)
	url, err := billingProvider.CreatePortalSession(ctx, *restaurant.StripeCustomerID, frontendURL+"/subscriptions")
	if err != nil {
		log.Error("Failed to create portal session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error creating portal session"})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// CreateSubscription creates a subscription directly from a saved payment
// method and persists the resulting refs.
func CreateSubscription(c echo.Context) error {
	log := logger.FromEcho(c)

	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	var req struct {
		PriceID         string `json:"priceId"`
		PaymentMethodID string `json:"paymentMethodId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.PriceID == "" || req.PaymentMethodID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Price ID and payment method ID are required"})
	}

	var restaurant model.Restaurant
	if err := database.GetDB().First(&restaurant, restaurantID).Error; err != nil {
		log.Error("Restaurant not found", zap.Uint("restaurant_id", restaurantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	}

	ctx := logger.WithContext(c.Request().Context(), log)

	customerID, err := ensureCustomer(c, &restaurant)
	if err != nil {
		log.Error("Failed to resolve billing customer", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error creating subscription"})
	}

	sub, err := billingProvider.CreateSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID:      customerID,
		RestaurantID:    restaurantID,
		PriceID:         req.PriceID,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		log.Error("Failed to create subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error creating subscription"})
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}
	updates := map[string]interface{}{
		"stripe_subscription_id":          sub.ID,
		"is_active":                       billing.IsActiveStatus(sub.Status),
		"subscription_status":             sub.Status,
		"subscription_current_period_end": periodEnd,
		"last_payment_status":             sub.Status,
	}
	if err := database.GetDB().Model(&model.Restaurant{}).Where("id = ?", restaurantID).Updates(updates).Error; err != nil {
		log.Error("Failed to persist subscription refs", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error creating subscription"})
	}

	log.Info("Subscription created",
		zap.Uint("restaurant_id", restaurantID),
		zap.String("subscription_id", sub.ID),
		zap.String("status", sub.Status))

	return c.JSON(http.StatusOK, echo.Map{
		"subscriptionId": sub.ID,
		"clientSecret":   sub.ClientSecret,
	})
}

// ensureCustomer returns the restaurant's billing customer id, creating one
// through email search-then-create only when the cached ref is missing. The
// ref is never re-created once present.
func ensureCustomer(c echo.Context, restaurant *model.Restaurant) (string, error) {
	if restaurant.StripeCustomerID != nil && *restaurant.StripeCustomerID != "" {
		return *restaurant.StripeCustomerID, nil
	}

	log := logger.FromEcho(c)
	ctx := logger.WithContext(c.Request().Context(), log)

	customerID, err := billingProvider.FindOrCreateCustomer(ctx, restaurant.Email, restaurant.ID)
	if err != nil {
		return "", err
	}

	if err := database.GetDB().Model(&model.Restaurant{}).
		Where("id = ?", restaurant.ID).
		Update("stripe_customer_id", customerID).Error; err != nil {
		return "", err
	}
	restaurant.StripeCustomerID = &customerID

	log.Info("Billing customer linked",
		zap.Uint("restaurant_id", restaurant.ID),
		zap.String("customer_id", customerID))
	return customerID, nil
}
