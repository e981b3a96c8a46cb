package middleware

import (
	"net/http"
	"strings"

	"github.com/ak55m/orderuv2/internal/billing"
	"github.com/ak55m/orderuv2/pkg/logger"
	"github.com/ak55m/orderuv2/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Paths that don't require a subscription, matched by exact suffix.
var allowedPathSuffixes = []string{
	"/subscription",
	"/check-email",
	"/merchant-register",
	"/merchant-login",
	"/settings",
}

const subscriptionRedirect = "/subscription"

// SubscriptionGuard gates protected requests on a valid subscription. Denials
// carry a machine-readable reason and a redirect target; uncertainty from the
// verifier fails closed.
func SubscriptionGuard(verifier *billing.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			path := c.Request().URL.Path
			for _, suffix := range allowedPathSuffixes {
				if strings.HasSuffix(path, suffix) {
					return next(c)
				}
			}

			restaurantID, ok := c.Get("restaurant_id").(uint)
			if !ok || restaurantID == 0 {
				prometheus.RecordGuardDenial("unauthenticated")
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
			}

			ctx := logger.WithContext(c.Request().Context(), log)
			status := verifier.Verify(ctx, restaurantID)

			switch {
			case status.Err == billing.ErrNoSubscription:
				prometheus.RecordGuardDenial("no_subscription")
				prometheus.RecordVerification("invalid")
				return c.JSON(http.StatusForbidden, echo.Map{
					"message":              "Subscription required",
					"subscriptionRequired": true,
					"isNewAccount":         true,
					"redirectTo":           subscriptionRedirect,
				})

			case status.Err != "":
				// Verification failed or restaurant unknown: deny rather
				// than let a possibly lapsed subscription through.
				log.Warn("Subscription verification failed, denying access",
					zap.Uint("restaurant_id", restaurantID),
					zap.String("error", status.Err))
				prometheus.RecordGuardDenial("verification_failed")
				prometheus.RecordVerification("error")
				return c.JSON(http.StatusForbidden, echo.Map{
					"message":              status.Err,
					"subscriptionRequired": true,
					"isNewAccount":         false,
					"redirectTo":           subscriptionRedirect,
				})

			case !status.IsActive:
				prometheus.RecordGuardDenial("inactive")
				prometheus.RecordVerification("invalid")
				return c.JSON(http.StatusForbidden, echo.Map{
					"message":              "Subscription inactive",
					"subscriptionRequired": true,
					"isNewAccount":         false,
					"redirectTo":           subscriptionRedirect,
				})

			case status.IsExpired:
				prometheus.RecordGuardDenial("expired")
				prometheus.RecordVerification("invalid")
				return c.JSON(http.StatusForbidden, echo.Map{
					"message":              "Subscription expired",
					"subscriptionRequired": true,
					"isNewAccount":         false,
					"redirectTo":           subscriptionRedirect,
				})

			case !status.IsValid:
				// Active and current but the last payment never succeeded.
				prometheus.RecordGuardDenial("payment_required")
				prometheus.RecordVerification("invalid")
				return c.JSON(http.StatusForbidden, echo.Map{
					"message":              "Subscription required",
					"subscriptionRequired": true,
					"isNewAccount":         false,
					"redirectTo":           subscriptionRedirect,
				})
			}

			prometheus.RecordVerification("valid")
			return next(c)
		}
	}
}
