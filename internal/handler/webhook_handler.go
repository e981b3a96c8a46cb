package handler

import (
	"io"
	"net/http"

	"github.com/ak55m/orderuv2/internal/billing"
	"github.com/ak55m/orderuv2/pkg/logger"
	"github.com/ak55m/orderuv2/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v83/webhook"
	"go.uber.org/zap"
)

// StripeWebhook receives billing provider events. The body must be the exact
// bytes the provider sent (no JSON middleware in front of this route) since
// the signature is computed over the raw payload.
func StripeWebhook(c echo.Context) error {
	log := logger.FromEcho(c)

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Error("Failed to read webhook body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")
	if sig == "" {
		log.Warn("Webhook received without signature header")
		prometheus.RecordWebhookError("no_signature")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No signature found"})
	}

	// Signature failure means the payload is untrusted; it is never
	// interpreted.
	event, err := webhook.ConstructEventWithOptions(payload, sig, stripeWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Warn("Webhook signature verification failed", zap.Error(err))
		prometheus.RecordWebhookError("invalid_signature")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Webhook Error: " + err.Error()})
	}

	eventType := string(event.Type)
	prometheus.RecordWebhookEvent(eventType)
	log.Info("Webhook event received",
		zap.String("event_type", eventType),
		zap.String("event_id", event.ID))

	ev, err := billing.DecodeEvent(eventType, event.Data.Raw)
	if err != nil {
		log.Error("Failed to decode webhook event", zap.String("event_type", eventType), zap.Error(err))
		prometheus.RecordWebhookError("decode")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error processing webhook"})
	}

	ctx := logger.WithContext(c.Request().Context(), log)
	if err := billingReconciler.Apply(ctx, ev); err != nil {
		// Failure status makes the provider redeliver this event.
		log.Error("Failed to process webhook event",
			zap.String("event_type", eventType),
			zap.String("event_id", event.ID),
			zap.Error(err))
		prometheus.RecordWebhookError("reconcile")
		prometheus.RecordReconciliation(eventType, "failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error processing webhook"})
	}

	prometheus.RecordReconciliation(eventType, "applied")
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
