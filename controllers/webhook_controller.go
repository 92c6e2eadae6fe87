package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// WebhookVerifier verifies the raw request against the Stripe signature
// header and returns the typed event.
type WebhookVerifier interface {
	ParseWebhook(r *http.Request) (stripe.Event, error)
}

// CheckoutFulfiller runs the fulfillment flow for a completed checkout.
type CheckoutFulfiller interface {
	FulfillCheckout(ctx context.Context, sess *stripe.CheckoutSession) error
}

type FulfillmentController struct {
	Stripe      WebhookVerifier
	Fulfillment CheckoutFulfiller
	Logger      *zap.Logger
}

// StripeWebhook receives signed Stripe events and fulfills completed
// checkouts. Every path after successful verification acknowledges with
// 200 so Stripe does not redeliver: fetch and transport failures are
// logged and recorded, not surfaced.
func (fc *FulfillmentController) StripeWebhook(c *gin.Context) {
	event, err := fc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		fc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.String(http.StatusBadRequest, "Webhook Error: %v", err)
		return
	}

	fc.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	switch event.Type {
	case "checkout.session.completed":
		fc.handleCheckoutCompleted(c.Request.Context(), event)
	default:
		// Stripe expects all subscribed event kinds to be acknowledged.
		fc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (fc *FulfillmentController) handleCheckoutCompleted(ctx context.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		fc.Logger.Error("Failed to unmarshal checkout session",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return
	}

	if err := fc.Fulfillment.FulfillCheckout(ctx, &sess); err != nil {
		fc.Logger.Error("Fulfillment failed for session",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

// Health answers liveness probes.
func (fc *FulfillmentController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
