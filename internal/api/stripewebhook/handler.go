package stripewebhooks

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"

	"enrollment-app/config"
	"enrollment-app/internal/payments"
)

// Handler consumes Stripe events. Its main job is reconciliation: a
// charge whose outcome we could not confirm (timeout) is settled here
// when payment_intent.succeeded arrives.
type Handler struct {
	orchestrator *payments.Orchestrator
	store        payments.Store
}

func NewHandler(orch *payments.Orchestrator, store payments.Store) *Handler {
	return &Handler{orchestrator: orch, store: store}
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	endpointSecret := config.STRIPE_WEBHOOK_SECRET
	if endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, 65536)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Printf("event=stripe_signature_failed err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse payment intent"})
			return
		}
		if err := h.handlePaymentIntentSucceeded(c, &pi); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "received"})

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse payment intent"})
			return
		}
		// The obligation stays pending; only worth an operator trace.
		log.Printf("event=payment_intent_failed intent=%s obligation_id=%s", pi.ID, pi.Metadata["obligation_id"])
		c.JSON(http.StatusOK, gin.H{"status": "received"})

	default:
		// Acknowledge unknown events to avoid retries.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (h *Handler) handlePaymentIntentSucceeded(c *gin.Context, pi *stripe.PaymentIntent) error {
	// Already recorded through the synchronous path: the audit row's
	// unique intent id tells us so without touching the obligation.
	existing, err := h.store.PaymentByIntentRef(c.Request.Context(), pi.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	raw, ok := pi.Metadata["obligation_id"]
	if !ok {
		// Not one of ours (e.g. created directly in the dashboard).
		log.Printf("event=webhook_unmatched_intent intent=%s", pi.ID)
		return nil
	}
	obligationID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Printf("event=webhook_bad_metadata intent=%s obligation_id=%q", pi.ID, raw)
		return nil
	}

	methodRef := ""
	if pi.PaymentMethod != nil {
		methodRef = pi.PaymentMethod.ID
	}
	charge := &payments.Charge{IntentRef: pi.ID, Status: string(pi.Status)}
	if pi.LatestCharge != nil {
		charge.ReceiptURL = pi.LatestCharge.ReceiptURL
	}

	err = h.orchestrator.Settle(c.Request.Context(), uint(obligationID), charge, methodRef, "webhook")
	if errors.Is(err, payments.ErrObligationNotFound) {
		// The obligation was deleted, e.g. by a plan re-selection that
		// raced this charge. Retrying can never succeed; acknowledge
		// and leave a trace for the operator.
		log.Printf("event=webhook_orphaned_intent intent=%s obligation_id=%d", pi.ID, obligationID)
		return nil
	}
	return err
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
