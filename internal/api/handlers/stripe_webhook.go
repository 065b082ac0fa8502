// This file implements the Stripe checkout webhook. Stripe is the alternate
// purchase path (web checkout); completed sessions credit the same ledger
// as Razorpay verifications, keyed by payment intent for idempotency.
//
// The handler is NOT behind auth middleware; it is called directly by
// Stripe. Security comes from verifying the Stripe-Signature header.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mealtrack/internal/core"
	"mealtrack/internal/external"
	"mealtrack/internal/types"
)

// maxWebhookBodySize caps the webhook payload at 64 KB. Stripe events are
// small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// CheckoutCrediter resolves a plan and credits a completed checkout.
type CheckoutCrediter interface {
	Lookup(id types.PlanID) (types.Plan, error)
}

// WebhookCreditLedger is the ledger slice the webhook needs.
type WebhookCreditLedger interface {
	Credit(ctx context.Context, receipt types.PaymentReceipt) (applied bool, balanceAfter int, err error)
}

// stripeWebhookEvent is the subset of the event envelope we consume.
type stripeWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			PaymentIntent string            `json:"payment_intent"`
			AmountTotal   int64             `json:"amount_total"`
			Currency      string            `json:"currency"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// StripeWebhookHandler processes asynchronous checkout events from Stripe.
type StripeWebhookHandler struct {
	verifier external.StripeEventVerifier
	catalog  CheckoutCrediter
	ledger   WebhookCreditLedger
	secret   string
	logger   *slog.Logger
}

func NewStripeWebhookHandler(
	verifier external.StripeEventVerifier,
	catalog CheckoutCrediter,
	ledger WebhookCreditLedger,
	secret string,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		catalog:  catalog,
		ledger:   ledger,
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoint. Kept separate from the
// authenticated route registrars because webhook routes are public.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle verifies and processes one webhook delivery. After signature
// verification, processing failures still return 200: Stripe retries
// forever otherwise, and the payment-keyed receipt makes a replayed credit
// harmless anyway.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventStripeCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted credits the plan named in the session metadata.
// The payment intent ID keys the receipt, so redelivered events are no-ops.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripeWebhookEvent) error {
	obj := event.Data.Object

	userID := obj.Metadata["user_id"]
	planID := types.PlanID(obj.Metadata["plan_id"])
	if userID == "" || planID == "" {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"checkout session is missing user_id or plan_id metadata",
			nil,
		)
	}

	plan, err := h.catalog.Lookup(planID)
	if err != nil {
		return err
	}

	paymentID := obj.PaymentIntent
	if paymentID == "" {
		paymentID = obj.ID
	}

	applied, balance, err := h.ledger.Credit(ctx, types.PaymentReceipt{
		PaymentID:   paymentID,
		OrderID:     obj.ID,
		UserID:      userID,
		PlanID:      plan.ID,
		Credits:     plan.Credits,
		AmountMinor: plan.Amount,
		Currency:    plan.Currency,
		Status:      types.PaymentCompleted,
	})
	if err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "stripe checkout credited",
		"event_id", event.ID,
		"payment_id", paymentID,
		"user_id", userID,
		"plan_id", string(plan.ID),
		"applied", applied,
		"balance", balance,
	)
	return nil
}
