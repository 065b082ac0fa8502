// Package handlers contains the HTTP handler implementations for the
// MealTrack API. Each handler defines the service interfaces it depends on
// locally and receives implementations through its constructor, which keeps
// handlers mockable without importing concrete service types.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mealtrack/internal/core"
	"mealtrack/internal/types"
)

// --- Service Interfaces ---

// PlanCatalog exposes the purchasable plans.
type PlanCatalog interface {
	All() []types.Plan
}

// OrderCreator creates checkout orders with the payment gateway.
type OrderCreator interface {
	CreateOrder(ctx context.Context, userID string, planID types.PlanID) (*types.PaymentOrder, error)
}

// PaymentVerifierService verifies a checkout callback and credits the plan.
type PaymentVerifierService interface {
	VerifyAndCredit(ctx context.Context, in types.VerifyPaymentInput) (*types.VerifyPaymentResult, error)
}

// BalanceReader reads the user's current credit balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID string) (int, error)
}

// --- Request/Response Models ---

// CreateOrderRequest is the body for POST /v1/billing/orders. Only the plan
// is client-supplied; amount and credits come from the server-side catalog.
type CreateOrderRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// VerifyPaymentRequest is the body for POST /v1/billing/verify. The field
// names mirror the gateway's checkout callback parameters.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	PlanID            string `json:"plan_id" validate:"required"`
}

// SubscriptionResponse is the body for GET /v1/billing/subscription.
type SubscriptionResponse struct {
	RemainingCredits int `json:"remaining_credits"`
}

// PlansResponse is the body for GET /v1/billing/plans.
type PlansResponse struct {
	Plans []types.Plan `json:"plans"`
}

// --- Billing Handler ---

// BillingHandler serves the credit purchase endpoints.
type BillingHandler struct {
	catalog   PlanCatalog
	orders    OrderCreator
	verifier  PaymentVerifierService
	balances  BalanceReader
	validator *core.Validator
	logger    *slog.Logger
}

func NewBillingHandler(
	catalog PlanCatalog,
	orders OrderCreator,
	verifier PaymentVerifierService,
	balances BalanceReader,
	v *core.Validator,
	l *slog.Logger,
) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BillingHandler{
		catalog:   catalog,
		orders:    orders,
		verifier:  verifier,
		balances:  balances,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the billing endpoints on the authenticated router.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/billing/plans", h.ListPlans)
	r.Post("/billing/orders", h.CreateOrder)
	r.Post("/billing/verify", h.VerifyPayment)
	r.Get("/billing/subscription", h.GetSubscription)
}

// ListPlans handles GET /v1/billing/plans.
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: PlansResponse{Plans: h.catalog.All()}})
}

// CreateOrder handles POST /v1/billing/orders.
func (h *BillingHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), userID, types.PlanID(req.PlanID))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: order})
}

// VerifyPayment handles POST /v1/billing/verify.
func (h *BillingHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	result, err := h.verifier.VerifyAndCredit(r.Context(), types.VerifyPaymentInput{
		OrderID:   req.RazorpayOrderID,
		PaymentID: req.RazorpayPaymentID,
		Signature: req.RazorpaySignature,
		UserID:    userID,
		PlanID:    types.PlanID(req.PlanID),
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// GetSubscription handles GET /v1/billing/subscription.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	balance, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: SubscriptionResponse{RemainingCredits: balance}})
}
