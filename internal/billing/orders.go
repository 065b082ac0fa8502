package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mealtrack/internal/config"
	"mealtrack/internal/external"
	"mealtrack/internal/types"
)

// OrderService creates checkout orders for credit plan purchases. The
// amount always comes from the catalog, never from the client.
type OrderService struct {
	catalog  Catalog
	provider external.PaymentProviderClient
	keyID    string
	logger   *slog.Logger
}

// NewOrderService builds an OrderService. keyID is the gateway's
// publishable key, echoed back to clients so they can open checkout.
func NewOrderService(catalog Catalog, provider external.PaymentProviderClient, cfg config.RazorpayConfig, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		catalog:  catalog,
		provider: provider,
		keyID:    cfg.KeyID,
		logger:   logger,
	}
}

// CreateOrder resolves the plan and registers an order with the gateway.
// The user and plan ride along as order notes so webhook and dashboard
// views can attribute the payment without a lookup.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, planID types.PlanID) (*types.PaymentOrder, error) {
	plan, err := s.catalog.Lookup(planID)
	if err != nil {
		return nil, err
	}

	receipt := fmt.Sprintf("credits_%s_%d", plan.ID, time.Now().Unix())
	orderID, err := s.provider.CreateOrder(ctx, plan.Amount, plan.Currency, receipt, map[string]string{
		"user_id": userID,
		"plan_id": string(plan.ID),
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout order created",
		"order_id", orderID,
		"user_id", userID,
		"plan_id", string(plan.ID),
		"amount", plan.Amount,
	)

	return &types.PaymentOrder{
		OrderID:  orderID,
		Amount:   plan.Amount,
		Currency: plan.Currency,
		PlanID:   plan.ID,
		KeyID:    s.keyID,
	}, nil
}
