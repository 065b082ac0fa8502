// Package billing owns the credit purchase flow: the plan catalog, order
// creation with the payment gateway, signature verification of completed
// checkouts, and the atomic crediting of verified payments.
package billing

import "mealtrack/internal/types"

// Catalog is the authoritative list of purchasable plans. Prices and
// credit grants live server-side only; client-supplied amounts are never
// trusted.
type Catalog interface {
	// Lookup resolves a plan ID to its definition. Unknown IDs return a
	// validation_invalid_plan error.
	Lookup(id types.PlanID) (types.Plan, error)
	// All returns every plan in display order.
	All() []types.Plan
}

// planDefaults defines the fixed plan catalog. Amounts are INR paise.
var planDefaults = map[types.PlanID]types.Plan{
	types.PlanBasic:    {ID: types.PlanBasic, Amount: 29900, Currency: "INR", Credits: 10},
	types.PlanStandard: {ID: types.PlanStandard, Amount: 49900, Currency: "INR", Credits: 25},
	types.PlanPremium:  {ID: types.PlanPremium, Amount: 89900, Currency: "INR", Credits: 50},
}

// planOrder fixes the display order of All().
var planOrder = []types.PlanID{types.PlanBasic, types.PlanStandard, types.PlanPremium}

// staticCatalog is an in-memory Catalog. It is the standard production
// implementation; no database is involved.
type staticCatalog struct {
	plans map[types.PlanID]types.Plan
}

// NewStaticCatalog returns the fixed production catalog.
func NewStaticCatalog() Catalog {
	m := make(map[types.PlanID]types.Plan, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticCatalog{plans: m}
}

func (c *staticCatalog) Lookup(id types.PlanID) (types.Plan, error) {
	plan, ok := c.plans[id]
	if !ok {
		return types.Plan{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidPlan,
			"unknown plan",
			nil,
			map[string]any{"plan_id": string(id)},
		)
	}
	return plan, nil
}

func (c *staticCatalog) All() []types.Plan {
	out := make([]types.Plan, 0, len(planOrder))
	for _, id := range planOrder {
		out = append(out, c.plans[id])
	}
	return out
}
