package external

import (
	"context"

	"mealtrack/internal/types"
)

// PaymentProviderClient creates checkout orders with the payment gateway.
type PaymentProviderClient interface {
	// CreateOrder registers an order for the given amount (minor units)
	// and returns the provider's order ID. The notes travel with the
	// order and come back on webhooks and dashboard exports.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (string, error)
}

// VisionClient analyzes a meal photo and returns its estimated nutrition.
type VisionClient interface {
	// AnalyzeMeal takes a data URL (base64-encoded image) and returns the
	// structured analysis. A response the model could not ground in food
	// yields an upstream_analysis error rather than fabricated numbers.
	AnalyzeMeal(ctx context.Context, imageDataURL string) (*types.MealAnalysis, error)
}
