// Package analysis implements the credit-gated meal analysis flow: a user
// with a positive balance gets a vision-model analysis and pays one credit
// for it; a user without credits is turned away before the model is called.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"mealtrack/internal/external"
	"mealtrack/internal/types"
)

// CreditGate is the slice of the ledger repository the analysis flow needs.
type CreditGate interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	// ConsumeCredit decrements by one only when the balance is positive,
	// returning the remaining balance or a credits_exhausted error.
	ConsumeCredit(ctx context.Context, userID string) (int, error)
}

// MealStore persists the analyzed meal.
type MealStore interface {
	Create(ctx context.Context, meal types.Meal) (*types.Meal, error)
}

// Result is the outcome of a successful gated analysis.
type Result struct {
	Analysis         types.MealAnalysis `json:"analysis"`
	Meal             *types.Meal        `json:"meal,omitempty"`
	RemainingCredits int                `json:"remaining_credits"`
}

// Service runs the gated analysis flow.
type Service struct {
	ledger CreditGate
	vision external.VisionClient
	meals  MealStore
	logger *slog.Logger
}

func NewService(ledger CreditGate, vision external.VisionClient, meals MealStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger: ledger,
		vision: vision,
		meals:  meals,
		logger: logger,
	}
}

// Analyze runs the flow in its required order: balance precheck, vision
// call, then the guarded decrement.
//
// The precheck keeps zero-balance users from costing a model call, but it
// is advisory; the decrement's SQL guard is what actually prevents
// over-consumption under concurrency. A vision failure charges nothing.
// Losing the decrement race after a successful vision call means the
// credits ran out mid-flight and the request is denied; that model call is
// absorbed, not billed.
func (s *Service) Analyze(ctx context.Context, userID, imageDataURL string) (*Result, error) {
	if !strings.HasPrefix(imageDataURL, "data:image/") {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidImage,
			"image must be a base64 data URL",
			nil,
		)
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, types.NewAppError(
			types.ErrCodeCreditsExhausted,
			"no analysis credits remaining",
			nil,
		)
	}

	meal, err := s.vision.AnalyzeMeal(ctx, imageDataURL)
	if err != nil {
		return nil, err
	}

	remaining, err := s.ledger.ConsumeCredit(ctx, userID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeCreditsExhausted {
			s.logger.WarnContext(ctx, "credits exhausted between precheck and decrement",
				"user_id", userID,
			)
		}
		return nil, err
	}

	result := &Result{
		Analysis:         *meal,
		RemainingCredits: remaining,
	}

	stored, err := s.meals.Create(ctx, types.Meal{
		UserID:   userID,
		Name:     meal.Name,
		Calories: meal.Calories,
		Protein:  meal.Protein,
	})
	if err != nil {
		// The credit is spent and the analysis is good; failing the whole
		// request over a missing history row would charge the user for
		// nothing. Surface the analysis and log the gap.
		s.logger.ErrorContext(ctx, "failed to store analyzed meal",
			"user_id", userID,
			"error", err,
		)
	} else {
		result.Meal = stored
	}

	s.logger.InfoContext(ctx, "meal analyzed",
		"user_id", userID,
		"dish", meal.Name,
		"calories", meal.Calories,
		"remaining_credits", remaining,
	)

	return result, nil
}
