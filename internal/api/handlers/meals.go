package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"mealtrack/internal/analysis"
	"mealtrack/internal/core"
	"mealtrack/internal/types"
)

// maxAnalyzeBodyBytes caps the analyze request body. Base64-encoded photos
// from phone cameras routinely exceed the default decode limit.
const maxAnalyzeBodyBytes = 10 << 20

// --- Service Interfaces ---

// MealAnalyzer runs the credit-gated vision analysis.
type MealAnalyzer interface {
	Analyze(ctx context.Context, userID, imageDataURL string) (*analysis.Result, error)
}

// MealRepository is the meal persistence the handler needs.
type MealRepository interface {
	ListByDay(ctx context.Context, userID string, day time.Time) ([]types.Meal, error)
	Update(ctx context.Context, userID, mealID string, upd types.MealUpdate) error
	Delete(ctx context.Context, userID, mealID string) error
	TotalsForDay(ctx context.Context, userID string, day time.Time) (types.DailyTotals, error)
}

// GoalReader reads the user's daily targets for the summary view.
type GoalReader interface {
	Get(ctx context.Context, userID string) (*types.DailyGoals, error)
}

// --- Request/Response Models ---

// AnalyzeMealRequest is the body for POST /v1/meals/analyze. Image is a
// base64 data URL.
type AnalyzeMealRequest struct {
	Image string `json:"image" validate:"required"`
}

// UpdateMealRequest is the body for PATCH /v1/meals/{id}. Absent fields are
// left unchanged.
type UpdateMealRequest struct {
	Name     *string    `json:"name,omitempty"`
	Calories *int       `json:"calories,omitempty" validate:"omitempty,min=0"`
	Protein  *int       `json:"protein,omitempty" validate:"omitempty,min=0"`
	EatenAt  *time.Time `json:"eaten_at,omitempty"`
}

// MealListResponse is the body for GET /v1/meals.
type MealListResponse struct {
	Date  string       `json:"date"`
	Meals []types.Meal `json:"meals"`
}

// --- Meals Handler ---

// MealsHandler serves meal analysis, history, and the daily summary.
type MealsHandler struct {
	analyzer  MealAnalyzer
	meals     MealRepository
	goals     GoalReader
	validator *core.Validator
	logger    *slog.Logger
}

func NewMealsHandler(
	analyzer MealAnalyzer,
	meals MealRepository,
	goals GoalReader,
	v *core.Validator,
	l *slog.Logger,
) *MealsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &MealsHandler{
		analyzer:  analyzer,
		meals:     meals,
		goals:     goals,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the meal endpoints on the authenticated router.
func (h *MealsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/meals/analyze", h.Analyze)
	r.Get("/meals", h.List)
	r.Get("/meals/summary", h.Summary)
	r.Patch("/meals/{id}", h.Update)
	r.Delete("/meals/{id}", h.Delete)
}

// Analyze handles POST /v1/meals/analyze.
func (h *MealsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeMealRequest
	if err := core.DecodeJSONLimit(w, r, &req, maxAnalyzeBodyBytes); err != nil {
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

	result, err := h.analyzer.Analyze(r.Context(), userID, req.Image)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// List handles GET /v1/meals?date=YYYY-MM-DD. Date defaults to today (UTC).
func (h *MealsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	day, err := parseDateParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	meals, err := h.meals.ListByDay(r.Context(), userID, day)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: MealListResponse{
		Date:  day.Format("2006-01-02"),
		Meals: meals,
	}})
}

// Update handles PATCH /v1/meals/{id}.
func (h *MealsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateMealRequest
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

	mealID := chi.URLParam(r, "id")
	err := h.meals.Update(r.Context(), userID, mealID, types.MealUpdate{
		Name:     req.Name,
		Calories: req.Calories,
		Protein:  req.Protein,
		EatenAt:  req.EatenAt,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "updated"}})
}

// Delete handles DELETE /v1/meals/{id}.
func (h *MealsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	mealID := chi.URLParam(r, "id")
	if err := h.meals.Delete(r.Context(), userID, mealID); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /v1/meals/summary?date=YYYY-MM-DD. Totals and goals
// are independent reads, so they run concurrently. A user without goals
// gets totals with a null goals field.
func (h *MealsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	day, err := parseDateParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var (
		totals types.DailyTotals
		goals  *types.DailyGoals
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		totals, err = h.meals.TotalsForDay(ctx, userID, day)
		return err
	})
	g.Go(func() error {
		got, err := h.goals.Get(ctx, userID)
		if err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundGoals {
				return nil
			}
			return err
		}
		goals = got
		return nil
	})
	if err := g.Wait(); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: types.DailySummary{
		Date:   day.Format("2006-01-02"),
		Totals: totals,
		Goals:  goals,
	}})
}

// parseDateParam reads the optional "date" query parameter. Empty means
// today in UTC.
func parseDateParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidDate,
			"date must be formatted YYYY-MM-DD",
			err,
			map[string]any{"date": raw},
		)
	}
	return day, nil
}
