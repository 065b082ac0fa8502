package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mealtrack/internal/core"
	"mealtrack/internal/types"
)

// GoalStore reads and writes the user's daily targets.
type GoalStore interface {
	Get(ctx context.Context, userID string) (*types.DailyGoals, error)
	Upsert(ctx context.Context, userID string, calorieGoal, proteinGoal int) (*types.DailyGoals, error)
}

// SetGoalsRequest is the body for PUT /v1/goals. Zero is a valid target
// ("not tracking this"); negative values are not.
type SetGoalsRequest struct {
	CalorieGoal int `json:"calorie_goal" validate:"min=0,max=20000"`
	ProteinGoal int `json:"protein_goal" validate:"min=0,max=2000"`
}

// GoalsHandler serves the daily goal endpoints.
type GoalsHandler struct {
	goals     GoalStore
	validator *core.Validator
	logger    *slog.Logger
}

func NewGoalsHandler(goals GoalStore, v *core.Validator, l *slog.Logger) *GoalsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &GoalsHandler{goals: goals, validator: v, logger: l}
}

// RegisterRoutes mounts the goal endpoints on the authenticated router.
func (h *GoalsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/goals", h.Get)
	r.Put("/goals", h.Set)
}

// Get handles GET /v1/goals.
func (h *GoalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	goals, err := h.goals.Get(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: goals})
}

// Set handles PUT /v1/goals.
func (h *GoalsHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetGoalsRequest
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

	goals, err := h.goals.Upsert(r.Context(), userID, req.CalorieGoal, req.ProteinGoal)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: goals})
}
