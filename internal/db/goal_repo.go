package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"mealtrack/internal/types"
)

// GoalRepo persists per-user daily calorie and protein targets.
type GoalRepo struct {
	db DBTX
}

func NewGoalRepo(db DBTX) *GoalRepo {
	return &GoalRepo{db: db}
}

// Get returns the user's goals, or a goals_not_found error when none have
// been set yet.
func (r *GoalRepo) Get(ctx context.Context, userID string) (*types.DailyGoals, error) {
	var goals types.DailyGoals
	err := r.db.QueryRow(ctx,
		`SELECT user_id, calorie_goal, protein_goal, updated_at
		 FROM daily_goals WHERE user_id = $1`,
		userID,
	).Scan(&goals.UserID, &goals.CalorieGoal, &goals.ProteinGoal, &goals.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundGoals, "no goals set for user", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read goals", err)
	}
	return &goals, nil
}

// Upsert creates or replaces the user's goals and returns the stored row.
func (r *GoalRepo) Upsert(ctx context.Context, userID string, calorieGoal, proteinGoal int) (*types.DailyGoals, error) {
	goals := types.DailyGoals{
		UserID:      userID,
		CalorieGoal: calorieGoal,
		ProteinGoal: proteinGoal,
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO daily_goals (user_id, calorie_goal, protein_goal, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		   SET calorie_goal = EXCLUDED.calorie_goal,
		       protein_goal = EXCLUDED.protein_goal,
		       updated_at = NOW()
		 RETURNING updated_at`,
		userID, calorieGoal, proteinGoal,
	).Scan(&goals.UpdatedAt)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert goals", err)
	}
	return &goals, nil
}
