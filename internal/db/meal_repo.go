package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mealtrack/internal/types"
)

// MealRepo persists meal records. Every query is scoped by user_id so one
// user can never read or mutate another user's meals.
type MealRepo struct {
	db DBTX
}

func NewMealRepo(db DBTX) *MealRepo {
	return &MealRepo{db: db}
}

// Create inserts a meal and returns it with the generated ID and timestamps.
func (r *MealRepo) Create(ctx context.Context, meal types.Meal) (*types.Meal, error) {
	meal.ID = uuid.NewString()
	if meal.EatenAt.IsZero() {
		meal.EatenAt = time.Now().UTC()
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO meals (id, user_id, name, calories, protein, image_url, eaten_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING created_at`,
		meal.ID,
		meal.UserID,
		meal.Name,
		meal.Calories,
		meal.Protein,
		meal.ImageURL,
		meal.EatenAt,
	).Scan(&meal.CreatedAt)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to insert meal", err)
	}
	return &meal, nil
}

// ListByDay returns the user's meals eaten on the given UTC day, newest
// first.
func (r *MealRepo) ListByDay(ctx context.Context, userID string, day time.Time) ([]types.Meal, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, name, calories, protein, image_url, eaten_at, created_at
		 FROM meals
		 WHERE user_id = $1 AND eaten_at >= $2 AND eaten_at < $3
		 ORDER BY eaten_at DESC`,
		userID, start, end,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list meals", err)
	}
	defer rows.Close()

	meals := make([]types.Meal, 0)
	for rows.Next() {
		var m types.Meal
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Calories, &m.Protein, &m.ImageURL, &m.EatenAt, &m.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan meal row", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate meal rows", err)
	}
	return meals, nil
}

// Update applies the non-nil fields of upd to the user's meal. COALESCE
// keeps the stored value when a field was not provided.
func (r *MealRepo) Update(ctx context.Context, userID, mealID string, upd types.MealUpdate) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE meals
		 SET name     = COALESCE($3, name),
		     calories = COALESCE($4, calories),
		     protein  = COALESCE($5, protein),
		     eaten_at = COALESCE($6, eaten_at)
		 WHERE id = $1 AND user_id = $2`,
		mealID, userID, upd.Name, upd.Calories, upd.Protein, upd.EatenAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update meal", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMeal, "meal not found", nil)
	}
	return nil
}

// Delete removes the user's meal. A missing meal is reported as not found,
// not as success.
func (r *MealRepo) Delete(ctx context.Context, userID, mealID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM meals WHERE id = $1 AND user_id = $2`,
		mealID, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete meal", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMeal, "meal not found", nil)
	}
	return nil
}

// TotalsForDay aggregates calories, protein, and meal count for the user's
// UTC day. A day with no meals yields zero totals.
func (r *MealRepo) TotalsForDay(ctx context.Context, userID string, day time.Time) (types.DailyTotals, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	var totals types.DailyTotals
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(calories), 0), COALESCE(SUM(protein), 0), COUNT(*)
		 FROM meals
		 WHERE user_id = $1 AND eaten_at >= $2 AND eaten_at < $3`,
		userID, start, end,
	).Scan(&totals.Calories, &totals.Protein, &totals.Meals)
	if err != nil {
		return types.DailyTotals{}, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate daily totals", err)
	}
	return totals, nil
}
