package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mealtrack/internal/types"
)

func TestMealRepo_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	created := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*time.Time) = created
				return nil
			},
		})

	meal, err := repo.Create(context.Background(), types.Meal{
		UserID:   "user_1",
		Name:     "Paneer Tikka",
		Calories: 450,
		Protein:  28,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, meal.ID)
	assert.Equal(t, created, meal.CreatedAt)
	assert.False(t, meal.EatenAt.IsZero())
}

func TestMealRepo_ListByDay(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	eaten := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rows := newMockRows([][]any{
		{"meal_1", "user_1", "Oats", 300, 12, "", eaten, eaten},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	meals, err := repo.ListByDay(context.Background(), "user_1", eaten)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, "Oats", meals[0].Name)
	assert.Equal(t, 300, meals[0].Calories)
}

func TestMealRepo_ListByDay_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	meals, err := repo.ListByDay(context.Background(), "user_1", time.Now())
	require.NoError(t, err)
	assert.Empty(t, meals)
}

func TestMealRepo_Update_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	name := "Dal"
	err := repo.Update(context.Background(), "user_1", "meal_missing", types.MealUpdate{Name: &name})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundMeal, appErr.Code)
}

func TestMealRepo_Delete_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, repo.Delete(context.Background(), "user_1", "meal_1"))
}

func TestMealRepo_Delete_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(context.Background(), "user_1", "meal_other")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundMeal, appErr.Code)
}

func TestMealRepo_TotalsForDay(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*int) = 1250
				*dest[1].(*int) = 80
				*dest[2].(*int) = 3
				return nil
			},
		})

	totals, err := repo.TotalsForDay(context.Background(), "user_1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.DailyTotals{Calories: 1250, Protein: 80, Meals: 3}, totals)
}

func TestMealRepo_TotalsForDay_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepo(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, err := repo.TotalsForDay(context.Background(), "user_1", time.Now())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
