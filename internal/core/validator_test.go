package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/internal/types"
)

func TestValidator_ValidateStruct(t *testing.T) {
	v := NewValidator(nil)

	type createOrderRequest struct {
		PlanID string `json:"plan_id" validate:"required"`
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateStruct(createOrderRequest{PlanID: "BASIC"}))
	})

	t.Run("missing required field", func(t *testing.T) {
		err := v.ValidateStruct(createOrderRequest{})
		require.Error(t, err)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
		assert.Equal(t, "required", appErr.Details["planid"])
	})

	t.Run("out of range", func(t *testing.T) {
		type goals struct {
			CalorieGoal int `json:"calorie_goal" validate:"min=0"`
		}
		err := v.ValidateStruct(goals{CalorieGoal: -100})
		require.Error(t, err)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationFieldRange, appErr.Code)
	})
}
