package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNutritionJSONFieldNames(t *testing.T) {
	raw := `{"nombre":"Ensalada de pollo","calorias":420,"proteinas":35.5,"carbohidratos":12,"grasas":22,"cantidad":"1 plato"}`

	var n Nutrition
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Equal(t, "Ensalada de pollo", n.Name)
	assert.Equal(t, 420.0, n.Calories)
	assert.Equal(t, 35.5, n.Protein)
	assert.Equal(t, "1 plato", n.Portion)
	assert.NoError(t, n.Validate())
}

func TestNutritionValidate(t *testing.T) {
	tests := []struct {
		name string
		n    Nutrition
		err  error
	}{
		{"empty name", Nutrition{Name: "  "}, ErrEmptyName},
		{"negative calories", Nutrition{Name: "x", Calories: -1}, ErrNegativeCalories},
		{"negative fat", Nutrition{Name: "x", Fat: -0.5}, ErrNegativeNutrient},
		{"zero values allowed", Nutrition{Name: "agua"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.n.Validate(), tt.err)
		})
	}
}

func TestEntryValidate(t *testing.T) {
	now := time.Now()

	food := FoodEntry{ID: "f1", UserID: "u1", Nutrition: Nutrition{Name: "pan"}, LoggedAt: now}
	assert.NoError(t, food.Validate())
	food.UserID = ""
	assert.ErrorIs(t, food.Validate(), ErrEmptyUserID)

	ex := ExerciseEntry{ID: "e1", UserID: "u1", Name: "correr", CaloriesBurned: 0, LoggedAt: now}
	assert.NoError(t, ex.Validate())
	ex.CaloriesBurned = -10
	assert.ErrorIs(t, ex.Validate(), ErrNegativeCalories)

	w := WeightEntry{ID: "w1", UserID: "u1", Weight: 0, LoggedAt: now}
	assert.ErrorIs(t, w.Validate(), ErrNonPositiveWeight)
}

func TestGoalAndSex(t *testing.T) {
	assert.True(t, GoalDeficit.IsValid())
	assert.False(t, Goal("bulk").IsValid())
	assert.Equal(t, "Ganar masa", GoalSurplus.Label())
	assert.True(t, SexFemale.IsValid())
	assert.False(t, Sex("m").IsValid())
}

func TestProfileHasCalorieGoal(t *testing.T) {
	var p *Profile
	assert.False(t, p.HasCalorieGoal())
	assert.False(t, (&Profile{}).HasCalorieGoal())
	assert.True(t, (&Profile{Targets: Targets{DailyCalories: 1800}}).HasCalorieGoal())
}

func TestMenuHelpers(t *testing.T) {
	m := Column(Button{Label: "a", Payload: "1"}, Button{Label: "b", Payload: "2"})
	require.Len(t, m, 2)
	m = append(m, []Button{{Label: "c", Payload: "3"}, {Label: "d", Payload: "4"}})

	got := m.Buttons()
	require.Len(t, got, 4)
	assert.Equal(t, "4", got[3].Payload)
}
