// Package models defines the core data structures for CalCounter.
//
// It includes the user profile, the append-only diary entries (food, exercise, weight),
// frequent meals and the nutrition facts returned by the extraction service.
package models

import (
	"errors"
	"strings"
	"time"
)

// Validation constants for nutrition records
const (
	// MaxNameLength defines the maximum allowed length for a food or exercise name
	MaxNameLength = 200
	// MaxPortionLength defines the maximum allowed length for a portion description
	MaxPortionLength = 200
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrNameTooLong        = errors.New("name exceeds maximum length")
	ErrNegativeNutrient   = errors.New("nutrient values cannot be negative")
	ErrNegativeCalories   = errors.New("calories cannot be negative")
	ErrNonPositiveWeight  = errors.New("weight must be positive")
	ErrPortionTooLong     = errors.New("portion exceeds maximum length")
	ErrMissingTimestamp   = errors.New("timestamp is required")
	ErrMissingEntryID     = errors.New("entry id is required")
	ErrUnknownGoal        = errors.New("unknown goal")
	ErrUnknownSex         = errors.New("unknown sex")
	ErrInvalidActivityPct = errors.New("activity factor must be positive")
)

// Sex is the biological sex used by the basal-rate formula.
type Sex string

const (
	SexMale   Sex = "masculino"
	SexFemale Sex = "femenino"
)

// IsValid reports whether s is a supported sex value.
func (s Sex) IsValid() bool {
	return s == SexMale || s == SexFemale
}

// Goal is the body-weight objective chosen during configuration.
type Goal string

const (
	GoalDeficit  Goal = "deficit"
	GoalMaintain Goal = "mantener"
	GoalSurplus  Goal = "superavit"
)

// IsValid reports whether g is a supported goal.
func (g Goal) IsValid() bool {
	switch g {
	case GoalDeficit, GoalMaintain, GoalSurplus:
		return true
	default:
		return false
	}
}

// Label returns the user-facing name of the goal.
func (g Goal) Label() string {
	switch g {
	case GoalDeficit:
		return "Perder peso"
	case GoalSurplus:
		return "Ganar masa"
	case GoalMaintain:
		return "Mantener peso"
	default:
		return string(g)
	}
}

// Nutrition holds the nutrition facts of a food as returned by the extraction service.
// The JSON field names match the structured response requested from the model.
type Nutrition struct {
	Name     string  `json:"nombre" bson:"name"`
	Calories float64 `json:"calorias" bson:"calories"`
	Protein  float64 `json:"proteinas" bson:"protein"`
	Carbs    float64 `json:"carbohidratos" bson:"carbs"`
	Fat      float64 `json:"grasas" bson:"fat"`
	Portion  string  `json:"cantidad" bson:"portion"`
}

// Validate performs basic sanity checks on extracted nutrition facts.
func (n *Nutrition) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return ErrEmptyName
	}
	if len(n.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if len(n.Portion) > MaxPortionLength {
		return ErrPortionTooLong
	}
	if n.Calories < 0 {
		return ErrNegativeCalories
	}
	if n.Protein < 0 || n.Carbs < 0 || n.Fat < 0 {
		return ErrNegativeNutrient
	}
	return nil
}

// Targets holds the computed daily targets of a user.
type Targets struct {
	DailyCalories   int `json:"daily_calories" bson:"daily_calories"`
	WeekdayCalories int `json:"weekday_calories" bson:"weekday_calories"`
	WeekendCalories int `json:"weekend_calories" bson:"weekend_calories"`
	ProteinGrams    int `json:"protein_grams" bson:"protein_grams"`
	CarbsGrams      int `json:"carbs_grams" bson:"carbs_grams"`
	FatGrams        int `json:"fat_grams" bson:"fat_grams"`
}

// Profile is the persistent per-user record. It is upserted and never deleted.
type Profile struct {
	UserID         string    `json:"user_id" bson:"_id"`
	Username       string    `json:"username,omitempty" bson:"username,omitempty"`
	FirstName      string    `json:"first_name,omitempty" bson:"first_name,omitempty"`
	Weight         float64   `json:"weight,omitempty" bson:"weight"`
	Height         float64   `json:"height,omitempty" bson:"height"`
	Age            int       `json:"age,omitempty" bson:"age"`
	Sex            Sex       `json:"sex,omitempty" bson:"sex"`
	Activity       string    `json:"activity,omitempty" bson:"activity"`
	ActivityFactor float64   `json:"activity_factor,omitempty" bson:"activity_factor"`
	Goal           Goal      `json:"goal,omitempty" bson:"goal"`
	TargetWeight   float64   `json:"target_weight,omitempty" bson:"target_weight"` // 0 when no target
	TierKcal       int       `json:"tier_kcal,omitempty" bson:"tier_kcal"`
	TierName       string    `json:"tier_name,omitempty" bson:"tier_name"`
	WeekendPlan    bool      `json:"weekend_plan" bson:"weekend_plan"`
	Targets        Targets   `json:"targets" bson:"targets"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// HasCalorieGoal reports whether the profile already carries a daily calorie target.
func (p *Profile) HasCalorieGoal() bool {
	return p != nil && p.Targets.DailyCalories > 0
}

// FoodEntry is an append-only record of something the user ate.
type FoodEntry struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Nutrition `bson:",inline"`
	LoggedAt  time.Time `json:"logged_at" bson:"logged_at"`
}

// Validate checks the entry before it is persisted.
func (f *FoodEntry) Validate() error {
	if f.ID == "" {
		return ErrMissingEntryID
	}
	if f.UserID == "" {
		return ErrEmptyUserID
	}
	if f.LoggedAt.IsZero() {
		return ErrMissingTimestamp
	}
	return f.Nutrition.Validate()
}

// ExerciseEntry is an append-only record of burned calories.
type ExerciseEntry struct {
	ID             string    `json:"id" bson:"_id"`
	UserID         string    `json:"user_id" bson:"user_id"`
	Name           string    `json:"name" bson:"name"`
	CaloriesBurned int       `json:"calories_burned" bson:"calories_burned"`
	LoggedAt       time.Time `json:"logged_at" bson:"logged_at"`
}

// Validate checks the entry before it is persisted.
func (e *ExerciseEntry) Validate() error {
	if e.ID == "" {
		return ErrMissingEntryID
	}
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if e.CaloriesBurned < 0 {
		return ErrNegativeCalories
	}
	if e.LoggedAt.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// WeightEntry is an append-only body-weight measurement.
type WeightEntry struct {
	ID       string    `json:"id" bson:"_id"`
	UserID   string    `json:"user_id" bson:"user_id"`
	Weight   float64   `json:"weight" bson:"weight"`
	LoggedAt time.Time `json:"logged_at" bson:"logged_at"`
}

// Validate checks the entry before it is persisted.
func (w *WeightEntry) Validate() error {
	if w.ID == "" {
		return ErrMissingEntryID
	}
	if w.UserID == "" {
		return ErrEmptyUserID
	}
	if w.Weight <= 0 {
		return ErrNonPositiveWeight
	}
	if w.LoggedAt.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// FrequentMeal is a user-scoped nutrition template that can be logged again
// without calling the extraction service.
type FrequentMeal struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Nutrition `bson:",inline"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Suggestion is a meal proposal that fits the remaining calories of the day.
type Suggestion struct {
	Name        string   `json:"nombre"`
	MealType    string   `json:"tipo"`
	Calories    float64  `json:"calorias"`
	Protein     float64  `json:"proteinas"`
	Carbs       float64  `json:"carbohidratos"`
	Fat         float64  `json:"grasas"`
	Ingredients []string `json:"ingredientes"`
	Portion     string   `json:"porcion"`
	Advice      string   `json:"consejo"`
}
