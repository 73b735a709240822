// Package goals computes basal metabolic rate, daily energy expenditure, calorie
// targets, weekday/weekend redistribution and macro splits from profile inputs.
// All functions are pure.
package goals

import (
	"errors"
	"fmt"
	"math"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// ErrInvalidInput is returned by Compute when a profile input is out of range.
var ErrInvalidInput = errors.New("invalid goal input")

// KcalPerKg is the energy equivalent of one kilogram of body mass.
const KcalPerKg = 7700.0

// Weekend plan weights: five weekdays plus two weekend days add up to one week.
const (
	WeekdayShare = 0.135
	WeekendShare = 0.1625
)

// Default tiers used when a goal is set without an explicit tier choice.
const (
	DefaultDeficitKcal = 500
	DefaultSurplusKcal = 250
)

// Minimum recommended daily intake by sex. Lower tiers are flagged.
const (
	MinKcalMale   = 1500
	MinKcalFemale = 1200
)

// Body holds the anthropometric inputs collected first during configuration.
type Body struct {
	Weight float64 // kg
	Height float64 // cm
	Age    int     // years
}

// Person adds sex and activity level to Body.
type Person struct {
	Body
	Sex      models.Sex
	Activity ActivityLevel
}

// ActivityLevel is one of the supported activity multipliers.
type ActivityLevel struct {
	Factor float64
	Name   string
	Label  string
}

// ActivityLevels lists the supported activity multipliers in menu order.
var ActivityLevels = []ActivityLevel{
	{Factor: 1.2, Name: "Sedentario", Label: "🪑 Sedentario (oficina, poco movimiento)"},
	{Factor: 1.375, Name: "Ligero", Label: "🚶 Ligero (1-3 días/semana)"},
	{Factor: 1.55, Name: "Moderado", Label: "🏃 Moderado (3-5 días/semana)"},
	{Factor: 1.725, Name: "Intenso", Label: "💪 Intenso (6-7 días/semana)"},
	{Factor: 1.9, Name: "Muy intenso", Label: "🔥 Muy intenso (atleta/trabajo físico)"},
}

// LookupActivity returns the activity level with the given factor. Unknown factors
// are kept but named Moderado.
func LookupActivity(factor float64) ActivityLevel {
	for _, a := range ActivityLevels {
		if a.Factor == factor {
			return a
		}
	}
	return ActivityLevel{Factor: factor, Name: "Moderado"}
}

// Tier is a deficit or surplus level in kcal per day.
type Tier struct {
	Kcal  int
	Name  string
	Emoji string
}

// DeficitTiers lists the deficit levels offered during configuration.
var DeficitTiers = []Tier{
	{Kcal: 250, Name: "Leve", Emoji: "🟢"},
	{Kcal: 500, Name: "Moderado", Emoji: "🟡"},
	{Kcal: 750, Name: "Agresivo", Emoji: "🟠"},
	{Kcal: 1000, Name: "Extremo", Emoji: "🔴"},
}

// SurplusTiers lists the surplus levels offered during configuration.
var SurplusTiers = []Tier{
	{Kcal: 250, Name: "Lean bulk", Emoji: "🟢"},
	{Kcal: 400, Name: "Moderado", Emoji: "🟡"},
	{Kcal: 600, Name: "Agresivo", Emoji: "🟠"},
}

// LookupTier finds a tier by kcal for the given goal. The name falls back to
// moderado for unknown values.
func LookupTier(goal models.Goal, kcal int) Tier {
	tiers := DeficitTiers
	if goal == models.GoalSurplus {
		tiers = SurplusTiers
	}
	for _, t := range tiers {
		if t.Kcal == kcal {
			return t
		}
	}
	return Tier{Kcal: kcal, Name: "Moderado"}
}

// BMR returns the basal metabolic rate in kcal/day (Harris-Benedict, revised).
func BMR(sex models.Sex, b Body) float64 {
	if sex == models.SexMale {
		return 88.362 + 13.397*b.Weight + 4.799*b.Height - 5.677*float64(b.Age)
	}
	return 447.593 + 9.247*b.Weight + 3.098*b.Height - 4.330*float64(b.Age)
}

// TDEE returns total daily energy expenditure rounded to the nearest kcal.
func TDEE(p Person) int {
	return round(BMR(p.Sex, p.Body) * p.Activity.Factor)
}

// DailyTarget applies the goal tier to the expenditure. A zero tier uses the goal default.
func DailyTarget(tdee int, goal models.Goal, tierKcal int) int {
	switch goal {
	case models.GoalDeficit:
		if tierKcal == 0 {
			tierKcal = DefaultDeficitKcal
		}
		return tdee - tierKcal
	case models.GoalSurplus:
		if tierKcal == 0 {
			tierKcal = DefaultSurplusKcal
		}
		return tdee + tierKcal
	default:
		return tdee
	}
}

// WeekSplit returns weekday and weekend targets. When the weekend plan is off both equal daily.
func WeekSplit(daily int, weekendPlan bool) (weekday, weekend int) {
	if !weekendPlan {
		return daily, daily
	}
	weekly := float64(daily * 7)
	return round(weekly * WeekdayShare), round(weekly * WeekendShare)
}

// WeeksToGoal estimates the number of weeks needed to move from current to target
// weight at the given tier. The second value is false when no estimate applies.
func WeeksToGoal(current, target float64, tierKcal int) (int, bool) {
	if target <= 0 || tierKcal <= 0 {
		return 0, false
	}
	perWeek := float64(tierKcal) * 7 / KcalPerKg
	return round(math.Abs(target-current) / perWeek), true
}

// Macros is the daily macro split in grams.
type Macros struct {
	Protein int
	Carbs   int
	Fat     int
}

// MacroSplit converts the daily target into grams using goal-specific percentages.
func MacroSplit(daily int, goal models.Goal) Macros {
	var p, c, f float64
	switch goal {
	case models.GoalDeficit:
		p, c, f = 0.40, 0.35, 0.25
	case models.GoalSurplus:
		p, c, f = 0.30, 0.45, 0.25
	default:
		p, c, f = 0.30, 0.40, 0.30
	}
	d := float64(daily)
	return Macros{
		Protein: round(d * p / 4),
		Carbs:   round(d * c / 4),
		Fat:     round(d * f / 9),
	}
}

// MinDailyKcal returns the sex-specific intake floor.
func MinDailyKcal(sex models.Sex) int {
	if sex == models.SexMale {
		return MinKcalMale
	}
	return MinKcalFemale
}

// TierOption is a tier annotated with its resulting daily target.
type TierOption struct {
	Tier
	Daily    int
	Weeks    int
	HasWeeks bool
	BelowMin bool
}

// DeficitOptions returns the deficit tiers that leave a positive daily target.
// Tiers under the sex floor are kept and flagged.
func DeficitOptions(p Person, targetWeight float64) []TierOption {
	tdee := TDEE(p)
	floor := MinDailyKcal(p.Sex)
	var out []TierOption
	for _, t := range DeficitTiers {
		daily := tdee - t.Kcal
		if daily <= 0 {
			continue
		}
		weeks, ok := WeeksToGoal(p.Weight, targetWeight, t.Kcal)
		out = append(out, TierOption{Tier: t, Daily: daily, Weeks: weeks, HasWeeks: ok, BelowMin: daily < floor})
	}
	return out
}

// SurplusOptions returns every surplus tier with its resulting daily target.
func SurplusOptions(p Person, targetWeight float64) []TierOption {
	tdee := TDEE(p)
	out := make([]TierOption, 0, len(SurplusTiers))
	for _, t := range SurplusTiers {
		weeks, ok := WeeksToGoal(p.Weight, targetWeight, t.Kcal)
		out = append(out, TierOption{Tier: t, Daily: tdee + t.Kcal, Weeks: weeks, HasWeeks: ok})
	}
	return out
}

// Input collects everything needed to compute a full plan.
type Input struct {
	Person
	Goal         models.Goal
	TargetWeight float64 // 0 when no target
	TierKcal     int     // 0 selects the goal default
	WeekendPlan  bool
}

// Plan is the result of a full computation.
type Plan struct {
	BMR      float64
	TDEE     int
	TierKcal int
	Daily    int
	Weekday  int
	Weekend  int
	Macros   Macros
	Weeks    int
	HasWeeks bool
}

// Validate checks that the input can produce a meaningful plan.
func (in Input) Validate() error {
	if in.Weight <= 0 || in.Height <= 0 || in.Age <= 0 {
		return fmt.Errorf("%w: body metrics must be positive", ErrInvalidInput)
	}
	if !in.Sex.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, models.ErrUnknownSex)
	}
	if in.Activity.Factor <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, models.ErrInvalidActivityPct)
	}
	if !in.Goal.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, models.ErrUnknownGoal)
	}
	if in.TierKcal < 0 || in.TargetWeight < 0 {
		return fmt.Errorf("%w: tier and target weight cannot be negative", ErrInvalidInput)
	}
	return nil
}

// Compute validates the input and returns the complete plan.
func Compute(in Input) (Plan, error) {
	if err := in.Validate(); err != nil {
		return Plan{}, err
	}

	tier := in.TierKcal
	switch in.Goal {
	case models.GoalDeficit:
		if tier == 0 {
			tier = DefaultDeficitKcal
		}
	case models.GoalSurplus:
		if tier == 0 {
			tier = DefaultSurplusKcal
		}
	default:
		tier = 0
	}

	plan := Plan{
		BMR:      BMR(in.Sex, in.Body),
		TDEE:     TDEE(in.Person),
		TierKcal: tier,
	}
	plan.Daily = DailyTarget(plan.TDEE, in.Goal, tier)
	plan.Weekday, plan.Weekend = WeekSplit(plan.Daily, in.WeekendPlan)
	plan.Macros = MacroSplit(plan.Daily, in.Goal)
	if in.Goal != models.GoalMaintain {
		plan.Weeks, plan.HasWeeks = WeeksToGoal(in.Weight, in.TargetWeight, tier)
	}
	return plan, nil
}

// round rounds half up.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
