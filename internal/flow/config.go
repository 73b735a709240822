package flow

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/goals"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/session"
)

// StartConfig begins the profile configuration, discarding any active flow.
func (e *Engine) StartConfig(ctx context.Context, userID string) error {
	return e.advance(ctx, userID, session.ConfigWeight{})
}

func (e *Engine) configWeight(ctx context.Context, userID, text string) error {
	w, ok, err := e.askNumber(ctx, userID, text, positiveNumber)
	if !ok {
		return err
	}
	return e.advance(ctx, userID, session.ConfigHeight{Weight: w})
}

func (e *Engine) configHeight(ctx context.Context, userID string, st session.ConfigHeight, text string) error {
	h, ok, err := e.askNumber(ctx, userID, text, positiveNumber)
	if !ok {
		return err
	}
	return e.advance(ctx, userID, session.ConfigAge{Weight: st.Weight, Height: h})
}

func (e *Engine) configAge(ctx context.Context, userID string, st session.ConfigAge, text string) error {
	a, ok, err := e.askNumber(ctx, userID, text, positiveInteger)
	if !ok {
		return err
	}
	body := goals.Body{Weight: st.Weight, Height: st.Height, Age: int(a)}
	return e.advance(ctx, userID, session.ConfigSex{Body: body})
}

func (e *Engine) chooseSex(ctx context.Context, userID string, st session.ConfigSex, payload string) (bool, error) {
	var sex models.Sex
	switch payload {
	case prefixSex + "m":
		sex = models.SexMale
	case prefixSex + "f":
		sex = models.SexFemale
	default:
		return false, nil
	}
	return true, e.advance(ctx, userID, session.ConfigActivity{Body: st.Body, Sex: sex})
}

func (e *Engine) chooseActivity(ctx context.Context, userID string, st session.ConfigActivity, payload string) (bool, error) {
	raw, ok := strings.CutPrefix(payload, prefixActivity)
	if !ok {
		return false, nil
	}
	factor, err := strconv.ParseFloat(raw, 64)
	if err != nil || factor <= 0 {
		return false, nil
	}
	person := goals.Person{Body: st.Body, Sex: st.Sex, Activity: goals.LookupActivity(factor)}
	return true, e.advance(ctx, userID, session.ConfigGoal{Person: person})
}

func (e *Engine) chooseGoal(ctx context.Context, userID string, st session.ConfigGoal, payload string) (bool, error) {
	raw, ok := strings.CutPrefix(payload, prefixGoal)
	goal := models.Goal(raw)
	if !ok || !goal.IsValid() {
		return false, nil
	}
	if goal == models.GoalMaintain {
		return true, e.advance(ctx, userID, session.ConfigWeekendPlan{Person: st.Person, Goal: goal})
	}
	return true, e.advance(ctx, userID, session.ConfigTargetWeight{Person: st.Person, Goal: goal})
}

func (e *Engine) configTargetWeight(ctx context.Context, userID string, st session.ConfigTargetWeight, text string) error {
	target, ok, err := e.askNumber(ctx, userID, text, targetWeight)
	if !ok {
		return err
	}
	if st.Goal == models.GoalSurplus {
		return e.advance(ctx, userID, session.ConfigSurplusTier{Person: st.Person, TargetWeight: target})
	}
	if len(goals.DeficitOptions(st.Person, target)) == 0 {
		e.sessions.Set(userID, session.Session{Flow: session.ConfigGoal{Person: st.Person}})
		return e.send(ctx, userID, msgNoDeficitTier, goalMenu)
	}
	return e.advance(ctx, userID, session.ConfigDeficitTier{Person: st.Person, TargetWeight: target})
}

// chooseTier accepts only tiers that are offered for the goal.
func (e *Engine) chooseTier(ctx context.Context, userID string, p goals.Person, goal models.Goal, target float64, prefix, payload string) (bool, error) {
	raw, ok := strings.CutPrefix(payload, prefix)
	if !ok {
		return false, nil
	}
	kcal, err := strconv.Atoi(raw)
	if err != nil {
		return false, nil
	}
	options := goals.SurplusOptions(p, target)
	if goal == models.GoalDeficit {
		options = goals.DeficitOptions(p, target)
	}
	for _, o := range options {
		if o.Kcal == kcal {
			next := session.ConfigWeekendPlan{Person: p, Goal: goal, TargetWeight: target, Tier: o.Tier}
			return true, e.advance(ctx, userID, next)
		}
	}
	return false, nil
}

func (e *Engine) chooseWeekendPlan(ctx context.Context, userID string, st session.ConfigWeekendPlan, payload string) (bool, error) {
	var weekend bool
	switch payload {
	case prefixWeekend + "si":
		weekend = true
	case prefixWeekend + "no":
		weekend = false
	default:
		return false, nil
	}

	in := goals.Input{Person: st.Person, Goal: st.Goal, TargetWeight: st.TargetWeight, TierKcal: st.Tier.Kcal, WeekendPlan: weekend}
	plan, err := goals.Compute(in)
	if err != nil {
		return true, err
	}

	p, err := e.diary.Profile(ctx, userID)
	if err != nil {
		return true, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		p = &models.Profile{UserID: userID}
	}
	applyPlan(p, in, plan)
	if err := e.diary.SaveProfile(ctx, *p); err != nil {
		return true, fmt.Errorf("failed to save profile: %w", err)
	}
	e.finish(userID, "config")
	return true, e.msg.SendText(ctx, userID, configSummary(in, plan))
}

func applyPlan(p *models.Profile, in goals.Input, plan goals.Plan) {
	p.Weight = in.Weight
	p.Height = in.Height
	p.Age = in.Age
	p.Sex = in.Sex
	p.Activity = in.Activity.Name
	p.ActivityFactor = in.Activity.Factor
	p.Goal = in.Goal
	p.TargetWeight = in.TargetWeight
	p.TierKcal = plan.TierKcal
	p.TierName = ""
	if plan.TierKcal > 0 {
		p.TierName = strings.ToLower(goals.LookupTier(in.Goal, plan.TierKcal).Name)
	}
	p.WeekendPlan = in.WeekendPlan
	p.Targets = models.Targets{
		DailyCalories:   plan.Daily,
		WeekdayCalories: plan.Weekday,
		WeekendCalories: plan.Weekend,
		ProteinGrams:    plan.Macros.Protein,
		CarbsGrams:      plan.Macros.Carbs,
		FatGrams:        plan.Macros.Fat,
	}
}

func configSummary(in goals.Input, plan goals.Plan) string {
	var b strings.Builder
	b.WriteString("✅ *Configuración guardada:*\n\n")
	fmt.Fprintf(&b, "⚖️ Peso: %s kg", diary.Num(in.Weight))
	if in.TargetWeight > 0 {
		fmt.Fprintf(&b, " → Meta: %s kg", diary.Num(in.TargetWeight))
	}
	fmt.Fprintf(&b, "\n📏 Altura: %s cm\n", diary.Num(in.Height))
	fmt.Fprintf(&b, "🎂 Edad: %d años\n", in.Age)
	fmt.Fprintf(&b, "👤 Sexo: %s\n", in.Sex)
	fmt.Fprintf(&b, "🏃 Actividad: %s\n", in.Activity.Name)
	fmt.Fprintf(&b, "🎯 Objetivo: %s\n\n", in.Goal.Label())

	fmt.Fprintf(&b, "🔥 TMB: %.0f kcal\n", math.Floor(plan.BMR+0.5))
	fmt.Fprintf(&b, "📊 TDEE (mantenimiento): %d kcal", plan.TDEE)
	tierName := strings.ToLower(goals.LookupTier(in.Goal, plan.TierKcal).Name)
	switch in.Goal {
	case models.GoalDeficit:
		fmt.Fprintf(&b, "\n📉 Déficit: -%d kcal/día (%s)", plan.TierKcal, tierName)
	case models.GoalSurplus:
		fmt.Fprintf(&b, "\n📈 Superávit: +%d kcal/día (%s)", plan.TierKcal, tierName)
	}
	fmt.Fprintf(&b, "\n🎯 Meta diaria: %d kcal", plan.Daily)
	if plan.HasWeeks {
		fmt.Fprintf(&b, "\n⏱️ Tiempo estimado: ~%d semanas", plan.Weeks)
	}
	if in.WeekendPlan {
		fmt.Fprintf(&b, "\n\n📅 *Plan semanal:*\n  L-V: %d kcal/día\n  S-D: %d kcal/día", plan.Weekday, plan.Weekend)
	}
	b.WriteString("\n\n📋 *Macros diarios:*\n")
	fmt.Fprintf(&b, "🥩 Proteínas: %dg\n", plan.Macros.Protein)
	fmt.Fprintf(&b, "🍞 Carbohidratos: %dg\n", plan.Macros.Carbs)
	fmt.Fprintf(&b, "🧈 Grasas: %dg\n\n", plan.Macros.Fat)
	b.WriteString("Puedes ajustar tus metas con /metas")
	return b.String()
}
