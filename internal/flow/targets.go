package flow

import (
	"context"
	"fmt"

	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/session"
)

// StartGoals shows the current goals, or asks for them when none are set.
func (e *Engine) StartGoals(ctx context.Context, userID string) error {
	p, err := e.diary.Profile(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if !p.HasCalorieGoal() {
		return e.advance(ctx, userID, session.GoalsCalories{})
	}
	t := p.Targets
	return e.msg.SendText(ctx, userID, fmt.Sprintf(`🎯 *Tus metas actuales:*

🔥 Calorías: %d kcal
🥩 Proteínas: %dg
🍞 Carbohidratos: %dg
🧈 Grasas: %dg

¿Quieres modificarlas? Escribe /config para reconfigurar.`, t.DailyCalories, t.ProteinGrams, t.CarbsGrams, t.FatGrams))
}

func (e *Engine) goalsCalories(ctx context.Context, userID, text string) error {
	v, ok, err := e.askNumber(ctx, userID, text, positiveInteger)
	if !ok {
		return err
	}
	return e.advance(ctx, userID, session.GoalsProtein{Calories: int(v)})
}

func (e *Engine) goalsProtein(ctx context.Context, userID string, st session.GoalsProtein, text string) error {
	v, ok, err := e.askNumber(ctx, userID, text, wholeAmount)
	if !ok {
		return err
	}
	return e.advance(ctx, userID, session.GoalsCarbs{Calories: st.Calories, Protein: int(v)})
}

func (e *Engine) goalsCarbs(ctx context.Context, userID string, st session.GoalsCarbs, text string) error {
	v, ok, err := e.askNumber(ctx, userID, text, wholeAmount)
	if !ok {
		return err
	}
	return e.advance(ctx, userID, session.GoalsFat{Calories: st.Calories, Protein: st.Protein, Carbs: int(v)})
}

func (e *Engine) goalsFat(ctx context.Context, userID string, st session.GoalsFat, text string) error {
	v, ok, err := e.askNumber(ctx, userID, text, wholeAmount)
	if !ok {
		return err
	}
	fat := int(v)

	p, err := e.diary.Profile(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		p = &models.Profile{UserID: userID}
	}
	p.WeekendPlan = false
	p.Targets = models.Targets{
		DailyCalories:   st.Calories,
		WeekdayCalories: st.Calories,
		WeekendCalories: st.Calories,
		ProteinGrams:    st.Protein,
		CarbsGrams:      st.Carbs,
		FatGrams:        fat,
	}
	if err := e.diary.SaveProfile(ctx, *p); err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	e.finish(userID, "metas")
	return e.msg.SendText(ctx, userID, fmt.Sprintf("✅ Metas configuradas:\n🔥 Calorías: %d kcal\n🥩 Proteínas: %dg\n🍞 Carbohidratos: %dg\n🧈 Grasas: %dg",
		st.Calories, st.Protein, st.Carbs, fat))
}
