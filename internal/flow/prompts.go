package flow

import (
	"fmt"
	"math"
	"strconv"

	"github.com/BTreeMap/CalCounter/internal/goals"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/session"
)

const (
	msgInvalidNumber       = "❌ Por favor ingresa un número válido."
	msgInvalidTargetWeight = "❌ Por favor ingresa un peso válido en kg."
	msgUseButtons          = "👆 Elige una de las opciones de abajo."
	msgNothingToCancel     = "🤷 No hay ninguna operación en curso."
	msgCancelled           = "❌ Operación cancelada."
	msgNoDeficitTier       = "⚠️ Con tu gasto diario actual no hay un nivel de déficit posible. Elige otro objetivo."

	msgAnalyzing      = "🔍 Analizando..."
	msgAnalyzingPhoto = "🔍 Analizando imagen..."
	msgTextFailed     = "❌ No pude analizar esa comida. Intenta ser más específico o envía una foto."
	msgPhotoFailed    = "❌ No pude analizar la imagen. Intenta con otra foto o describe la comida."
	msgPhotoError     = "❌ Error al procesar la imagen."
	msgConsultFailed  = "❌ No pude analizar esa comida. Intenta ser más específico."
	msgFoodCancelled  = "❌ Registro cancelado."
	ackFoodSaved      = "✅ Guardado!"
	ackFoodCancelled  = "❌ Cancelado"

	promptWeight       = "⚙️ Vamos a configurar tus datos.\n\n¿Cuál es tu peso actual en kg?"
	promptHeight       = "📏 ¿Cuál es tu altura en cm?"
	promptAge          = "🎂 ¿Cuál es tu edad?"
	promptSex          = "👤 ¿Cuál es tu sexo?"
	promptActivity     = "🏃 ¿Cuál es tu nivel de actividad física?"
	promptGoal         = "🎯 ¿Cuál es tu objetivo?"
	promptTargetWeight = "🎯 ¿Cuál es tu peso objetivo en kg?"
	promptWeekendPlan  = "📅 ¿Quieres un plan de fin de semana?\n\n_Redistribuye calorías: comes un poco menos de L-V y un poco más los S-D, manteniendo el mismo total semanal._"
	promptCalories     = "🎯 Configuremos tus metas diarias.\n\n¿Cuántas calorías quieres consumir por día?"
	promptProtein      = "🥩 ¿Cuántos gramos de proteína al día?"
	promptCarbs        = "🍞 ¿Cuántos gramos de carbohidratos al día?"
	promptFat          = "🧈 ¿Cuántos gramos de grasas al día?"
	promptLogWeight    = "⚖️ ¿Cuál es tu peso actual en kg?"
	promptExercise     = "🏃 ¿Qué ejercicio realizaste?"
	promptConsult      = "🔍 ¿Qué comida quieres consultar? (no se registrará)"
)

var (
	sexMenu = models.Menu{{
		{Label: "👨 Masculino", Payload: prefixSex + "m"},
		{Label: "👩 Femenino", Payload: prefixSex + "f"},
	}}

	goalMenu = models.Column(
		models.Button{Label: "📉 Perder peso", Payload: prefixGoal + string(models.GoalDeficit)},
		models.Button{Label: "⚖️ Mantener peso", Payload: prefixGoal + string(models.GoalMaintain)},
		models.Button{Label: "📈 Ganar masa", Payload: prefixGoal + string(models.GoalSurplus)},
	)

	weekendMenu = models.Column(
		models.Button{Label: "✅ Sí, plan de finde", Payload: prefixWeekend + "si"},
		models.Button{Label: "❌ No, igual todos los días", Payload: prefixWeekend + "no"},
	)

	confirmMenu = models.Menu{{
		{Label: "✅ Guardar", Payload: PayloadConfirmFood},
		{Label: "❌ Cancelar", Payload: PayloadCancelFood},
	}}
)

func activityMenu() models.Menu {
	buttons := make([]models.Button, 0, len(goals.ActivityLevels))
	for _, a := range goals.ActivityLevels {
		buttons = append(buttons, models.Button{
			Label:   a.Label,
			Payload: prefixActivity + strconv.FormatFloat(a.Factor, 'f', -1, 64),
		})
	}
	return models.Column(buttons...)
}

// promptFor returns the question asked when a step is entered.
func promptFor(st session.Step) (string, models.Menu) {
	switch s := st.(type) {
	case session.ConfigWeight:
		return promptWeight, nil
	case session.ConfigHeight:
		return promptHeight, nil
	case session.ConfigAge:
		return promptAge, nil
	case session.ConfigSex:
		return promptSex, sexMenu
	case session.ConfigActivity:
		return promptActivity, activityMenu()
	case session.ConfigGoal:
		return promptGoal, goalMenu
	case session.ConfigTargetWeight:
		return promptTargetWeight, nil
	case session.ConfigDeficitTier:
		return tierPrompt(s.Person, models.GoalDeficit, s.TargetWeight)
	case session.ConfigSurplusTier:
		return tierPrompt(s.Person, models.GoalSurplus, s.TargetWeight)
	case session.ConfigWeekendPlan:
		return promptWeekendPlan, weekendMenu
	case session.GoalsCalories:
		return promptCalories, nil
	case session.GoalsProtein:
		return promptProtein, nil
	case session.GoalsCarbs:
		return promptCarbs, nil
	case session.GoalsFat:
		return promptFat, nil
	case session.LogWeight:
		return promptLogWeight, nil
	case session.ExerciseName:
		return promptExercise, nil
	case session.ExerciseCalories:
		return exerciseCaloriesPrompt(s.Exercise), nil
	case session.Consult:
		return promptConsult, nil
	default:
		return msgUseButtons, nil
	}
}

func exerciseCaloriesPrompt(name string) string {
	return fmt.Sprintf("🔥 ¿Cuántas calorías quemaste con \"%s\"?", name)
}

// tierPrompt builds the deficit or surplus menu with the resulting daily target and
// the estimated weeks of each tier.
func tierPrompt(p goals.Person, goal models.Goal, target float64) (string, models.Menu) {
	tdee := goals.TDEE(p)
	kg := math.Abs(p.Weight - target)

	var (
		header, prefix string
		options        []goals.TierOption
	)
	if goal == models.GoalSurplus {
		header = fmt.Sprintf("📈 *Elige tu nivel de superávit:*\n\n_TDEE actual: %d kcal | Ganar: %.1f kg_", tdee, kg)
		prefix = prefixSurplus
		options = goals.SurplusOptions(p, target)
	} else {
		header = fmt.Sprintf("📉 *Elige tu nivel de déficit:*\n\n_TDEE actual: %d kcal | Perder: %.1f kg_", tdee, kg)
		prefix = prefixDeficit
		options = goals.DeficitOptions(p, target)
	}

	buttons := make([]models.Button, 0, len(options))
	for _, o := range options {
		label := fmt.Sprintf("%s %s: %d kcal/día", o.Emoji, o.Name, o.Daily)
		if o.HasWeeks {
			label += fmt.Sprintf(" → ~%d sem", o.Weeks)
		}
		if o.BelowMin {
			label += " ⚠️"
		}
		buttons = append(buttons, models.Button{Label: label, Payload: prefix + strconv.Itoa(o.Kcal)})
	}
	return header, models.Column(buttons...)
}
