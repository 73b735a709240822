package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/session"
)

// recentWeights is the number of measurements echoed after a weight log.
const recentWeights = 5

// StartWeightLog logs an inline weight, or asks for it when arg is empty.
func (e *Engine) StartWeightLog(ctx context.Context, userID, arg string) error {
	if strings.TrimSpace(arg) == "" {
		return e.advance(ctx, userID, session.LogWeight{})
	}
	w, ok, err := e.askNumber(ctx, userID, arg, positiveNumber)
	if !ok {
		return err
	}
	return e.logWeight(ctx, userID, w, nil)
}

func (e *Engine) logWeightStep(ctx context.Context, userID, text string) error {
	w, ok, err := e.askNumber(ctx, userID, text, positiveNumber)
	if !ok {
		return err
	}
	return e.logWeight(ctx, userID, w, func() { e.finish(userID, "peso") })
}

// logWeight persists a measurement and echoes the latest ones. done runs right
// after the write succeeds.
func (e *Engine) logWeight(ctx context.Context, userID string, w float64, done func()) error {
	if _, err := e.diary.LogWeight(ctx, userID, w); err != nil {
		return fmt.Errorf("failed to log weight: %w", err)
	}
	if done != nil {
		done()
	}
	recent, err := e.diary.Store().RecentWeights(ctx, userID, recentWeights)
	if err != nil {
		return fmt.Errorf("failed to load weights: %w", err)
	}
	lines := make([]string, 0, len(recent))
	for _, r := range recent {
		lines = append(lines, fmt.Sprintf("%s: %s kg", r.LoggedAt.In(diary.Location).Format("2/1/2006"), diary.Num(r.Weight)))
	}
	return e.msg.SendText(ctx, userID, fmt.Sprintf("✅ Peso registrado: %s kg\n\n📊 Últimos registros:\n%s\n\n💡 Usa /progreso para ver tu gráfico de evolución",
		diary.Num(w), strings.Join(lines, "\n")))
}

// StartExercise logs "<name> <kcal>" immediately. A bare name asks for the
// calories and an empty argument asks for the name first.
func (e *Engine) StartExercise(ctx context.Context, userID, arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return e.advance(ctx, userID, session.ExerciseName{})
	}
	if fields := strings.Fields(arg); len(fields) >= 2 {
		if kcal, ok := wholeAmount.parse(fields[len(fields)-1]); ok {
			return e.logExercise(ctx, userID, strings.Join(fields[:len(fields)-1], " "), int(kcal), nil)
		}
	}
	return e.advance(ctx, userID, session.ExerciseCalories{Exercise: arg})
}

func (e *Engine) exerciseName(ctx context.Context, userID, text string) error {
	if text == "" {
		prompt, _ := promptFor(session.ExerciseName{})
		return e.msg.SendText(ctx, userID, prompt)
	}
	return e.advance(ctx, userID, session.ExerciseCalories{Exercise: text})
}

func (e *Engine) exerciseCalories(ctx context.Context, userID string, st session.ExerciseCalories, text string) error {
	v, ok, err := e.askNumber(ctx, userID, text, wholeAmount)
	if !ok {
		return err
	}
	return e.logExercise(ctx, userID, st.Exercise, int(v), func() { e.finish(userID, "ejercicio") })
}

func (e *Engine) logExercise(ctx context.Context, userID, name string, kcal int, done func()) error {
	if _, err := e.diary.LogExercise(ctx, userID, name, kcal); err != nil {
		return fmt.Errorf("failed to log exercise: %w", err)
	}
	if done != nil {
		done()
	}
	return e.msg.SendText(ctx, userID, fmt.Sprintf("✅ Ejercicio registrado:\n🏃 %s: -%d kcal", name, kcal))
}

// StartConsult looks up an inline food, or asks for one when arg is empty.
// Nothing is logged.
func (e *Engine) StartConsult(ctx context.Context, userID, arg string) error {
	if strings.TrimSpace(arg) == "" {
		return e.advance(ctx, userID, session.Consult{})
	}
	return e.consult(ctx, userID, arg)
}

func (e *Engine) consult(ctx context.Context, userID, text string) error {
	if err := e.msg.SendText(ctx, userID, msgAnalyzing); err != nil {
		return err
	}
	n, err := e.extractor.Consult(ctx, text)
	if err != nil {
		if isExtractionFailure(err) {
			return e.msg.SendText(ctx, userID, msgConsultFailed)
		}
		return err
	}
	return e.msg.SendText(ctx, userID, fmt.Sprintf(`📊 *Información nutricional de "%s":*

%s

_Este es solo una consulta, no se ha registrado._`, n.Name, nutritionLines(n)))
}
