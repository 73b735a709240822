package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/observability"
	"github.com/BTreeMap/CalCounter/internal/store"
)

const (
	msgNoFavourites       = "📭 No tienes comidas frecuentes guardadas."
	msgNoFavouritesHint   = msgNoFavourites + "\nUsa /guardar después de registrar una comida."
	msgNothingToSave      = "❌ No hay comidas registradas hoy para guardar."
	msgNoExerciseToDelete = "❌ No hay ejercicios registrados hoy para eliminar."
	ackLogged             = "✅ Registrado!"
	ackDeleted            = "🗑️ Eliminado!"
)

// DeleteLastExercise removes the most recent exercise of today.
func (r *Reporter) DeleteLastExercise(ctx context.Context, userID string) error {
	start, end := diary.DayBounds(r.diary.Now())
	e, err := r.diary.Store().DeleteLastExercise(ctx, userID, start, end)
	if errors.Is(err, store.ErrNotFound) {
		return r.msg.SendText(ctx, userID, msgNoExerciseToDelete)
	}
	if err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}
	slog.Info("Report exercise deleted", "userID", userID, "id", e.ID)
	return r.msg.SendText(ctx, userID, fmt.Sprintf("🗑️ Ejercicio eliminado:\n%s: -%d kcal", e.Name, e.CaloriesBurned))
}

// SaveFavourite stores the most recent food of today as a frequent meal.
func (r *Reporter) SaveFavourite(ctx context.Context, userID string) error {
	start, end := diary.DayBounds(r.diary.Now())
	last, err := r.diary.Store().LastFood(ctx, userID, start, end)
	if errors.Is(err, store.ErrNotFound) {
		return r.msg.SendText(ctx, userID, msgNothingToSave)
	}
	if err != nil {
		return fmt.Errorf("failed to load last food: %w", err)
	}
	meal := models.FrequentMeal{ID: uuid.NewString(), UserID: userID, Nutrition: last.Nutrition, CreatedAt: r.diary.Now()}
	if err := r.diary.Store().AddFrequentMeal(ctx, meal); err != nil {
		return fmt.Errorf("failed to save frequent meal: %w", err)
	}
	return r.msg.SendText(ctx, userID, fmt.Sprintf("⭐ Guardado como frecuente:\n%s (%s kcal)", meal.Name, diary.Num(meal.Calories)))
}

// Favourites sends the quick-log menu of frequent meals.
func (r *Reporter) Favourites(ctx context.Context, userID string) error {
	meals, err := r.diary.Store().ListFrequentMeals(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("failed to list frequent meals: %w", err)
	}
	if len(meals) == 0 {
		return r.msg.SendText(ctx, userID, msgNoFavouritesHint)
	}
	buttons := make([]models.Button, 0, len(meals))
	for _, m := range meals {
		buttons = append(buttons, models.Button{
			Label:   fmt.Sprintf("%s (%s kcal)", m.Name, diary.Num(m.Calories)),
			Payload: PrefixFrequent + m.ID,
		})
	}
	return r.msg.SendMenu(ctx, userID, "⭐ *Comidas frecuentes:*\nToca una para registrarla:", models.Column(buttons...))
}

// DeleteFavouriteMenu sends the menu used to remove a frequent meal.
func (r *Reporter) DeleteFavouriteMenu(ctx context.Context, userID string) error {
	meals, err := r.diary.Store().ListFrequentMeals(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("failed to list frequent meals: %w", err)
	}
	if len(meals) == 0 {
		return r.msg.SendText(ctx, userID, msgNoFavourites)
	}
	buttons := make([]models.Button, 0, len(meals))
	for _, m := range meals {
		buttons = append(buttons, models.Button{Label: "🗑️ " + m.Name, Payload: PrefixDeleteFavourite + m.ID})
	}
	return r.msg.SendMenu(ctx, userID, "🗑️ *Selecciona la comida a eliminar:*", models.Column(buttons...))
}

func (r *Reporter) logFrequent(ctx context.Context, userID, id string) (string, error) {
	meal, err := r.diary.Store().GetFrequentMeal(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		observability.RecordStaleTap()
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load frequent meal: %w", err)
	}
	if _, err := r.diary.LogFood(ctx, userID, meal.Nutrition); err != nil {
		return "", fmt.Errorf("failed to log food: %w", err)
	}
	b, err := r.diary.TodayBalance(ctx, userID)
	if err != nil {
		return ackLogged, err
	}
	return ackLogged, r.msg.SendText(ctx, userID, fmt.Sprintf("✅ Registrado: %s (%s kcal)\n\n%s",
		meal.Name, diary.Num(meal.Calories), diary.RemainingLine(b.Remaining)))
}

func (r *Reporter) deleteFrequent(ctx context.Context, userID, id string) (string, error) {
	meal, err := r.diary.Store().DeleteFrequentMeal(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		observability.RecordStaleTap()
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete frequent meal: %w", err)
	}
	return ackDeleted, r.msg.SendText(ctx, userID, "🗑️ Eliminado: "+meal.Name)
}
