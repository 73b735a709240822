package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/observability"
	"github.com/BTreeMap/CalCounter/internal/session"
)

// nutritionLines renders the nutrition facts shared by analysis and lookup replies.
func nutritionLines(n models.Nutrition) string {
	return fmt.Sprintf("🔥 Calorías: %s kcal\n🥩 Proteínas: %sg\n🍞 Carbohidratos: %sg\n🧈 Grasas: %sg\n📏 Porción: %s",
		diary.Num(n.Calories), diary.Num(n.Protein), diary.Num(n.Carbs), diary.Num(n.Fat), n.Portion)
}

func (e *Engine) extractText(ctx context.Context, userID, text string) error {
	if err := e.msg.SendText(ctx, userID, msgAnalyzing); err != nil {
		return err
	}
	n, err := e.extractor.ExtractFromText(ctx, text)
	if err != nil {
		if isExtractionFailure(err) {
			return e.msg.SendText(ctx, userID, msgTextFailed)
		}
		return err
	}
	return e.offer(ctx, userID, "📝 *Análisis:*", n)
}

func (e *Engine) extractPhoto(ctx context.Context, userID string, fetch models.PhotoFetcher, caption string) error {
	if err := e.msg.SendText(ctx, userID, msgAnalyzingPhoto); err != nil {
		return err
	}
	if fetch == nil {
		return e.msg.SendText(ctx, userID, msgPhotoError)
	}
	image, err := fetch(ctx)
	if err != nil {
		slog.Error("Flow photo download failed", "userID", userID, "error", err)
		return e.msg.SendText(ctx, userID, msgPhotoError)
	}
	n, err := e.extractor.ExtractFromImage(ctx, image, caption)
	if err != nil {
		if isExtractionFailure(err) {
			return e.msg.SendText(ctx, userID, msgPhotoFailed)
		}
		return err
	}
	return e.offer(ctx, userID, "📸 *Análisis de imagen:*", n)
}

// offer replaces the session with the extracted food and asks for confirmation.
// Any active flow is abandoned and an older pending food is overwritten.
func (e *Engine) offer(ctx context.Context, userID, title string, n models.Nutrition) error {
	e.sessions.Set(userID, session.Session{PendingFood: &n})
	slog.Debug("Flow pending food set", "userID", userID, "name", n.Name)
	text := fmt.Sprintf("%s\n\n🍽️ %s\n%s\n\n¿Guardar este registro?", title, n.Name, nutritionLines(n))
	return e.msg.SendMenu(ctx, userID, text, confirmMenu)
}

func (e *Engine) confirmFood(ctx context.Context, userID string) (string, error) {
	s, ok := e.sessions.Get(userID)
	if !ok || s.PendingFood == nil {
		observability.RecordStaleTap()
		return "", nil
	}
	food := *s.PendingFood
	if _, err := e.diary.LogFood(ctx, userID, food); err != nil {
		return "", fmt.Errorf("failed to log food: %w", err)
	}
	s.PendingFood = nil
	e.sessions.Set(userID, s)

	bal, err := e.diary.TodayBalance(ctx, userID)
	if err != nil {
		return ackFoodSaved, fmt.Errorf("failed to load balance: %w", err)
	}
	text := fmt.Sprintf("✅ Registrado: %s (%s kcal)\n\n%s", food.Name, diary.Num(food.Calories), diary.RemainingLine(bal.Remaining))
	return ackFoodSaved, e.msg.SendText(ctx, userID, text)
}

func (e *Engine) cancelFood(ctx context.Context, userID string) (string, error) {
	s, ok := e.sessions.Get(userID)
	if !ok || s.PendingFood == nil {
		observability.RecordStaleTap()
		return "", nil
	}
	s.PendingFood = nil
	e.sessions.Set(userID, s)
	return ackFoodCancelled, e.msg.SendText(ctx, userID, msgFoodCancelled)
}
