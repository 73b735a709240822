package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/genai"
	"github.com/BTreeMap/CalCounter/internal/models"
)

// suggestFavourites bounds the frequent meals sent as context for a suggestion.
const suggestFavourites = 10

const (
	msgThinking         = "🤔 Pensando sugerencias para ti..."
	msgGoalReached      = "⚠️ Ya alcanzaste tu meta de calorías por hoy. ¡Buen trabajo! 🎉"
	msgSuggestionFailed = "❌ No pude generar una sugerencia ahora. Intenta más tarde."
)

// Suggest proposes a meal that fits the remaining calories of today.
func (r *Reporter) Suggest(ctx context.Context, userID string) error {
	if err := r.msg.SendText(ctx, userID, msgThinking); err != nil {
		return err
	}
	b, err := r.diary.TodayBalance(ctx, userID)
	if err != nil {
		return err
	}
	if b.Remaining <= 0 {
		return r.msg.SendText(ctx, userID, msgGoalReached)
	}
	if r.suggester == nil {
		return r.msg.SendText(ctx, userID, msgSuggestionFailed)
	}
	favourites, err := r.diary.Store().ListFrequentMeals(ctx, userID, suggestFavourites)
	if err != nil {
		return fmt.Errorf("failed to list frequent meals: %w", err)
	}

	remaining := int(b.Remaining)
	s, err := r.suggester.Suggest(ctx, genai.SuggestRequest{
		Remaining:  remaining,
		Favourites: favourites,
		LocalTime:  r.diary.Now().In(diary.Location),
	})
	if err != nil {
		slog.Warn("Report suggestion failed", "userID", userID, "error", err)
		return r.msg.SendText(ctx, userID, msgSuggestionFailed)
	}
	return r.msg.SendText(ctx, userID, suggestionText(s, favourites, b.Remaining))
}

func suggestionText(s models.Suggestion, favourites []models.FrequentMeal, remaining float64) string {
	badge := ""
	if matchesFavourite(s.Name, favourites) {
		badge = " ⭐ (basado en tus favoritas)"
	}
	ingredients := make([]string, 0, len(s.Ingredients))
	for _, i := range s.Ingredients {
		ingredients = append(ingredients, "  • "+i)
	}
	fit := "⚠️ Esta sugerencia excede un poco tus calorías restantes"
	if s.Calories <= remaining {
		fit = fmt.Sprintf("✅ Quedarían %s kcal disponibles", diary.Num(remaining-s.Calories))
	}
	return fmt.Sprintf(`💡 *Sugerencia para tu %s*%s

🍽️ *%s*
🔥 %s kcal | 🥩 %sg prot | 🍞 %sg carb | 🧈 %sg grasa

📋 *Ingredientes:*
%s

📏 *Porción:* %s

💬 %s

%s`, s.MealType, badge, s.Name,
		diary.Num(s.Calories), diary.Num(s.Protein), diary.Num(s.Carbs), diary.Num(s.Fat),
		strings.Join(ingredients, "\n"), s.Portion, s.Advice, fit)
}

// matchesFavourite reports whether either name contains the other, ignoring case.
func matchesFavourite(name string, favourites []models.FrequentMeal) bool {
	n := strings.ToLower(name)
	for _, f := range favourites {
		fav := strings.ToLower(f.Name)
		if strings.Contains(fav, n) || strings.Contains(n, fav) {
			return true
		}
	}
	return false
}
