package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/store"
	"github.com/BTreeMap/CalCounter/internal/testutil"
)

const user = "7"

// Tuesday 15:00 local time.
var now = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

type harness struct {
	r     *Reporter
	d     *diary.Service
	store *store.InMemoryStore
	msg   *testutil.FakeMessenger
	sugg  *testutil.FakeExtractor
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: store.NewInMemoryStore(), msg: testutil.NewFakeMessenger(), sugg: &testutil.FakeExtractor{}, clock: now}
	h.d = diary.NewService(h.store, diary.WithClock(func() time.Time { return h.clock }))
	h.r = NewReporter(h.d, h.sugg, h.msg)
	return h
}

func (h *harness) food(t *testing.T, name string, kcal float64) {
	t.Helper()
	_, err := h.d.LogFood(context.Background(), user, models.Nutrition{Name: name, Calories: kcal, Protein: 10, Carbs: 20, Fat: 5, Portion: "1"})
	require.NoError(t, err)
}

func (h *harness) exercise(t *testing.T, name string, kcal int) {
	t.Helper()
	_, err := h.d.LogExercise(context.Background(), user, name, kcal)
	require.NoError(t, err)
}

func TestStartCreatesProfile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.r.Start(context.Background(), user, "ana", "Ana"))
	p, err := h.store.GetProfile(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FirstName)
	assert.True(t, strings.HasPrefix(h.msg.Last().Text, "🍎 ¡Bienvenido a CalCounter!"))
	assert.Contains(t, h.msg.Last().Text, "/exportar - Exportar datos a CSV")
}

func TestCalories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.food(t, "Ensalada", 350)
	h.exercise(t, "correr", 100)

	require.NoError(t, h.r.Calories(ctx, user))
	text := h.msg.Last().Text
	assert.Contains(t, text, "📥 Consumidas: 350 kcal")
	assert.Contains(t, text, "🏃 Quemadas: 100 kcal")
	assert.Contains(t, text, "📊 Netas: 250 kcal")
	assert.Contains(t, text, "🎯 Meta: 2000 kcal\n")
	assert.Contains(t, text, "✅ Te quedan: 1750 kcal")

	h.food(t, "Torta", 2000)
	require.NoError(t, h.r.Calories(ctx, user))
	assert.Contains(t, h.msg.Last().Text, "⚠️ Excedido por: 250 kcal")
}

func TestCaloriesWeekendPlanLabel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.UpsertProfile(ctx, models.Profile{UserID: user, WeekendPlan: true,
		Targets: models.Targets{DailyCalories: 2873, WeekdayCalories: 2715, WeekendCalories: 3268}}))

	require.NoError(t, h.r.Calories(ctx, user))
	assert.Contains(t, h.msg.Last().Text, "🎯 Meta: 2715 kcal (L-V)")

	h.clock = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC) // Saturday
	require.NoError(t, h.r.Calories(ctx, user))
	assert.Contains(t, h.msg.Last().Text, "🎯 Meta: 3268 kcal (fin de semana)")
}

func TestMacros(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.food(t, "Ensalada", 350)

	require.NoError(t, h.r.Macros(ctx, user))
	text := h.msg.Last().Text
	assert.Contains(t, text, "🔥 Calorías: 350 / 2000 kcal")
	assert.Contains(t, text, "🥩 Proteínas: 10.0g \n")
	assert.NotContains(t, text, "/ 0g")

	require.NoError(t, h.store.UpsertProfile(ctx, models.Profile{UserID: user, Targets: models.Targets{DailyCalories: 1800, ProteinGrams: 150, CarbsGrams: 200, FatGrams: 60}}))
	require.NoError(t, h.r.Macros(ctx, user))
	text = h.msg.Last().Text
	assert.Contains(t, text, "🔥 Calorías: 350 / 1800 kcal")
	assert.Contains(t, text, "🥩 Proteínas: 10.0g / 150g")
	assert.Contains(t, text, "🧈 Grasas: 5.0g / 60g")
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.r.Summary(ctx, user))
	text := h.msg.Last().Text
	assert.Equal(t, 2, strings.Count(text, "  No hay registros"))
	assert.Contains(t, text, "🎯 Meta: 2000 kcal | Restante: 2000 kcal")

	h.food(t, "Ensalada", 350)
	h.exercise(t, "nadar", 200)
	require.NoError(t, h.r.Summary(ctx, user))
	text = h.msg.Last().Text
	assert.Contains(t, text, "  • Ensalada: 350 kcal")
	assert.Contains(t, text, "  • nadar: -200 kcal")
	assert.Contains(t, text, "📊 Balance neto: 150 kcal")
	assert.Contains(t, text, "Restante: 1850 kcal")
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.food(t, "Ensalada", 350)
	h.exercise(t, "correr", 100)

	require.NoError(t, h.r.History(ctx, user))
	lines := strings.Split(strings.TrimSpace(h.msg.Last().Text), "\n")
	require.Len(t, lines, 2+historyDays)
	assert.Equal(t, "📆 mar, 10 mar: 350 kcal (🏃-100) = 250 netas", lines[2])
	assert.Equal(t, "📆 lun, 9 mar: 0 kcal (🏃-0) = 0 netas", lines[3])
	assert.Equal(t, "📆 mié, 4 mar: 0 kcal (🏃-0) = 0 netas", lines[len(lines)-1])
}

func TestWeek(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.food(t, "Ensalada", 350)
	h.exercise(t, "correr", 100)

	require.NoError(t, h.r.Week(ctx, user))
	last := h.msg.Last()
	assert.Equal(t, testutil.KindPhoto, last.Kind)
	assert.True(t, bytes.HasPrefix(last.Data, []byte("\x89PNG")))
	assert.Equal(t, "📊 *Estadísticas semanales*\n\n📈 Promedio diario: 50 kcal\n📊 Total semana: 350 kcal\n🏃 Total quemado: 100 kcal", last.Text)
}

func TestProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.r.Progress(ctx, user))
	assert.Equal(t, msgFewWeights, h.msg.Last().Text)

	for i, w := range []float64{82, 81.2, 80.5} {
		h.clock = now.AddDate(0, 0, i)
		_, err := h.d.LogWeight(ctx, user, w)
		require.NoError(t, err)
	}
	require.NoError(t, h.r.Progress(ctx, user))
	last := h.msg.Last()
	assert.Equal(t, testutil.KindPhoto, last.Kind)
	assert.Equal(t, "📊 *Tu progreso de peso*\n\n⚖️ Peso inicial: 82 kg\n⚖️ Peso actual: 80.5 kg\n📉 Bajando: -1.5 kg\n📝 Total registros: 3", last.Text)
}

func TestDeleteLastExercise(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.r.DeleteLastExercise(ctx, user))
	assert.Equal(t, msgNoExerciseToDelete, h.msg.Last().Text)

	h.exercise(t, "correr", 300)
	h.clock = now.Add(time.Minute)
	h.exercise(t, "nadar", 200)
	require.NoError(t, h.r.DeleteLastExercise(ctx, user))
	assert.Equal(t, "🗑️ Ejercicio eliminado:\nnadar: -200 kcal", h.msg.Last().Text)

	start, end := diary.DayBounds(now)
	left, err := h.store.ListExercise(ctx, user, start, end)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "correr", left[0].Name)
}

func TestFavouritesLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.r.SaveFavourite(ctx, user))
	assert.Equal(t, msgNothingToSave, h.msg.Last().Text)
	require.NoError(t, h.r.Favourites(ctx, user))
	assert.Equal(t, msgNoFavouritesHint, h.msg.Last().Text)
	require.NoError(t, h.r.DeleteFavouriteMenu(ctx, user))
	assert.Equal(t, msgNoFavourites, h.msg.Last().Text)

	h.food(t, "Avena", 300)
	require.NoError(t, h.r.SaveFavourite(ctx, user))
	assert.Equal(t, "⭐ Guardado como frecuente:\nAvena (300 kcal)", h.msg.Last().Text)

	require.NoError(t, h.r.Favourites(ctx, user))
	menu := h.msg.Last()
	assert.Equal(t, testutil.KindMenu, menu.Kind)
	buttons := menu.Menu.Buttons()
	require.Len(t, buttons, 1)
	assert.Equal(t, "Avena (300 kcal)", buttons[0].Label)
	require.True(t, HandlesPayload(buttons[0].Payload))

	ack, err := h.r.HandleButton(ctx, user, buttons[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, ackLogged, ack)
	assert.Equal(t, "✅ Registrado: Avena (300 kcal)\n\n🎯 Te quedan: 1400 kcal", h.msg.Last().Text)
	all, err := h.store.AllFood(ctx, user)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, h.r.DeleteFavouriteMenu(ctx, user))
	del := h.msg.Last().Menu.Buttons()
	require.Len(t, del, 1)
	assert.Equal(t, "🗑️ Avena", del[0].Label)

	ack, err = h.r.HandleButton(ctx, user, del[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, ackDeleted, ack)
	assert.Equal(t, "🗑️ Eliminado: Avena", h.msg.Last().Text)

	sent := len(h.msg.Sent())
	ack, err = h.r.HandleButton(ctx, user, del[0].Payload)
	require.NoError(t, err)
	assert.Empty(t, ack)
	ack, err = h.r.HandleButton(ctx, user, buttons[0].Payload)
	require.NoError(t, err)
	assert.Empty(t, ack)
	assert.Len(t, h.msg.Sent(), sent, "stale taps send nothing")
}

func TestFavouritesAreUserScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.food(t, "Avena", 300)
	require.NoError(t, h.r.SaveFavourite(ctx, user))
	meals, err := h.store.ListFrequentMeals(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, meals, 1)

	ack, err := h.r.HandleButton(ctx, "intruder", PrefixDeleteFavourite+meals[0].ID)
	require.NoError(t, err)
	assert.Empty(t, ack)
	meals, err = h.store.ListFrequentMeals(ctx, user, 0)
	require.NoError(t, err)
	assert.Len(t, meals, 1)
}

func TestSuggest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.food(t, "Avena con banana", 500)
	require.NoError(t, h.r.SaveFavourite(ctx, user))

	h.sugg.Suggestion = models.Suggestion{
		Name: "Avena", MealType: "merienda", Calories: 400, Protein: 15, Carbs: 60, Fat: 8,
		Ingredients: []string{"avena 50g", "leche 200ml"}, Portion: "1 bowl", Advice: "Agrega canela.",
	}
	require.NoError(t, h.r.Suggest(ctx, user))
	assert.Contains(t, h.msg.Texts(), msgThinking)

	req := h.sugg.LastSuggestRequest()
	assert.Equal(t, 1500, req.Remaining)
	require.Len(t, req.Favourites, 1)
	assert.Equal(t, 15, req.LocalTime.Hour())

	text := h.msg.Last().Text
	assert.True(t, strings.HasPrefix(text, "💡 *Sugerencia para tu merienda* ⭐ (basado en tus favoritas)"))
	assert.Contains(t, text, "🔥 400 kcal | 🥩 15g prot | 🍞 60g carb | 🧈 8g grasa")
	assert.Contains(t, text, "  • avena 50g\n  • leche 200ml")
	assert.Contains(t, text, "✅ Quedarían 1100 kcal disponibles")

	h.sugg.Suggestion.Name = "Tarta de verdura"
	h.sugg.Suggestion.Calories = 1600
	require.NoError(t, h.r.Suggest(ctx, user))
	text = h.msg.Last().Text
	assert.NotContains(t, text, "⭐")
	assert.Contains(t, text, "⚠️ Esta sugerencia excede un poco tus calorías restantes")

	h.sugg.Err = errors.New("quota")
	require.NoError(t, h.r.Suggest(ctx, user))
	assert.Equal(t, msgSuggestionFailed, h.msg.Last().Text)
}

func TestSuggestGoalReached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.food(t, "Asado", 2000)
	require.NoError(t, h.r.Suggest(ctx, user))
	assert.Equal(t, msgGoalReached, h.msg.Last().Text)
	assert.Equal(t, 0, h.sugg.Calls())
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.r.Export(ctx, user))
	assert.Equal(t, msgNothingToExport, h.msg.Last().Text)

	h.food(t, "Avena", 300)
	require.NoError(t, h.r.Export(ctx, user))
	doc := h.msg.Last()
	assert.Equal(t, testutil.KindDocument, doc.Kind)
	assert.Equal(t, "calcounter_export.csv", doc.Filename)
	assert.Equal(t, exportCaption, doc.Text)
	assert.Contains(t, string(doc.Data), "10/3/2026,Avena,300,10,20,5,1")
}

func TestHandlesPayload(t *testing.T) {
	assert.True(t, HandlesPayload("freq_1"))
	assert.True(t, HandlesPayload("delfav_1"))
	assert.False(t, HandlesPayload("confirm_food"))
}
