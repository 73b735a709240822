package report

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/chart"
	"github.com/BTreeMap/CalCounter/internal/diary"
)

const (
	historyDays = 7
	weekTitle   = "Estadísticas de la semana"
	msgNoChart  = "❌ Error al generar el gráfico. Intenta de nuevo."
)

// Calories sends today's consumed, burned and net calories against the target.
func (r *Reporter) Calories(ctx context.Context, userID string) error {
	b, err := r.diary.TodayBalance(ctx, userID)
	if err != nil {
		return err
	}
	st := b.Stats
	status := "✅ Te quedan: " + diary.Num(b.Remaining) + " kcal"
	if b.Remaining <= 0 {
		status = "⚠️ Excedido por: " + diary.Num(math.Abs(b.Remaining)) + " kcal"
	}
	return r.msg.SendText(ctx, userID, fmt.Sprintf(`🔥 *Calorías de hoy:*

📥 Consumidas: %s kcal
🏃 Quemadas: %d kcal
📊 Netas: %s kcal

🎯 Meta: %d kcal%s
%s`, diary.Num(st.Calories), st.Burned, diary.Num(st.Net()), b.Target, b.Label, status))
}

// Macros sends today's macro totals, with the goal when one is set.
func (r *Reporter) Macros(ctx context.Context, userID string) error {
	b, err := r.diary.TodayBalance(ctx, userID)
	if err != nil {
		return err
	}
	var protein, carbs, fat int
	if b.Profile != nil {
		protein, carbs, fat = b.Profile.Targets.ProteinGrams, b.Profile.Targets.CarbsGrams, b.Profile.Targets.FatGrams
	}
	st := b.Stats
	return r.msg.SendText(ctx, userID, fmt.Sprintf(`📊 *Macros de hoy:*

🔥 Calorías: %s / %d kcal
🥩 Proteínas: %.1fg %s
🍞 Carbohidratos: %.1fg %s
🧈 Grasas: %.1fg %s`,
		diary.Num(st.Calories), b.Target,
		st.Protein, gramGoal(protein),
		st.Carbs, gramGoal(carbs),
		st.Fat, gramGoal(fat)))
}

func gramGoal(g int) string {
	if g <= 0 {
		return ""
	}
	return fmt.Sprintf("/ %dg", g)
}

// Summary sends today's entries, totals, macros and balance.
func (r *Reporter) Summary(ctx context.Context, userID string) error {
	b, err := r.diary.TodayBalance(ctx, userID)
	if err != nil {
		return err
	}
	st := b.Stats

	foods := "  No hay registros"
	if len(st.Foods) > 0 {
		lines := make([]string, 0, len(st.Foods))
		for _, f := range st.Foods {
			lines = append(lines, fmt.Sprintf("  • %s: %s kcal", f.Name, diary.Num(f.Calories)))
		}
		foods = strings.Join(lines, "\n")
	}
	exercises := "  No hay registros"
	if len(st.Exercises) > 0 {
		lines := make([]string, 0, len(st.Exercises))
		for _, e := range st.Exercises {
			lines = append(lines, fmt.Sprintf("  • %s: -%d kcal", e.Name, e.CaloriesBurned))
		}
		exercises = strings.Join(lines, "\n")
	}
	balance := "Restante: " + diary.Num(b.Remaining)
	if b.Remaining <= 0 {
		balance = "Excedido: " + diary.Num(math.Abs(b.Remaining))
	}

	return r.msg.SendText(ctx, userID, fmt.Sprintf(`📋 *Resumen del día:*

🍽️ *Comidas:*
%s

🏃 *Ejercicios:*
%s

━━━━━━━━━━━━━━━
🔥 Total consumido: %s kcal
🏃 Total quemado: %d kcal
📊 Balance neto: %s kcal

📊 *Macros:*
🥩 Proteínas: %.1fg
🍞 Carbohidratos: %.1fg
🧈 Grasas: %.1fg

🎯 Meta: %d kcal%s | %s kcal`,
		foods, exercises,
		diary.Num(st.Calories), st.Burned, diary.Num(st.Net()),
		st.Protein, st.Carbs, st.Fat,
		b.Target, b.Label, balance))
}

// History sends the totals of the last seven days, newest first.
func (r *Reporter) History(ctx context.Context, userID string) error {
	days, err := r.diary.LastDays(ctx, userID, historyDays)
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString("📅 *Historial de los últimos 7 días:*\n\n")
	for i := len(days) - 1; i >= 0; i-- {
		d := days[i]
		fmt.Fprintf(&sb, "📆 %s: %s kcal (🏃-%d) = %s netas\n",
			weekdayDayMonth(d.Day), diary.Num(d.Calories), d.Burned, diary.Num(d.Net()))
	}
	return r.msg.SendText(ctx, userID, sb.String())
}

// Week sends a bar chart of the last seven days with weekly totals.
func (r *Reporter) Week(ctx context.Context, userID string) error {
	days, err := r.diary.LastDays(ctx, userID, historyDays)
	if err != nil {
		return err
	}
	bars := make([]chart.Day, 0, len(days))
	var total float64
	var burned int
	for _, d := range days {
		bars = append(bars, chart.Day{Label: shortWeekday(d.Day), Consumed: d.Calories, Burned: float64(d.Burned)})
		total += d.Calories
		burned += d.Burned
	}

	png, err := chart.WeekBars(weekTitle, bars)
	if err != nil {
		slog.Error("Report week chart failed", "userID", userID, "error", err)
		return r.msg.SendText(ctx, userID, msgNoChart)
	}
	caption := fmt.Sprintf("📊 *Estadísticas semanales*\n\n📈 Promedio diario: %s kcal\n📊 Total semana: %s kcal\n🏃 Total quemado: %d kcal",
		diary.Num(math.Round(total/historyDays)), diary.Num(total), burned)
	return r.msg.SendPhoto(ctx, userID, png, caption)
}
