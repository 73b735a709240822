package report

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/BTreeMap/CalCounter/internal/chart"
	"github.com/BTreeMap/CalCounter/internal/diary"
)

// progressPoints is the number of measurements plotted, counted from the first one.
const progressPoints = 30

const msgFewWeights = "📊 Necesitas al menos 2 registros de peso para ver tu progreso.\n\nUsa /peso para registrar tu peso."

// Progress sends a line chart of the weight measurements.
func (r *Reporter) Progress(ctx context.Context, userID string) error {
	weights, err := r.diary.Store().RecentWeights(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("failed to load weights: %w", err)
	}
	slices.Reverse(weights)
	if len(weights) > progressPoints {
		weights = weights[:progressPoints]
	}
	if len(weights) < 2 {
		return r.msg.SendText(ctx, userID, msgFewWeights)
	}

	points := make([]chart.Point, 0, len(weights))
	for _, w := range weights {
		points = append(points, chart.Point{Label: dayMonth(w.LoggedAt), Weight: w.Weight})
	}
	png, err := chart.WeightLine("Progreso de Peso", points)
	if err != nil {
		slog.Error("Report progress chart failed", "userID", userID, "error", err)
		return r.msg.SendText(ctx, userID, msgNoChart)
	}

	first, last := weights[0].Weight, weights[len(weights)-1].Weight
	diff := last - first
	trend, sign := "➡️ Estable", ""
	switch {
	case diff < 0:
		trend = "📉 Bajando"
	case diff > 0:
		trend, sign = "📈 Subiendo", "+"
	}
	caption := fmt.Sprintf("📊 *Tu progreso de peso*\n\n⚖️ Peso inicial: %s kg\n⚖️ Peso actual: %s kg\n%s: %s%.1f kg\n📝 Total registros: %d",
		diary.Num(first), diary.Num(last), trend, sign, diff, len(weights))
	return r.msg.SendPhoto(ctx, userID, png, caption)
}
