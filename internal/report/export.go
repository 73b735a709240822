package report

import (
	"context"
	"fmt"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/export"
)

const (
	msgNothingToExport = "📭 No hay datos para exportar."
	exportCaption      = "📊 Aquí tienes tu historial de comidas exportado."
)

// Export sends every food entry of the user as a CSV document, newest first.
func (r *Reporter) Export(ctx context.Context, userID string) error {
	foods, err := r.diary.Store().AllFood(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load foods: %w", err)
	}
	if len(foods) == 0 {
		return r.msg.SendText(ctx, userID, msgNothingToExport)
	}
	data, err := export.FoodCSV(foods, diary.Location)
	if err != nil {
		return err
	}
	return r.msg.SendDocument(ctx, userID, export.Filename, data, exportCaption)
}
