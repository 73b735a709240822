// Package export writes the food history of a user as CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// Filename is the name of the exported document.
const Filename = "calcounter_export.csv"

var header = []string{"fecha", "nombre", "calorias", "proteinas", "carbohidratos", "grasas", "cantidad"}

// FoodCSV renders the entries in the given order. Dates use the local day of loc.
func FoodCSV(foods []models.FoodEntry, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, f := range foods {
		row := []string{
			f.LoggedAt.In(loc).Format("2/1/2006"),
			f.Name,
			num(f.Calories),
			num(f.Protein),
			num(f.Carbs),
			num(f.Fat),
			f.Portion,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
