package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CalCounter/internal/models"
)

func TestFoodCSV(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	foods := []models.FoodEntry{
		{
			ID: "2", UserID: "u",
			Nutrition: models.Nutrition{Name: "Pizza, muzzarella", Calories: 570.5, Protein: 24, Carbs: 66, Fat: 22, Portion: "2 porciones"},
			// 01:00 UTC is still the previous local day.
			LoggedAt: time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC),
		},
		{
			ID: "1", UserID: "u",
			Nutrition: models.Nutrition{Name: "Manzana", Calories: 95, Carbs: 25},
			LoggedAt:  time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC),
		},
	}

	out, err := FoodCSV(foods, loc)
	require.NoError(t, err)
	want := "fecha,nombre,calorias,proteinas,carbohidratos,grasas,cantidad\n" +
		"10/3/2026,\"Pizza, muzzarella\",570.5,24,66,22,2 porciones\n" +
		"9/3/2026,Manzana,95,0,25,0,\n"
	assert.Equal(t, want, string(out))
}

func TestFoodCSVEmpty(t *testing.T) {
	out, err := FoodCSV(nil, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "fecha,nombre,calorias,proteinas,carbohidratos,grasas,cantidad\n", string(out))
}
