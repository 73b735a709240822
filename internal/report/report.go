// Package report implements the stateless commands of CalCounter: daily totals,
// history and charts, frequent meals, export and meal suggestions.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/genai"
	"github.com/BTreeMap/CalCounter/internal/messaging"
	"github.com/BTreeMap/CalCounter/internal/observability"
)

// Button payload prefixes handled by the reporter.
const (
	PrefixFrequent        = "freq_"
	PrefixDeleteFavourite = "delfav_"
)

const welcomeText = `🍎 ¡Bienvenido a CalCounter!

Soy tu asistente para contar calorías. Puedes:
📸 Enviarme una foto de tu comida
✍️ Escribir qué comiste

Comandos disponibles:
/config - Configurar datos iniciales
/calorias - Ver kcal de hoy
/macros - Ver macros del día
/resumen - Balance completo del día
/consultar - Consultar kcal sin registrar
/sugerencia - Sugerencia de comida con IA
/historial - Ver días anteriores
/semana - Estadísticas semanales con gráfico
/progreso - Gráfico de evolución de peso
/metas - Ver/configurar metas
/peso - Registrar peso
/ejercicio - Añadir actividad física
/borrarejercicio - Eliminar último ejercicio
/guardar - Guardar comida frecuente
/frecuentes - Ver comidas guardadas
/eliminarfav - Borrar comida frecuente
/exportar - Exportar datos a CSV
/cancelar - Cancelar la operación en curso`

// Reporter answers report commands from diary data.
type Reporter struct {
	diary     *diary.Service
	suggester genai.Suggester
	msg       messaging.Sender
}

// NewReporter creates a Reporter. The suggester may be nil, in which case
// suggestions are reported as unavailable.
func NewReporter(d *diary.Service, suggester genai.Suggester, msg messaging.Sender) *Reporter {
	return &Reporter{diary: d, suggester: suggester, msg: msg}
}

// HandlesPayload reports whether a button payload belongs to the reporter.
func HandlesPayload(payload string) bool {
	return strings.HasPrefix(payload, PrefixFrequent) || strings.HasPrefix(payload, PrefixDeleteFavourite)
}

// Start creates the profile of a new user and sends the welcome text.
func (r *Reporter) Start(ctx context.Context, userID, username, firstName string) error {
	if err := r.diary.Store().EnsureProfile(ctx, userID, username, firstName); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return r.msg.SendText(ctx, userID, welcomeText)
}

// Help sends the list of commands.
func (r *Reporter) Help(ctx context.Context, userID string) error {
	return r.msg.SendText(ctx, userID, welcomeText)
}

// HandleButton resolves a frequent-meal tap and returns the acknowledgement
// text. Taps on meals that no longer exist are ignored.
func (r *Reporter) HandleButton(ctx context.Context, userID, payload string) (string, error) {
	if id, ok := strings.CutPrefix(payload, PrefixFrequent); ok {
		return r.logFrequent(ctx, userID, id)
	}
	if id, ok := strings.CutPrefix(payload, PrefixDeleteFavourite); ok {
		return r.deleteFrequent(ctx, userID, id)
	}
	observability.RecordStaleTap()
	slog.Debug("Report unknown button ignored", "userID", userID, "payload", payload)
	return "", nil
}
