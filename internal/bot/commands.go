package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/observability"
)

type commandFunc func(ctx context.Context, evt models.Event, arg string) error

// ParseCommand splits "/name@bot rest" into name and argument. Names are case-sensitive.
func ParseCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	head, _, _ = strings.Cut(head[1:], "@")
	if head == "" {
		return "", "", false
	}
	return head, strings.TrimSpace(rest), true
}

func (r *Router) commandTable() map[string]commandFunc {
	user := func(fn func(context.Context, string) error) commandFunc {
		return func(ctx context.Context, evt models.Event, _ string) error {
			return fn(ctx, evt.UserID)
		}
	}
	withArg := func(fn func(context.Context, string, string) error) commandFunc {
		return func(ctx context.Context, evt models.Event, arg string) error {
			return fn(ctx, evt.UserID, arg)
		}
	}
	return map[string]commandFunc{
		"start": func(ctx context.Context, evt models.Event, _ string) error {
			return r.reports.Start(ctx, evt.UserID, evt.Username, evt.FirstName)
		},
		"ayuda":           user(r.reports.Help),
		"config":          user(r.engine.StartConfig),
		"metas":           user(r.engine.StartGoals),
		"calorias":        user(r.reports.Calories),
		"macros":          user(r.reports.Macros),
		"resumen":         user(r.reports.Summary),
		"consultar":       withArg(r.engine.StartConsult),
		"historial":       user(r.reports.History),
		"semana":          user(r.reports.Week),
		"peso":            withArg(r.engine.StartWeightLog),
		"progreso":        user(r.reports.Progress),
		"ejercicio":       withArg(r.engine.StartExercise),
		"borrarejercicio": user(r.reports.DeleteLastExercise),
		"guardar":         user(r.reports.SaveFavourite),
		"sugerencia":      user(r.reports.Suggest),
		"frecuentes":      user(r.reports.Favourites),
		"eliminarfav":     user(r.reports.DeleteFavouriteMenu),
		"exportar":        user(r.reports.Export),
		"cancelar":        user(r.engine.Cancel),
	}
}

func (r *Router) runCommand(ctx context.Context, evt models.Event, name, arg string) error {
	cmd, ok := r.commands[name]
	if !ok {
		observability.RecordCommand("unknown")
		slog.Debug("Router unknown command", "userID", evt.UserID, "command", name)
		return r.msg.SendText(ctx, evt.UserID, msgUnknownCommand)
	}
	observability.RecordCommand(name)
	slog.Debug("Router command", "userID", evt.UserID, "command", name)
	return cmd(ctx, evt, arg)
}
