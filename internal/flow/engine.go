// Package flow implements the multi-turn conversations of CalCounter: profile
// configuration, manual goals, weight and exercise logging, nutrition lookups and
// the confirmation of extracted food.
//
// An Engine is driven one event at a time per user; the caller serializes events
// of the same user.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/genai"
	"github.com/BTreeMap/CalCounter/internal/messaging"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/observability"
	"github.com/BTreeMap/CalCounter/internal/session"
)

// Button payloads handled by the engine.
const (
	PayloadConfirmFood = "confirm_food"
	PayloadCancelFood  = "cancel_food"

	prefixSex      = "sexo_"
	prefixActivity = "act_"
	prefixGoal     = "obj_"
	prefixDeficit  = "deficit_"
	prefixSurplus  = "superavit_"
	prefixWeekend  = "finde_"
)

// Engine advances user conversations and resolves pending food.
type Engine struct {
	sessions  session.Store
	diary     *diary.Service
	extractor genai.Extractor
	msg       messaging.Sender
}

// NewEngine creates an Engine.
func NewEngine(sessions session.Store, d *diary.Service, extractor genai.Extractor, msg messaging.Sender) *Engine {
	return &Engine{sessions: sessions, diary: d, extractor: extractor, msg: msg}
}

// Active reports whether the user is in the middle of a flow.
func (e *Engine) Active(userID string) bool {
	s, ok := e.sessions.Get(userID)
	return ok && s.Flow != nil
}

// HandlesPayload reports whether a button payload belongs to the engine.
func HandlesPayload(payload string) bool {
	if payload == PayloadConfirmFood || payload == PayloadCancelFood {
		return true
	}
	for _, p := range []string{prefixSex, prefixActivity, prefixGoal, prefixDeficit, prefixSurplus, prefixWeekend} {
		if strings.HasPrefix(payload, p) {
			return true
		}
	}
	return false
}

// Cancel abandons the active flow and any pending food.
func (e *Engine) Cancel(ctx context.Context, userID string) error {
	s, ok := e.sessions.Get(userID)
	if !ok || s.IsEmpty() {
		return e.msg.SendText(ctx, userID, msgNothingToCancel)
	}
	e.sessions.Clear(userID)
	slog.Info("Flow cancelled", "userID", userID)
	return e.msg.SendText(ctx, userID, msgCancelled)
}

// HandleText feeds a free-text message to the active flow, or treats it as a food
// description when no flow is active.
func (e *Engine) HandleText(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	s, _ := e.sessions.Get(userID)
	if s.Flow == nil {
		if text == "" {
			slog.Debug("Flow HandleText ignoring blank message", "userID", userID)
			return nil
		}
		return e.extractText(ctx, userID, text)
	}

	slog.Debug("Flow HandleText", "userID", userID, "step", s.Flow.Name())
	switch st := s.Flow.(type) {
	case session.ConfigWeight:
		return e.configWeight(ctx, userID, text)
	case session.ConfigHeight:
		return e.configHeight(ctx, userID, st, text)
	case session.ConfigAge:
		return e.configAge(ctx, userID, st, text)
	case session.ConfigTargetWeight:
		return e.configTargetWeight(ctx, userID, st, text)
	case session.GoalsCalories:
		return e.goalsCalories(ctx, userID, text)
	case session.GoalsProtein:
		return e.goalsProtein(ctx, userID, st, text)
	case session.GoalsCarbs:
		return e.goalsCarbs(ctx, userID, st, text)
	case session.GoalsFat:
		return e.goalsFat(ctx, userID, st, text)
	case session.LogWeight:
		return e.logWeightStep(ctx, userID, text)
	case session.ExerciseName:
		return e.exerciseName(ctx, userID, text)
	case session.ExerciseCalories:
		return e.exerciseCalories(ctx, userID, st, text)
	case session.Consult:
		e.sessions.Clear(userID)
		return e.consult(ctx, userID, text)
	default:
		// Button steps: repeat the question.
		prompt, menu := promptFor(st)
		return e.send(ctx, userID, msgUseButtons+"\n\n"+prompt, menu)
	}
}

// HandlePhoto extracts nutrition from a photo. A photo takes priority over any
// active flow.
func (e *Engine) HandlePhoto(ctx context.Context, userID string, fetch models.PhotoFetcher, caption string) error {
	return e.extractPhoto(ctx, userID, fetch, caption)
}

// HandleButton resolves a button tap and returns the acknowledgement text. Taps
// that no longer match the session are ignored.
func (e *Engine) HandleButton(ctx context.Context, userID, payload string) (string, error) {
	switch payload {
	case PayloadConfirmFood:
		return e.confirmFood(ctx, userID)
	case PayloadCancelFood:
		return e.cancelFood(ctx, userID)
	}

	s, _ := e.sessions.Get(userID)
	var err error
	handled := true
	switch st := s.Flow.(type) {
	case session.ConfigSex:
		handled, err = e.chooseSex(ctx, userID, st, payload)
	case session.ConfigActivity:
		handled, err = e.chooseActivity(ctx, userID, st, payload)
	case session.ConfigGoal:
		handled, err = e.chooseGoal(ctx, userID, st, payload)
	case session.ConfigDeficitTier:
		handled, err = e.chooseTier(ctx, userID, st.Person, models.GoalDeficit, st.TargetWeight, prefixDeficit, payload)
	case session.ConfigSurplusTier:
		handled, err = e.chooseTier(ctx, userID, st.Person, models.GoalSurplus, st.TargetWeight, prefixSurplus, payload)
	case session.ConfigWeekendPlan:
		handled, err = e.chooseWeekendPlan(ctx, userID, st, payload)
	default:
		handled = false
	}
	if !handled {
		observability.RecordStaleTap()
		slog.Debug("Flow stale button ignored", "userID", userID, "payload", payload)
	}
	return "", err
}

// advance stores the next step and asks its question.
func (e *Engine) advance(ctx context.Context, userID string, next session.Step) error {
	e.sessions.Set(userID, session.Session{Flow: next})
	slog.Debug("Flow advanced", "userID", userID, "step", next.Name())
	prompt, menu := promptFor(next)
	return e.send(ctx, userID, prompt, menu)
}

// finish clears the session after a flow completed.
func (e *Engine) finish(userID string, flow string) {
	e.sessions.Clear(userID)
	observability.RecordFlowCompleted(flow)
	slog.Info("Flow completed", "userID", userID, "flow", flow)
}

func (e *Engine) send(ctx context.Context, userID, text string, menu models.Menu) error {
	if len(menu) > 0 {
		return e.msg.SendMenu(ctx, userID, text, menu)
	}
	return e.msg.SendText(ctx, userID, text)
}

// isExtractionFailure reports whether err came from the extraction service.
func isExtractionFailure(err error) bool {
	return errors.Is(err, genai.ErrExtractionFailed)
}
