// Package diary turns raw store entries into the daily view users see: local-day
// boundaries, totals, the applicable calorie target and entry creation.
package diary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/CalCounter/internal/events"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/store"
)

// Location is the fixed local zone used for day boundaries (UTC-3, no DST).
var Location = time.FixedZone("ART", -3*60*60)

// DefaultDailyTarget applies when the user has not configured any goal.
const DefaultDailyTarget = 2000

// publishTimeout bounds the time spent delivering a domain event.
const publishTimeout = 5 * time.Second

// DayBounds returns the first and last instant of the local day containing t.
func DayBounds(t time.Time) (start, end time.Time) {
	local := t.In(Location)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location)
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// IsWeekend reports whether t falls on a local Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	switch t.In(Location).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// DayTarget returns the calorie target for the local day of t and a label
// describing which split applied. The label is empty without a weekend plan.
func DayTarget(p *models.Profile, t time.Time) (int, string) {
	if p == nil {
		return DefaultDailyTarget, ""
	}
	tg := p.Targets
	if p.WeekendPlan && tg.WeekdayCalories > 0 && tg.WeekendCalories > 0 {
		if IsWeekend(t) {
			return tg.WeekendCalories, " (fin de semana)"
		}
		return tg.WeekdayCalories, " (L-V)"
	}
	if tg.DailyCalories > 0 {
		return tg.DailyCalories, ""
	}
	return DefaultDailyTarget, ""
}

// Stats aggregates the entries of one local day.
type Stats struct {
	Day       time.Time
	Calories  float64
	Protein   float64
	Carbs     float64
	Fat       float64
	Burned    int
	Foods     []models.FoodEntry
	Exercises []models.ExerciseEntry
}

// Net returns consumed minus burned calories.
func (s Stats) Net() float64 {
	return s.Calories - float64(s.Burned)
}

// Summarize totals the given entries.
func Summarize(day time.Time, foods []models.FoodEntry, exercises []models.ExerciseEntry) Stats {
	st := Stats{Day: day, Foods: foods, Exercises: exercises}
	for _, f := range foods {
		st.Calories += f.Calories
		st.Protein += f.Protein
		st.Carbs += f.Carbs
		st.Fat += f.Fat
	}
	for _, e := range exercises {
		st.Burned += e.CaloriesBurned
	}
	return st
}

// Num formats a number the way users expect: integers without decimals,
// everything else with one decimal.
func Num(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// RemainingLine renders the remaining or exceeded calories.
func RemainingLine(remaining float64) string {
	if remaining > 0 {
		return "🎯 Te quedan: " + Num(remaining) + " kcal"
	}
	return "⚠️ Excedido por: " + Num(math.Abs(remaining)) + " kcal"
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.pub = p
		}
	}
}

// Service reads and writes diary data for users.
type Service struct {
	store store.Store
	pub   events.Publisher
	now   func() time.Time
}

// NewService creates a diary service on top of a store.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, pub: events.NopPublisher{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() store.Store {
	return s.store
}

// Now returns the current time of the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Profile returns the profile of the user or nil when none exists.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// Day returns the stats of the local day containing t.
func (s *Service) Day(ctx context.Context, userID string, t time.Time) (Stats, error) {
	start, end := DayBounds(t)
	foods, err := s.store.ListFood(ctx, userID, start, end)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load foods: %w", err)
	}
	exercises, err := s.store.ListExercise(ctx, userID, start, end)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load exercises: %w", err)
	}
	return Summarize(start, foods, exercises), nil
}

// Today returns the stats of the current local day.
func (s *Service) Today(ctx context.Context, userID string) (Stats, error) {
	return s.Day(ctx, userID, s.now())
}

// LastDays returns stats for the last n local days, oldest first, ending today.
func (s *Service) LastDays(ctx context.Context, userID string, n int) ([]Stats, error) {
	out := make([]Stats, 0, n)
	today, _ := DayBounds(s.now())
	for i := n - 1; i >= 0; i-- {
		st, err := s.Day(ctx, userID, today.AddDate(0, 0, -i))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Balance is today's intake against the applicable target.
type Balance struct {
	Stats     Stats
	Target    int
	Label     string
	Remaining float64
	Profile   *models.Profile
}

// TodayBalance returns today's stats together with the target of the day.
func (s *Service) TodayBalance(ctx context.Context, userID string) (Balance, error) {
	st, err := s.Today(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to load profile: %w", err)
	}
	target, label := DayTarget(p, s.now())
	return Balance{Stats: st, Target: target, Label: label, Remaining: float64(target) - st.Net(), Profile: p}, nil
}

// LogFood persists a food entry at the current time.
func (s *Service) LogFood(ctx context.Context, userID string, n models.Nutrition) (models.FoodEntry, error) {
	e := models.FoodEntry{ID: uuid.NewString(), UserID: userID, Nutrition: n, LoggedAt: s.now()}
	if err := s.store.AddFood(ctx, e); err != nil {
		return models.FoodEntry{}, err
	}
	slog.Info("Diary food logged", "userID", userID, "name", n.Name, "calories", n.Calories)
	s.publish(ctx, models.DomainFoodLogged, userID, e)
	return e, nil
}

// LogExercise persists an exercise entry at the current time.
func (s *Service) LogExercise(ctx context.Context, userID, name string, burned int) (models.ExerciseEntry, error) {
	e := models.ExerciseEntry{ID: uuid.NewString(), UserID: userID, Name: name, CaloriesBurned: burned, LoggedAt: s.now()}
	if err := s.store.AddExercise(ctx, e); err != nil {
		return models.ExerciseEntry{}, err
	}
	slog.Info("Diary exercise logged", "userID", userID, "name", name, "burned", burned)
	s.publish(ctx, models.DomainExerciseLogged, userID, e)
	return e, nil
}

// LogWeight persists a weight entry and updates the profile weight.
func (s *Service) LogWeight(ctx context.Context, userID string, weight float64) (models.WeightEntry, error) {
	e := models.WeightEntry{ID: uuid.NewString(), UserID: userID, Weight: weight, LoggedAt: s.now()}
	if err := s.store.AddWeight(ctx, e); err != nil {
		return models.WeightEntry{}, err
	}
	if err := s.store.UpdateWeight(ctx, userID, weight); err != nil {
		return models.WeightEntry{}, err
	}
	slog.Info("Diary weight logged", "userID", userID, "weight", weight)
	s.publish(ctx, models.DomainWeightLogged, userID, e)
	return e, nil
}

// SaveProfile upserts the profile and announces the new configuration.
func (s *Service) SaveProfile(ctx context.Context, p models.Profile) error {
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return err
	}
	slog.Info("Diary profile saved", "userID", p.UserID, "daily", p.Targets.DailyCalories)
	s.publish(ctx, models.DomainProfileConfigured, p.UserID, p)
	return nil
}

// publish delivers a domain event. Failures are logged and never undo the write.
func (s *Service) publish(ctx context.Context, kind, userID string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	evt := models.DomainEvent{ID: uuid.NewString(), Type: kind, UserID: userID, OccurredAt: s.now().UTC(), Payload: payload}
	if err := s.pub.Publish(ctx, evt); err != nil {
		slog.Warn("Diary event publish failed", "error", err, "type", kind, "userID", userID)
	}
}
