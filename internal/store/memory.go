package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// InMemoryStore is a mutex-guarded Store kept entirely in memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]models.Profile
	foods     []models.FoodEntry
	exercises []models.ExerciseEntry
	weights   []models.WeightEntry
	meals     []models.FrequentMeal
	now       func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.Profile),
		now:      time.Now,
	}
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

func (s *InMemoryStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) EnsureProfile(_ context.Context, userID, username, firstName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; ok {
		return nil
	}
	now := s.now()
	s.profiles[userID] = models.Profile{UserID: userID, Username: username, FirstName: firstName, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *InMemoryStore) UpsertProfile(_ context.Context, p models.Profile) error {
	if p.UserID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.profiles[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.profiles[p.UserID] = p
	return nil
}

func (s *InMemoryStore) UpdateWeight(_ context.Context, userID string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	p, ok := s.profiles[userID]
	if !ok {
		p = models.Profile{UserID: userID, CreatedAt: now}
	}
	p.Weight = weight
	p.UpdatedAt = now
	s.profiles[userID] = p
	return nil
}

func (s *InMemoryStore) AddFood(_ context.Context, e models.FoodEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foods = append(s.foods, e)
	return nil
}

func (s *InMemoryStore) ListFood(_ context.Context, userID string, from, to time.Time) ([]models.FoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FoodEntry
	for _, e := range s.foods {
		if e.UserID == userID && inRange(e.LoggedAt, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.Before(out[j].LoggedAt) })
	return out, nil
}

func (s *InMemoryStore) AllFood(_ context.Context, userID string) ([]models.FoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FoodEntry
	for i := len(s.foods) - 1; i >= 0; i-- {
		if s.foods[i].UserID == userID {
			out = append(out, s.foods[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	return out, nil
}

func (s *InMemoryStore) LastFood(_ context.Context, userID string, from, to time.Time) (*models.FoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *models.FoodEntry
	for i := range s.foods {
		e := s.foods[i]
		if e.UserID != userID || !inRange(e.LoggedAt, from, to) {
			continue
		}
		if last == nil || !e.LoggedAt.Before(last.LoggedAt) {
			last = &e
		}
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return last, nil
}

func (s *InMemoryStore) AddExercise(_ context.Context, e models.ExerciseEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exercises = append(s.exercises, e)
	return nil
}

func (s *InMemoryStore) ListExercise(_ context.Context, userID string, from, to time.Time) ([]models.ExerciseEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ExerciseEntry
	for _, e := range s.exercises {
		if e.UserID == userID && inRange(e.LoggedAt, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.Before(out[j].LoggedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteLastExercise(_ context.Context, userID string, from, to time.Time) (*models.ExerciseEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, e := range s.exercises {
		if e.UserID != userID || !inRange(e.LoggedAt, from, to) {
			continue
		}
		if idx < 0 || !e.LoggedAt.Before(s.exercises[idx].LoggedAt) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}
	deleted := s.exercises[idx]
	s.exercises = append(s.exercises[:idx], s.exercises[idx+1:]...)
	return &deleted, nil
}

func (s *InMemoryStore) AddWeight(_ context.Context, e models.WeightEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = append(s.weights, e)
	return nil
}

func (s *InMemoryStore) RecentWeights(_ context.Context, userID string, limit int) ([]models.WeightEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.WeightEntry
	for i := len(s.weights) - 1; i >= 0; i-- {
		if s.weights[i].UserID == userID {
			out = append(out, s.weights[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AddFrequentMeal(_ context.Context, m models.FrequentMeal) error {
	if m.ID == "" {
		return models.ErrMissingEntryID
	}
	if m.UserID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meals = append(s.meals, m)
	return nil
}

func (s *InMemoryStore) GetFrequentMeal(_ context.Context, userID, id string) (*models.FrequentMeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.meals {
		if m.ID == id && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ListFrequentMeals(_ context.Context, userID string, limit int) ([]models.FrequentMeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FrequentMeal
	for _, m := range s.meals {
		if m.UserID != userID {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteFrequentMeal(_ context.Context, userID, id string) (*models.FrequentMeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.meals {
		if m.ID == id && m.UserID == userID {
			s.meals = append(s.meals[:i], s.meals[i+1:]...)
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) Close() error {
	return nil
}
