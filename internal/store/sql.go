package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// sqlStore implements Store on database/sql. SQLite and PostgreSQL share the
// queries and differ only in placeholder syntax and migrations.
type sqlStore struct {
	db      *sql.DB
	name    string
	dollars bool // use $n placeholders
}

// openSQLStore opens the database, lets tune size the pool, checks the
// connection and applies the idempotent schema.
func openSQLStore(name, driver, dsn, migrations string, dollars bool, tune func(*sql.DB)) (*sqlStore, error) {
	slog.Debug(name+" opening", "driver", driver)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", name, err)
	}
	if tune != nil {
		tune(db)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		slog.Error(name+" ping failed", "error", err)
		return nil, fmt.Errorf("%s: failed to connect: %w", name, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		slog.Error(name+" migrations failed", "error", err)
		return nil, fmt.Errorf("%s: failed to run migrations: %w", name, err)
	}
	slog.Debug(name + " migrations applied")
	return &sqlStore{db: db, name: name, dollars: dollars}, nil
}

// bind rewrites ? placeholders for drivers that use $n.
func (s *sqlStore) bind(query string) string {
	if !s.dollars {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// utc normalises timestamps so that range comparisons are consistent across drivers.
func utc(t time.Time) time.Time {
	return t.UTC()
}

const profileColumns = `user_id, username, first_name, weight, height, age, sex, activity, activity_factor,
	goal, target_weight, tier_kcal, tier_name, weekend_plan, daily_calories, weekday_calories,
	weekend_calories, protein_grams, carbs_grams, fat_grams, created_at, updated_at`

func (s *sqlStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`), userID)
	var p models.Profile
	var username, firstName, sex, activity, goal, tierName sql.NullString
	err := row.Scan(&p.UserID, &username, &firstName, &p.Weight, &p.Height, &p.Age, &sex, &activity,
		&p.ActivityFactor, &goal, &p.TargetWeight, &p.TierKcal, &tierName, &p.WeekendPlan,
		&p.Targets.DailyCalories, &p.Targets.WeekdayCalories, &p.Targets.WeekendCalories,
		&p.Targets.ProteinGrams, &p.Targets.CarbsGrams, &p.Targets.FatGrams, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error(s.name+" GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	p.Username = username.String
	p.FirstName = firstName.String
	p.Sex = models.Sex(sex.String)
	p.Activity = activity.String
	p.Goal = models.Goal(goal.String)
	p.TierName = tierName.String
	return &p, nil
}

func (s *sqlStore) EnsureProfile(ctx context.Context, userID, username, firstName string) error {
	now := utc(time.Now())
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO profiles (user_id, username, first_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`),
		userID, nullString(username), nullString(firstName), now, now)
	if err != nil {
		slog.Error(s.name+" EnsureProfile failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to ensure profile %s: %w", userID, err)
	}
	return nil
}

func (s *sqlStore) UpsertProfile(ctx context.Context, p models.Profile) error {
	if p.UserID == "" {
		return models.ErrEmptyUserID
	}
	now := utc(time.Now())
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = COALESCE(excluded.username, profiles.username),
			first_name = COALESCE(excluded.first_name, profiles.first_name),
			weight = excluded.weight, height = excluded.height, age = excluded.age,
			sex = excluded.sex, activity = excluded.activity, activity_factor = excluded.activity_factor,
			goal = excluded.goal, target_weight = excluded.target_weight,
			tier_kcal = excluded.tier_kcal, tier_name = excluded.tier_name,
			weekend_plan = excluded.weekend_plan, daily_calories = excluded.daily_calories,
			weekday_calories = excluded.weekday_calories, weekend_calories = excluded.weekend_calories,
			protein_grams = excluded.protein_grams, carbs_grams = excluded.carbs_grams,
			fat_grams = excluded.fat_grams, updated_at = excluded.updated_at`),
		p.UserID, nullString(p.Username), nullString(p.FirstName), p.Weight, p.Height, p.Age,
		nullString(string(p.Sex)), nullString(p.Activity), p.ActivityFactor, nullString(string(p.Goal)),
		p.TargetWeight, p.TierKcal, nullString(p.TierName), p.WeekendPlan,
		p.Targets.DailyCalories, p.Targets.WeekdayCalories, p.Targets.WeekendCalories,
		p.Targets.ProteinGrams, p.Targets.CarbsGrams, p.Targets.FatGrams, now, now)
	if err != nil {
		slog.Error(s.name+" UpsertProfile failed", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to upsert profile %s: %w", p.UserID, err)
	}
	slog.Debug(s.name+" UpsertProfile succeeded", "userID", p.UserID)
	return nil
}

func (s *sqlStore) UpdateWeight(ctx context.Context, userID string, weight float64) error {
	now := utc(time.Now())
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO profiles (user_id, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET weight = excluded.weight, updated_at = excluded.updated_at`),
		userID, weight, now, now)
	if err != nil {
		slog.Error(s.name+" UpdateWeight failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update weight for %s: %w", userID, err)
	}
	return nil
}

func (s *sqlStore) AddFood(ctx context.Context, e models.FoodEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO food_entries
		(id, user_id, name, calories, protein, carbs, fat, portion, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.UserID, e.Name, e.Calories, e.Protein, e.Carbs, e.Fat, e.Portion, utc(e.LoggedAt))
	if err != nil {
		slog.Error(s.name+" AddFood failed", "error", err, "userID", e.UserID)
		return fmt.Errorf("failed to insert food entry for %s: %w", e.UserID, err)
	}
	slog.Debug(s.name+" AddFood succeeded", "userID", e.UserID, "id", e.ID)
	return nil
}

const foodColumns = `id, user_id, name, calories, protein, carbs, fat, portion, logged_at`

func scanFood(sc interface{ Scan(...any) error }) (models.FoodEntry, error) {
	var e models.FoodEntry
	var portion sql.NullString
	if err := sc.Scan(&e.ID, &e.UserID, &e.Name, &e.Calories, &e.Protein, &e.Carbs, &e.Fat, &portion, &e.LoggedAt); err != nil {
		return e, err
	}
	e.Portion = portion.String
	return e, nil
}

func (s *sqlStore) queryFood(ctx context.Context, op, query string, args ...any) ([]models.FoodEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		slog.Error(s.name+" "+op+" query failed", "error", err)
		return nil, fmt.Errorf("failed to query food entries: %w", err)
	}
	defer rows.Close()

	var out []models.FoodEntry
	for rows.Next() {
		e, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate food entries: %w", err)
	}
	return out, nil
}

func (s *sqlStore) ListFood(ctx context.Context, userID string, from, to time.Time) ([]models.FoodEntry, error) {
	return s.queryFood(ctx, "ListFood", `SELECT `+foodColumns+` FROM food_entries
		WHERE user_id = ? AND logged_at >= ? AND logged_at <= ? ORDER BY logged_at, seq`,
		userID, utc(from), utc(to))
}

func (s *sqlStore) AllFood(ctx context.Context, userID string) ([]models.FoodEntry, error) {
	return s.queryFood(ctx, "AllFood", `SELECT `+foodColumns+` FROM food_entries
		WHERE user_id = ? ORDER BY logged_at DESC, seq DESC`, userID)
}

func (s *sqlStore) LastFood(ctx context.Context, userID string, from, to time.Time) (*models.FoodEntry, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+foodColumns+` FROM food_entries
		WHERE user_id = ? AND logged_at >= ? AND logged_at <= ? ORDER BY logged_at DESC, seq DESC LIMIT 1`),
		userID, utc(from), utc(to))
	e, err := scanFood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error(s.name+" LastFood failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get last food entry: %w", err)
	}
	return &e, nil
}

func (s *sqlStore) AddExercise(ctx context.Context, e models.ExerciseEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO exercise_entries (id, user_id, name, calories_burned, logged_at)
		VALUES (?, ?, ?, ?, ?)`), e.ID, e.UserID, e.Name, e.CaloriesBurned, utc(e.LoggedAt))
	if err != nil {
		slog.Error(s.name+" AddExercise failed", "error", err, "userID", e.UserID)
		return fmt.Errorf("failed to insert exercise entry for %s: %w", e.UserID, err)
	}
	slog.Debug(s.name+" AddExercise succeeded", "userID", e.UserID, "id", e.ID)
	return nil
}

func (s *sqlStore) ListExercise(ctx context.Context, userID string, from, to time.Time) ([]models.ExerciseEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`SELECT id, user_id, name, calories_burned, logged_at
		FROM exercise_entries WHERE user_id = ? AND logged_at >= ? AND logged_at <= ? ORDER BY logged_at, seq`),
		userID, utc(from), utc(to))
	if err != nil {
		slog.Error(s.name+" ListExercise query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query exercise entries: %w", err)
	}
	defer rows.Close()

	var out []models.ExerciseEntry
	for rows.Next() {
		var e models.ExerciseEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.CaloriesBurned, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exercise entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exercise entries: %w", err)
	}
	return out, nil
}

func (s *sqlStore) DeleteLastExercise(ctx context.Context, userID string, from, to time.Time) (*models.ExerciseEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var e models.ExerciseEntry
	err = tx.QueryRowContext(ctx, s.bind(`SELECT id, user_id, name, calories_burned, logged_at
		FROM exercise_entries WHERE user_id = ? AND logged_at >= ? AND logged_at <= ?
		ORDER BY logged_at DESC, seq DESC LIMIT 1`), userID, utc(from), utc(to)).
		Scan(&e.ID, &e.UserID, &e.Name, &e.CaloriesBurned, &e.LoggedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error(s.name+" DeleteLastExercise select failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to find last exercise: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM exercise_entries WHERE id = ?`), e.ID); err != nil {
		slog.Error(s.name+" DeleteLastExercise delete failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to delete exercise %s: %w", e.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit exercise deletion: %w", err)
	}
	slog.Debug(s.name+" DeleteLastExercise succeeded", "userID", userID, "id", e.ID)
	return &e, nil
}

func (s *sqlStore) AddWeight(ctx context.Context, e models.WeightEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO weight_entries (id, user_id, weight, logged_at) VALUES (?, ?, ?, ?)`),
		e.ID, e.UserID, e.Weight, utc(e.LoggedAt))
	if err != nil {
		slog.Error(s.name+" AddWeight failed", "error", err, "userID", e.UserID)
		return fmt.Errorf("failed to insert weight entry for %s: %w", e.UserID, err)
	}
	return nil
}

func (s *sqlStore) RecentWeights(ctx context.Context, userID string, limit int) ([]models.WeightEntry, error) {
	query := `SELECT id, user_id, weight, logged_at FROM weight_entries WHERE user_id = ? ORDER BY logged_at DESC, seq DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		slog.Error(s.name+" RecentWeights query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query weight entries: %w", err)
	}
	defer rows.Close()

	var out []models.WeightEntry
	for rows.Next() {
		var e models.WeightEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Weight, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weight entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weight entries: %w", err)
	}
	return out, nil
}

func (s *sqlStore) AddFrequentMeal(ctx context.Context, m models.FrequentMeal) error {
	if m.ID == "" {
		return models.ErrMissingEntryID
	}
	if m.UserID == "" {
		return models.ErrEmptyUserID
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO frequent_meals
		(id, user_id, name, calories, protein, carbs, fat, portion, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.UserID, m.Name, m.Calories, m.Protein, m.Carbs, m.Fat, m.Portion, utc(m.CreatedAt))
	if err != nil {
		slog.Error(s.name+" AddFrequentMeal failed", "error", err, "userID", m.UserID)
		return fmt.Errorf("failed to insert frequent meal for %s: %w", m.UserID, err)
	}
	return nil
}

const mealColumns = `id, user_id, name, calories, protein, carbs, fat, portion, created_at`

func scanMeal(sc interface{ Scan(...any) error }) (models.FrequentMeal, error) {
	var m models.FrequentMeal
	var portion sql.NullString
	if err := sc.Scan(&m.ID, &m.UserID, &m.Name, &m.Calories, &m.Protein, &m.Carbs, &m.Fat, &portion, &m.CreatedAt); err != nil {
		return m, err
	}
	m.Portion = portion.String
	return m, nil
}

func (s *sqlStore) GetFrequentMeal(ctx context.Context, userID, id string) (*models.FrequentMeal, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+mealColumns+` FROM frequent_meals WHERE id = ? AND user_id = ?`), id, userID)
	m, err := scanMeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error(s.name+" GetFrequentMeal failed", "error", err, "userID", userID, "id", id)
		return nil, fmt.Errorf("failed to get frequent meal %s: %w", id, err)
	}
	return &m, nil
}

func (s *sqlStore) ListFrequentMeals(ctx context.Context, userID string, limit int) ([]models.FrequentMeal, error) {
	query := `SELECT ` + mealColumns + ` FROM frequent_meals WHERE user_id = ? ORDER BY created_at, seq`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		slog.Error(s.name+" ListFrequentMeals query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query frequent meals: %w", err)
	}
	defer rows.Close()

	var out []models.FrequentMeal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frequent meal: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate frequent meals: %w", err)
	}
	return out, nil
}

func (s *sqlStore) DeleteFrequentMeal(ctx context.Context, userID, id string) (*models.FrequentMeal, error) {
	m, err := s.GetFrequentMeal(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM frequent_meals WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		slog.Error(s.name+" DeleteFrequentMeal failed", "error", err, "userID", userID, "id", id)
		return nil, fmt.Errorf("failed to delete frequent meal %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *sqlStore) Close() error {
	slog.Debug(s.name + " Close invoked")
	return s.db.Close()
}

// nullString stores empty optional text columns as NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
