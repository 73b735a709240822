// Package store provides storage backends for CalCounter.
//
// It includes an in-memory store and persistent SQLite, PostgreSQL and MongoDB
// backends for profiles, diary entries and frequent meals.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DSN types recognised by DetectDSNType.
const (
	DSNTypeSQLite   = "sqlite3"
	DSNTypePostgres = "postgres"
	DSNTypeMongo    = "mongodb"
)

// Store is the persistence contract used by the bot. Time ranges are inclusive.
// Diary listings are ordered oldest first; "last" and "recent" queries newest first.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	// EnsureProfile creates an empty profile when none exists.
	EnsureProfile(ctx context.Context, userID, username, firstName string) error
	// UpsertProfile creates or overwrites the profile. CreatedAt is kept for existing rows.
	UpsertProfile(ctx context.Context, p models.Profile) error
	// UpdateWeight sets the profile weight, creating the profile if needed.
	UpdateWeight(ctx context.Context, userID string, weight float64) error

	AddFood(ctx context.Context, e models.FoodEntry) error
	ListFood(ctx context.Context, userID string, from, to time.Time) ([]models.FoodEntry, error)
	// AllFood returns every food entry of the user, newest first.
	AllFood(ctx context.Context, userID string) ([]models.FoodEntry, error)
	LastFood(ctx context.Context, userID string, from, to time.Time) (*models.FoodEntry, error)

	AddExercise(ctx context.Context, e models.ExerciseEntry) error
	ListExercise(ctx context.Context, userID string, from, to time.Time) ([]models.ExerciseEntry, error)
	// DeleteLastExercise removes and returns the most recent exercise in the range.
	DeleteLastExercise(ctx context.Context, userID string, from, to time.Time) (*models.ExerciseEntry, error)

	AddWeight(ctx context.Context, e models.WeightEntry) error
	RecentWeights(ctx context.Context, userID string, limit int) ([]models.WeightEntry, error)

	AddFrequentMeal(ctx context.Context, m models.FrequentMeal) error
	GetFrequentMeal(ctx context.Context, userID, id string) (*models.FrequentMeal, error)
	// ListFrequentMeals returns meals oldest first. A limit <= 0 returns all of them.
	ListFrequentMeals(ctx context.Context, userID string, limit int) ([]models.FrequentMeal, error)
	DeleteFrequentMeal(ctx context.Context, userID, id string) (*models.FrequentMeal, error)

	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN     string // database connection string (file path for SQLite)
	MongoDB string // database name for MongoDB
	Driver  string // detected or explicit driver
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = DSNTypeSQLite
	}
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = DSNTypePostgres
	}
}

// WithMongoURI configures a MongoDB connection URI.
func WithMongoURI(uri string) Option {
	return func(o *Opts) {
		o.DSN = uri
		o.Driver = DSNTypeMongo
	}
}

// WithMongoDatabase sets the MongoDB database name.
func WithMongoDatabase(name string) Option {
	return func(o *Opts) {
		o.MongoDB = name
	}
}

// DetectDSNType returns the driver for a connection string. Anything that is
// neither a PostgreSQL nor a MongoDB DSN is treated as a SQLite path.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DSNTypePostgres
	case strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return DSNTypePostgres
	case strings.HasPrefix(lower, "mongodb://"), strings.HasPrefix(lower, "mongodb+srv://"):
		return DSNTypeMongo
	default:
		return DSNTypeSQLite
	}
}

// Open creates the store selected by the options.
func Open(ctx context.Context, opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDSNType(cfg.DSN)
	}
	switch driver {
	case DSNTypePostgres:
		return NewPostgresStore(opts...)
	case DSNTypeMongo:
		return NewMongoStore(ctx, opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}
