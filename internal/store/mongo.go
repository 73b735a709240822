// This file implements the MongoDB-backed store.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// DefaultMongoDatabase is used when the URI carries no database name.
const DefaultMongoDatabase = "calcounter"

// MongoDB collection names.
const (
	collProfiles      = "profiles"
	collFoods         = "foods"
	collExercises     = "exercises"
	collWeights       = "weights"
	collFrequentMeals = "frequent_meals"
)

// MongoStore is a Store backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and ensures the indexes exist.
func NewMongoStore(ctx context.Context, opts ...Option) (*MongoStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("MongoStore URI not set")
		return nil, fmt.Errorf("mongodb URI not set")
	}
	name := cfg.MongoDB
	if name == "" {
		name = DefaultMongoDatabase
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		slog.Error("MongoStore connect failed", "error", err)
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		slog.Error("MongoStore ping failed", "error", err)
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(name)}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	slog.Debug("MongoStore connected", "database", name)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	byUserTime := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "logged_at", Value: -1}}}
	for _, coll := range []string{collFoods, collExercises, collWeights} {
		if _, err := s.db.Collection(coll).Indexes().CreateOne(ctx, byUserTime); err != nil {
			slog.Error("MongoStore index creation failed", "error", err, "collection", coll)
			return fmt.Errorf("failed to create index on %s: %w", coll, err)
		}
	}
	byUser := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}}
	if _, err := s.db.Collection(collFrequentMeals).Indexes().CreateOne(ctx, byUser); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collFrequentMeals, err)
	}
	return nil
}

func rangeFilter(userID string, from, to time.Time) bson.M {
	return bson.M{
		"user_id":   userID,
		"logged_at": bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
}

func (s *MongoStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.Collection(collProfiles).FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("MongoStore GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	return &p, nil
}

func (s *MongoStore) EnsureProfile(ctx context.Context, userID, username, firstName string) error {
	now := time.Now().UTC()
	onInsert := bson.M{"created_at": now, "updated_at": now}
	if username != "" {
		onInsert["username"] = username
	}
	if firstName != "" {
		onInsert["first_name"] = firstName
	}
	_, err := s.db.Collection(collProfiles).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("MongoStore EnsureProfile failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to ensure profile %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) UpsertProfile(ctx context.Context, p models.Profile) error {
	if p.UserID == "" {
		return models.ErrEmptyUserID
	}
	now := time.Now().UTC()
	p.UpdatedAt = now

	raw, err := bson.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile %s: %w", p.UserID, err)
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return fmt.Errorf("failed to encode profile %s: %w", p.UserID, err)
	}
	delete(set, "_id")
	delete(set, "created_at")

	_, err = s.db.Collection(collProfiles).UpdateOne(ctx,
		bson.M{"_id": p.UserID},
		bson.M{"$set": set, "$setOnInsert": bson.M{"created_at": now}},
		options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("MongoStore UpsertProfile failed", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to upsert profile %s: %w", p.UserID, err)
	}
	slog.Debug("MongoStore UpsertProfile succeeded", "userID", p.UserID)
	return nil
}

func (s *MongoStore) UpdateWeight(ctx context.Context, userID string, weight float64) error {
	now := time.Now().UTC()
	_, err := s.db.Collection(collProfiles).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":         bson.M{"weight": weight, "updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("MongoStore UpdateWeight failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update weight for %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) insert(ctx context.Context, coll string, doc any, userID string) error {
	if _, err := s.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		slog.Error("MongoStore insert failed", "error", err, "collection", coll, "userID", userID)
		return fmt.Errorf("failed to insert into %s for %s: %w", coll, userID, err)
	}
	slog.Debug("MongoStore insert succeeded", "collection", coll, "userID", userID)
	return nil
}

// find runs a query and decodes all results into out, which must be a pointer to a slice.
func (s *MongoStore) find(ctx context.Context, coll string, filter bson.M, opts *options.FindOptions, out any) error {
	cur, err := s.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		slog.Error("MongoStore find failed", "error", err, "collection", coll)
		return fmt.Errorf("failed to query %s: %w", coll, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", coll, err)
	}
	return nil
}

func (s *MongoStore) AddFood(ctx context.Context, e models.FoodEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.LoggedAt = e.LoggedAt.UTC()
	return s.insert(ctx, collFoods, e, e.UserID)
}

func (s *MongoStore) ListFood(ctx context.Context, userID string, from, to time.Time) ([]models.FoodEntry, error) {
	var out []models.FoodEntry
	opts := options.Find().SetSort(bson.D{{Key: "logged_at", Value: 1}})
	if err := s.find(ctx, collFoods, rangeFilter(userID, from, to), opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) AllFood(ctx context.Context, userID string) ([]models.FoodEntry, error) {
	var out []models.FoodEntry
	opts := options.Find().SetSort(bson.D{{Key: "logged_at", Value: -1}})
	if err := s.find(ctx, collFoods, bson.M{"user_id": userID}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) LastFood(ctx context.Context, userID string, from, to time.Time) (*models.FoodEntry, error) {
	var e models.FoodEntry
	opts := options.FindOne().SetSort(bson.D{{Key: "logged_at", Value: -1}})
	err := s.db.Collection(collFoods).FindOne(ctx, rangeFilter(userID, from, to), opts).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("MongoStore LastFood failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get last food entry: %w", err)
	}
	return &e, nil
}

func (s *MongoStore) AddExercise(ctx context.Context, e models.ExerciseEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.LoggedAt = e.LoggedAt.UTC()
	return s.insert(ctx, collExercises, e, e.UserID)
}

func (s *MongoStore) ListExercise(ctx context.Context, userID string, from, to time.Time) ([]models.ExerciseEntry, error) {
	var out []models.ExerciseEntry
	opts := options.Find().SetSort(bson.D{{Key: "logged_at", Value: 1}})
	if err := s.find(ctx, collExercises, rangeFilter(userID, from, to), opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) DeleteLastExercise(ctx context.Context, userID string, from, to time.Time) (*models.ExerciseEntry, error) {
	var e models.ExerciseEntry
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "logged_at", Value: -1}})
	err := s.db.Collection(collExercises).FindOneAndDelete(ctx, rangeFilter(userID, from, to), opts).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("MongoStore DeleteLastExercise failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to delete last exercise: %w", err)
	}
	return &e, nil
}

func (s *MongoStore) AddWeight(ctx context.Context, e models.WeightEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.LoggedAt = e.LoggedAt.UTC()
	return s.insert(ctx, collWeights, e, e.UserID)
}

func (s *MongoStore) RecentWeights(ctx context.Context, userID string, limit int) ([]models.WeightEntry, error) {
	var out []models.WeightEntry
	opts := options.Find().SetSort(bson.D{{Key: "logged_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if err := s.find(ctx, collWeights, bson.M{"user_id": userID}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) AddFrequentMeal(ctx context.Context, m models.FrequentMeal) error {
	if m.ID == "" {
		return models.ErrMissingEntryID
	}
	if m.UserID == "" {
		return models.ErrEmptyUserID
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return s.insert(ctx, collFrequentMeals, m, m.UserID)
}

func (s *MongoStore) GetFrequentMeal(ctx context.Context, userID, id string) (*models.FrequentMeal, error) {
	var m models.FrequentMeal
	err := s.db.Collection(collFrequentMeals).FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("MongoStore GetFrequentMeal failed", "error", err, "userID", userID, "id", id)
		return nil, fmt.Errorf("failed to get frequent meal %s: %w", id, err)
	}
	return &m, nil
}

func (s *MongoStore) ListFrequentMeals(ctx context.Context, userID string, limit int) ([]models.FrequentMeal, error) {
	var out []models.FrequentMeal
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if err := s.find(ctx, collFrequentMeals, bson.M{"user_id": userID}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) DeleteFrequentMeal(ctx context.Context, userID, id string) (*models.FrequentMeal, error) {
	var m models.FrequentMeal
	err := s.db.Collection(collFrequentMeals).FindOneAndDelete(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("MongoStore DeleteFrequentMeal failed", "error", err, "userID", userID, "id", id)
		return nil, fmt.Errorf("failed to delete frequent meal %s: %w", id, err)
	}
	return &m, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
