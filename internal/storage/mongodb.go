package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// MongoDBStorage implements Storage interface using MongoDB collections
type MongoDBStorage struct {
	client   *mongo.Client
	risks    *mongo.Collection
	habits   *mongo.Collection
	users    *mongo.Collection
	emotions *mongo.Collection
	health   *mongo.Collection
}

// NewMongoDBStorage connects to MongoDB and ensures the unique indexes exist
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	if cfg.MongoDBURI == "" {
		return nil, errors.New("mongodb uri is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoDBURI).SetRetryWrites(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	storage := &MongoDBStorage{
		client:   client,
		risks:    db.Collection(cfg.Tables.RiskAnalysis),
		habits:   db.Collection(cfg.Tables.HabitProgress),
		users:    db.Collection(cfg.Tables.Users),
		emotions: db.Collection(cfg.Tables.EmotionLogs),
		health:   db.Collection(cfg.Tables.HealthData),
	}

	if err := storage.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	return storage, nil
}

// ensureIndexes mirrors the DynamoDB key schemas as unique indexes
func (m *MongoDBStorage) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{m.risks, bson.D{{Key: "tweet_id", Value: 1}}},
		{m.habits, bson.D{{Key: "user_id", Value: 1}, {Key: "habit_id", Value: 1}}},
		{m.users, bson.D{{Key: "username", Value: 1}}},
		{m.emotions, bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{m.health, bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}},
	}

	for _, idx := range indexes {
		_, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    idx.keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// GetRiskRecord retrieves the stored analysis for a post
func (m *MongoDBStorage) GetRiskRecord(ctx context.Context, postID string) (*models.RiskRecord, error) {
	var record models.RiskRecord
	err := m.risks.FindOne(ctx, bson.M{"tweet_id": postID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk record %s: %w", postID, err)
	}
	return &record, nil
}

// PutRiskRecordIfAbsent inserts the record only when no document matches the post id
func (m *MongoDBStorage) PutRiskRecordIfAbsent(ctx context.Context, record models.RiskRecord) (bool, error) {
	result, err := m.risks.UpdateOne(ctx,
		bson.M{"tweet_id": record.PostID},
		bson.M{"$setOnInsert": record},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store risk record %s: %w", record.PostID, err)
	}
	return result.UpsertedCount == 1, nil
}

// ListRiskRecords returns every stored analysis
func (m *MongoDBStorage) ListRiskRecords(ctx context.Context) ([]models.RiskRecord, error) {
	var records []models.RiskRecord
	if err := m.findAll(ctx, m.risks, bson.M{}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// PutHabit stores a habit, replacing any previous version
func (m *MongoDBStorage) PutHabit(ctx context.Context, habit models.Habit) error {
	_, err := m.habits.ReplaceOne(ctx,
		bson.M{"user_id": habit.UserID, "habit_id": habit.HabitID},
		habit,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store habit %s: %w", habit.HabitID, err)
	}
	return nil
}

// GetHabit retrieves one habit by its composite key
func (m *MongoDBStorage) GetHabit(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	var habit models.Habit
	err := m.habits.FindOne(ctx, bson.M{"user_id": userID, "habit_id": habitID}).Decode(&habit)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit %s: %w", habitID, err)
	}
	return &habit, nil
}

// ListHabits returns a user's habits, or every habit when userID is empty
func (m *MongoDBStorage) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}

	var habits []models.Habit
	if err := m.findAll(ctx, m.habits, filter, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// UpdateHabitProgress writes the streak fields in a single update
func (m *MongoDBStorage) UpdateHabitProgress(ctx context.Context, userID, habitID string, streak, level int, lastCompleted string) error {
	return m.updateHabit(ctx, userID, habitID, bson.M{
		"streak_days":    streak,
		"level":          level,
		"last_completed": lastCompleted,
	})
}

// SetHabitLastCompleted marks a habit as completed on the given date
func (m *MongoDBStorage) SetHabitLastCompleted(ctx context.Context, userID, habitID, date string) error {
	return m.updateHabit(ctx, userID, habitID, bson.M{"last_completed": date})
}

func (m *MongoDBStorage) updateHabit(ctx context.Context, userID, habitID string, fields bson.M) error {
	result, err := m.habits.UpdateOne(ctx,
		bson.M{"user_id": userID, "habit_id": habitID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return fmt.Errorf("failed to update habit %s: %w", habitID, err)
	}
	if result.MatchedCount == 0 {
		return models.ErrHabitNotFound
	}
	return nil
}

// PutUser stores a new account
func (m *MongoDBStorage) PutUser(ctx context.Context, user models.UserAccount) error {
	if _, err := m.users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to store user %s: %w", user.Username, err)
	}
	return nil
}

// FindUserByEmail returns the first account with the given email
func (m *MongoDBStorage) FindUserByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	var user models.UserAccount
	err := m.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// PutEmotionLog stores one emotion log entry
func (m *MongoDBStorage) PutEmotionLog(ctx context.Context, entry models.EmotionLog) error {
	if _, err := m.emotions.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to store emotion log: %w", err)
	}
	return nil
}

// PutHealthData stores one day of health metrics, replacing that day's entry
func (m *MongoDBStorage) PutHealthData(ctx context.Context, data models.HealthData) error {
	_, err := m.health.ReplaceOne(ctx,
		bson.M{"user_id": data.UserID, "date": data.Date},
		data,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store health data: %w", err)
	}
	return nil
}

func (m *MongoDBStorage) findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return nil
}

// Close disconnects from MongoDB
func (m *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
