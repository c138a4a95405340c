package storage

import (
	"context"
	"fmt"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// RiskStore persists write-once risk records keyed by post id
type RiskStore interface {
	// GetRiskRecord returns nil without error when no record exists
	GetRiskRecord(ctx context.Context, postID string) (*models.RiskRecord, error)
	// PutRiskRecordIfAbsent reports false when a record for the id already exists
	PutRiskRecordIfAbsent(ctx context.Context, record models.RiskRecord) (bool, error)
	ListRiskRecords(ctx context.Context) ([]models.RiskRecord, error)
}

// HabitStore persists habit progress keyed by (user id, habit id)
type HabitStore interface {
	PutHabit(ctx context.Context, habit models.Habit) error
	// GetHabit returns nil without error when the habit does not exist
	GetHabit(ctx context.Context, userID, habitID string) (*models.Habit, error)
	// ListHabits returns every habit when userID is empty
	ListHabits(ctx context.Context, userID string) ([]models.Habit, error)
	// UpdateHabitProgress writes streak, level and last-completed as one conditional
	// update and returns models.ErrHabitNotFound when the habit is missing
	UpdateHabitProgress(ctx context.Context, userID, habitID string, streak, level int, lastCompleted string) error
	SetHabitLastCompleted(ctx context.Context, userID, habitID, date string) error
}

// UserStore persists user accounts
type UserStore interface {
	PutUser(ctx context.Context, user models.UserAccount) error
	// FindUserByEmail scans accounts and returns nil without error on no match
	FindUserByEmail(ctx context.Context, email string) (*models.UserAccount, error)
}

// JournalStore persists emotion logs and health data
type JournalStore interface {
	PutEmotionLog(ctx context.Context, entry models.EmotionLog) error
	PutHealthData(ctx context.Context, data models.HealthData) error
}

// Storage interface defines the contract for data storage
type Storage interface {
	RiskStore
	HabitStore
	UserStore
	JournalStore
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "dynamodb":
		return NewDynamoDBStorage(ctx, cfg)
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg)
	case "postgresql":
		return NewSQLStorage(ctx, "postgres", cfg.PostgresURI, cfg.Tables)
	case "sqlite":
		return NewSQLStorage(ctx, "sqlite", cfg.SQLitePath, cfg.Tables)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
