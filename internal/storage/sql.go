package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// SQLStorage implements Storage interface on PostgreSQL or SQLite through sqlx.
// Both dialects accept the ON CONFLICT clauses used below.
type SQLStorage struct {
	db     *sqlx.DB
	tables config.TableConfig
}

// NewSQLStorage opens the database and creates the tables if needed.
// driver is "postgres" (lib/pq) or "sqlite" (modernc).
func NewSQLStorage(ctx context.Context, driver, dsn string, tables config.TableConfig) (*SQLStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s connection string is required", driver)
	}

	if driver == "sqlite" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// A single connection keeps :memory: databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}

	storage := &SQLStorage{db: db, tables: tables}
	if err := storage.ensureTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure tables exist: %w", err)
	}

	return storage, nil
}

func (s *SQLStorage) ensureTables(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			tweet_id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL,
			risk_detected TEXT NOT NULL,
			confidence_score TEXT NOT NULL,
			explanation TEXT NOT NULL
		)`, s.tables.RiskAnalysis),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT NOT NULL,
			habit_id TEXT NOT NULL,
			habit_name TEXT NOT NULL,
			replacement_habit TEXT NOT NULL,
			streak_days INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 0,
			started_on TEXT NOT NULL,
			last_completed TEXT NOT NULL,
			is_active BOOLEAN NOT NULL,
			PRIMARY KEY (user_id, habit_id)
		)`, s.tables.HabitProgress),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			username TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			hashed_pw TEXT NOT NULL,
			consent BOOLEAN NOT NULL,
			created_at TEXT NOT NULL
		)`, s.tables.Users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT NOT NULL,
			logged_at TEXT NOT NULL,
			emotion TEXT NOT NULL,
			stress DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (user_id, logged_at)
		)`, s.tables.EmotionLogs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT NOT NULL,
			day TEXT NOT NULL,
			sleep DOUBLE PRECISION NOT NULL,
			hrv DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (user_id, day)
		)`, s.tables.HealthData),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetRiskRecord retrieves the stored analysis for a post
func (s *SQLStorage) GetRiskRecord(ctx context.Context, postID string) (*models.RiskRecord, error) {
	var record models.RiskRecord
	query := s.db.Rebind(fmt.Sprintf(`SELECT tweet_id, text, created_at, risk_detected, confidence_score, explanation FROM %s WHERE tweet_id = ?`, s.tables.RiskAnalysis))
	err := s.db.GetContext(ctx, &record, query, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk record %s: %w", postID, err)
	}
	return &record, nil
}

// PutRiskRecordIfAbsent inserts the record and reports false when the id already exists
func (s *SQLStorage) PutRiskRecordIfAbsent(ctx context.Context, record models.RiskRecord) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (tweet_id, text, created_at, risk_detected, confidence_score, explanation)
		VALUES (:tweet_id, :text, :created_at, :risk_detected, :confidence_score, :explanation)
		ON CONFLICT (tweet_id) DO NOTHING`, s.tables.RiskAnalysis)

	result, err := s.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return false, fmt.Errorf("failed to store risk record %s: %w", record.PostID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// ListRiskRecords returns every stored analysis
func (s *SQLStorage) ListRiskRecords(ctx context.Context) ([]models.RiskRecord, error) {
	var records []models.RiskRecord
	query := fmt.Sprintf(`SELECT tweet_id, text, created_at, risk_detected, confidence_score, explanation FROM %s ORDER BY created_at`, s.tables.RiskAnalysis)
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to list risk records: %w", err)
	}
	return records, nil
}

// PutHabit stores a habit, replacing any previous version
func (s *SQLStorage) PutHabit(ctx context.Context, habit models.Habit) error {
	query := fmt.Sprintf(`INSERT INTO %s (user_id, habit_id, habit_name, replacement_habit, streak_days, level, started_on, last_completed, is_active)
		VALUES (:user_id, :habit_id, :habit_name, :replacement_habit, :streak_days, :level, :started_on, :last_completed, :is_active)
		ON CONFLICT (user_id, habit_id) DO UPDATE SET
			habit_name = excluded.habit_name,
			replacement_habit = excluded.replacement_habit,
			streak_days = excluded.streak_days,
			level = excluded.level,
			started_on = excluded.started_on,
			last_completed = excluded.last_completed,
			is_active = excluded.is_active`, s.tables.HabitProgress)

	if _, err := s.db.NamedExecContext(ctx, query, habit); err != nil {
		return fmt.Errorf("failed to store habit %s: %w", habit.HabitID, err)
	}
	return nil
}

const habitColumns = `user_id, habit_id, habit_name, replacement_habit, streak_days, level, started_on, last_completed, is_active`

// GetHabit retrieves one habit by its composite key
func (s *SQLStorage) GetHabit(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	var habit models.Habit
	query := s.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ? AND habit_id = ?`, habitColumns, s.tables.HabitProgress))
	err := s.db.GetContext(ctx, &habit, query, userID, habitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit %s: %w", habitID, err)
	}
	return &habit, nil
}

// ListHabits returns a user's habits, or every habit when userID is empty
func (s *SQLStorage) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	var habits []models.Habit
	var err error
	if userID == "" {
		query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY user_id, started_on`, habitColumns, s.tables.HabitProgress)
		err = s.db.SelectContext(ctx, &habits, query)
	} else {
		query := s.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ? ORDER BY started_on`, habitColumns, s.tables.HabitProgress))
		err = s.db.SelectContext(ctx, &habits, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	return habits, nil
}

// UpdateHabitProgress writes the streak fields in a single statement
func (s *SQLStorage) UpdateHabitProgress(ctx context.Context, userID, habitID string, streak, level int, lastCompleted string) error {
	query := s.db.Rebind(fmt.Sprintf(`UPDATE %s SET streak_days = ?, level = ?, last_completed = ? WHERE user_id = ? AND habit_id = ?`, s.tables.HabitProgress))
	return s.execHabitUpdate(ctx, habitID, query, streak, level, lastCompleted, userID, habitID)
}

// SetHabitLastCompleted marks a habit as completed on the given date
func (s *SQLStorage) SetHabitLastCompleted(ctx context.Context, userID, habitID, date string) error {
	query := s.db.Rebind(fmt.Sprintf(`UPDATE %s SET last_completed = ? WHERE user_id = ? AND habit_id = ?`, s.tables.HabitProgress))
	return s.execHabitUpdate(ctx, habitID, query, date, userID, habitID)
}

func (s *SQLStorage) execHabitUpdate(ctx context.Context, habitID, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update habit %s: %w", habitID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return models.ErrHabitNotFound
	}
	return nil
}

// PutUser stores a new account
func (s *SQLStorage) PutUser(ctx context.Context, user models.UserAccount) error {
	query := fmt.Sprintf(`INSERT INTO %s (username, email, hashed_pw, consent, created_at)
		VALUES (:username, :email, :hashed_pw, :consent, :created_at)`, s.tables.Users)
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to store user %s: %w", user.Username, err)
	}
	return nil
}

// FindUserByEmail returns the first account with the given email
func (s *SQLStorage) FindUserByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	var user models.UserAccount
	query := s.db.Rebind(fmt.Sprintf(`SELECT username, email, hashed_pw, consent, created_at FROM %s WHERE email = ? LIMIT 1`, s.tables.Users))
	err := s.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// PutEmotionLog stores one emotion log entry
func (s *SQLStorage) PutEmotionLog(ctx context.Context, entry models.EmotionLog) error {
	query := fmt.Sprintf(`INSERT INTO %s (user_id, logged_at, emotion, stress, message)
		VALUES (:user_id, :logged_at, :emotion, :stress, :message)`, s.tables.EmotionLogs)
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to store emotion log: %w", err)
	}
	return nil
}

// PutHealthData stores one day of health metrics, replacing that day's entry
func (s *SQLStorage) PutHealthData(ctx context.Context, data models.HealthData) error {
	query := fmt.Sprintf(`INSERT INTO %s (user_id, day, sleep, hrv)
		VALUES (:user_id, :day, :sleep, :hrv)
		ON CONFLICT (user_id, day) DO UPDATE SET sleep = excluded.sleep, hrv = excluded.hrv`, s.tables.HealthData)
	if _, err := s.db.NamedExecContext(ctx, query, data); err != nil {
		return fmt.Errorf("failed to store health data: %w", err)
	}
	return nil
}

// Close closes the database handle
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
