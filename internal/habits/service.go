package habits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/models"
)

// A habit levels up every levelEvery consecutive days
const levelEvery = 5

const suggestionTemplate = "Suggest 3 healthy replacement habits for the bad habit: %q.\n" +
	"Make each suggestion concise (max 5 words) and list them as bullet points."

// DefaultSuggestions are returned when the model cannot be reached
var DefaultSuggestions = []string{"Take a short walk", "Drink water", "Stretch mindfully"}

// Store persists habits
type Store interface {
	PutHabit(ctx context.Context, habit models.Habit) error
	GetHabit(ctx context.Context, userID, habitID string) (*models.Habit, error)
	ListHabits(ctx context.Context, userID string) ([]models.Habit, error)
	UpdateHabitProgress(ctx context.Context, userID, habitID string, streak, level int, lastCompleted string) error
	SetHabitLastCompleted(ctx context.Context, userID, habitID, date string) error
}

// Generator produces model text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service tracks habit-replacement streaks
type Service struct {
	store  Store
	llm    Generator
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a habit service. A nil clock uses time.Now; dates are UTC.
func NewService(store Store, llm Generator, clock func() time.Time, logger *zap.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, llm: llm, now: clock, logger: logger}
}

func (s *Service) today() string {
	return s.now().UTC().Format(models.DateLayout)
}

// Save stores a new habit under a generated id. Streak, level and last-completed
// come from the caller; the habit starts today and is active.
func (s *Service) Save(ctx context.Context, habit models.Habit) (models.Habit, error) {
	habit.HabitID = uuid.NewString()
	habit.StartedOn = s.today()
	habit.IsActive = true

	if err := s.store.PutHabit(ctx, habit); err != nil {
		return models.Habit{}, fmt.Errorf("failed to save habit: %w", err)
	}

	s.logger.Info("Habit saved", zap.String("user_id", habit.UserID), zap.String("habit_id", habit.HabitID))
	return habit, nil
}

// List returns a user's habits, or every habit when userID is empty
func (s *Service) List(ctx context.Context, userID string) ([]models.Habit, error) {
	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	if habits == nil {
		habits = []models.Habit{}
	}
	return habits, nil
}

// IncrementStreak adds a completed day and levels up on every fifth day
func (s *Service) IncrementStreak(ctx context.Context, userID, habitID string) (models.Habit, error) {
	habit, err := s.store.GetHabit(ctx, userID, habitID)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to load habit: %w", err)
	}
	if habit == nil {
		return models.Habit{}, models.ErrHabitNotFound
	}

	habit.Streak++
	if habit.Streak%levelEvery == 0 {
		habit.Level++
	}
	habit.LastCompleted = s.today()

	if err := s.store.UpdateHabitProgress(ctx, userID, habitID, habit.Streak, habit.Level, habit.LastCompleted); err != nil {
		return models.Habit{}, err
	}
	return *habit, nil
}

// ListPending returns the user's active habits not completed today. It never writes.
func (s *Service) ListPending(ctx context.Context, userID string) ([]models.Habit, error) {
	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	var pending []models.Habit
	for _, h := range habits {
		if h.IsActive && h.LastCompleted != today {
			pending = append(pending, h)
		}
	}
	return pending, nil
}

// MarkReminded records today as the last-completed date of each habit
func (s *Service) MarkReminded(ctx context.Context, userID string, habits []models.Habit) error {
	today := s.today()
	var errs []error
	for _, h := range habits {
		if err := s.store.SetHabitLastCompleted(ctx, userID, h.HabitID, today); err != nil {
			errs = append(errs, fmt.Errorf("habit %s: %w", h.HabitID, err))
		}
	}
	return errors.Join(errs...)
}

// SuggestReplacements asks the model for up to three healthier habits
func (s *Service) SuggestReplacements(ctx context.Context, badHabit string) []string {
	reply, err := s.llm.Generate(ctx, fmt.Sprintf(suggestionTemplate, badHabit))
	if err != nil {
		s.logger.Warn("Suggestion generation failed", zap.Error(err))
		return append([]string(nil), DefaultSuggestions...)
	}
	return parseSuggestions(reply)
}

func parseSuggestions(reply string) []string {
	suggestions := []string{}
	for _, line := range strings.Split(reply, "\n") {
		item := strings.TrimSpace(strings.Trim(line, "-•* "))
		if item == "" {
			continue
		}
		suggestions = append(suggestions, item)
		if len(suggestions) == 3 {
			break
		}
	}
	return suggestions
}
