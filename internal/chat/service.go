package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/models"
)

const (
	defaultUserID  = "demo_user"
	defaultEmotion = "unknown"
	defaultStress  = 0.5
	highStress     = 0.7
)

const basePrompt = `You are Lumi, a compassionate mental health support assistant. You help users who are feeling stressed, anxious, or overwhelmed.
You are not a medical professional and never offer clinical advice or diagnosis.
Always encourage users to reach out to licensed therapists or mental health hotlines if they are in crisis.
Keep your responses warm, empathetic, and supportive. Keep the responses concise and to the point preferably not more than 2 sentences.`

const (
	riskyPostContext = "The user may be at mental health risk based on their recent social media post. " +
		"Respond with high empathy, but don't be robotic. You may include a grounding exercise, gentle humor, or supportive encouragement if appropriate. " +
		"Feel free to share one actionable tip (like deep breathing, journaling, or a distraction strategy). " +
		"You can nudge them to talk to a mental health professional, but prioritize making them feel safe and understood.\n"
	highStressContext = "The user seems highly stressed. Speak gently and offer helpful suggestions like relaxation techniques or supportive thoughts.\n"
	emotionContext    = "The user feels %s. Be affirming and avoid advice overload.\n"
)

// Replies used when the answer service cannot produce one
const (
	FallbackUnavailable = "I'm having trouble reaching the support system right now, but I'm still here for you. Want to try a simple breathing exercise together?"
	FallbackError       = "Something went wrong on my side. You're not alone, I'm still right here. Let's take it slow. Want a grounding tip?"
)

var affirmingEmotions = map[string]bool{"sad": true, "angry": true, "fearful": true}

// Request is one chat turn
type Request struct {
	UserInput string
	UserID    string
	Emotion   *string
	Stress    *float64
	RiskyPost bool
}

// JournalStore records emotion logs
type JournalStore interface {
	PutEmotionLog(ctx context.Context, entry models.EmotionLog) error
}

// HabitReminder finds and marks habits the user has not completed today
type HabitReminder interface {
	ListPending(ctx context.Context, userID string) ([]models.Habit, error)
	MarkReminded(ctx context.Context, userID string, habits []models.Habit) error
}

// Responder answers a prompt
type Responder interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Service produces chatbot replies
type Service struct {
	journal   JournalStore
	habits    HabitReminder
	responder Responder
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a chat service
func NewService(journal JournalStore, habits HabitReminder, responder Responder, logger *zap.Logger) *Service {
	return &Service{
		journal:   journal,
		habits:    habits,
		responder: responder,
		now:       time.Now,
		logger:    logger,
	}
}

// Reply answers one chat turn. It never fails; upstream problems produce a fixed reply.
func (s *Service) Reply(ctx context.Context, req Request) string {
	req.UserInput = strings.TrimSpace(req.UserInput)
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	log := s.logger.With(zap.String("user_id", req.UserID))

	s.logEmotion(ctx, req, log)

	if !req.RiskyPost {
		if reminder, ok := s.habitReminder(ctx, req.UserID, log); ok {
			return reminder
		}
	}

	reply, err := s.responder.Ask(ctx, buildPrompt(req))
	if err != nil {
		log.Error("Chat answer failed", zap.Error(err))
		if errors.Is(err, errBadStatus) {
			return FallbackUnavailable
		}
		return FallbackError
	}
	return reply
}

func (s *Service) logEmotion(ctx context.Context, req Request, log *zap.Logger) {
	if req.Emotion == nil && req.Stress == nil {
		return
	}

	entry := models.EmotionLog{
		UserID:    req.UserID,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Emotion:   defaultEmotion,
		Stress:    defaultStress,
		Message:   req.UserInput,
	}
	if req.Emotion != nil && *req.Emotion != "" {
		entry.Emotion = *req.Emotion
	}
	if req.Stress != nil {
		entry.Stress = *req.Stress
	}

	if err := s.journal.PutEmotionLog(ctx, entry); err != nil {
		log.Warn("Failed to store emotion log", zap.Error(err))
	}
}

// habitReminder lists pending habits and marks them reminded; it only reports a
// reminder when both steps succeed
func (s *Service) habitReminder(ctx context.Context, userID string, log *zap.Logger) (string, bool) {
	pending, err := s.habits.ListPending(ctx, userID)
	if err != nil {
		log.Warn("Failed to list pending habits", zap.Error(err))
		return "", false
	}
	if len(pending) == 0 {
		return "", false
	}

	if err := s.habits.MarkReminded(ctx, userID, pending); err != nil {
		log.Warn("Failed to mark habits reminded", zap.Error(err))
		return "", false
	}

	names := make([]string, 0, len(pending))
	for _, h := range pending {
		names = append(names, h.Name)
	}
	return fmt.Sprintf("Just a gentle reminder, don't forget your healthy habits today: %s. You're doing great, keep going!",
		strings.Join(names, ", ")), true
}

func buildPrompt(req Request) string {
	var tone string
	switch {
	case req.RiskyPost:
		tone = riskyPostContext
	case req.Stress != nil && *req.Stress > highStress:
		tone = highStressContext
	case req.Emotion != nil && affirmingEmotions[*req.Emotion]:
		tone = fmt.Sprintf(emotionContext, *req.Emotion)
	}
	return basePrompt + "\n\n" + tone + "User: " + req.UserInput
}
