package models

import (
	"strconv"
	"time"
)

const (
	// Sentinel values stored when the model omits a field
	LabelUnknown           = "Unknown"
	ConfidenceUnknown      = "Unknown"
	ExplanationNotProvided = "Not provided"

	// DateLayout is the calendar-day format used for habit and health dates
	DateLayout = "2006-01-02"
)

// Post represents a post fetched from the social-media API
type Post struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// CreatedTime parses the API creation timestamp
func (p Post) CreatedTime() (time.Time, error) {
	return time.Parse(time.RFC3339, p.CreatedAt)
}

// RiskRecord is the persisted outcome of scoring one post. Records are written once.
type RiskRecord struct {
	PostID      string `json:"tweet_id" dynamodbav:"tweet_id" bson:"tweet_id" db:"tweet_id"`
	Text        string `json:"text" dynamodbav:"text" bson:"text" db:"text"`
	CreatedAt   string `json:"created_at" dynamodbav:"created_at" bson:"created_at" db:"created_at"`
	Label       string `json:"risk_detected" dynamodbav:"risk_detected" bson:"risk_detected" db:"risk_detected"`
	Confidence  string `json:"confidence_score" dynamodbav:"confidence_score" bson:"confidence_score" db:"confidence_score"`
	Explanation string `json:"explanation" dynamodbav:"explanation" bson:"explanation" db:"explanation"`
}

// Probability parses the stored confidence, yielding 0.0 when it is not numeric
func (r RiskRecord) Probability() float64 {
	return ParseProbability(r.Confidence)
}

// Assessment returns the scorer output for a stored record
func (r RiskRecord) Assessment() Assessment {
	return Assessment{
		Text:         r.Text,
		RiskDetected: r.Label,
		CreatedAt:    r.CreatedAt,
		Confidence:   r.Confidence,
		Probability:  r.Probability(),
		Explanation:  r.Explanation,
	}
}

// ParseProbability converts a confidence string to a float, 0.0 on any parse error
func ParseProbability(confidence string) float64 {
	p, err := strconv.ParseFloat(confidence, 64)
	if err != nil {
		return 0.0
	}
	return p
}

// Assessment is the result of scoring a piece of text
type Assessment struct {
	Text         string  `json:"text"`
	RiskDetected string  `json:"risk_detected"`
	CreatedAt    string  `json:"created_at,omitempty"`
	Confidence   string  `json:"confidence"`
	Probability  float64 `json:"probability_of_risk"`
	Explanation  string  `json:"explanation,omitempty"`
}

// Degraded reports whether the assessment is the fallback produced on failure
func (a Assessment) Degraded() bool {
	return a.RiskDetected == LabelUnknown && a.Confidence == ConfidenceUnknown && a.Explanation == ""
}

// AnalyzedPost pairs a fetched post with its assessment
type AnalyzedPost struct {
	PostID string `json:"tweet_id"`
	Date   string `json:"date"`
	Assessment
}

// AlertState is the snapshot published by the most recent poll cycle
type AlertState struct {
	Active         bool       `json:"show_popup"`
	SupportMessage *string    `json:"support_message"`
	LastChecked    *time.Time `json:"last_checked"`
	FlaggedText    *string    `json:"risky_tweet_text"`
}

// AlertEvent is published when a poll cycle raises an alert
type AlertEvent struct {
	Account        string    `json:"account"`
	PostText       string    `json:"post_text"`
	SupportMessage string    `json:"support_message"`
	Probability    float64   `json:"probability_of_risk"`
	DetectedAt     time.Time `json:"detected_at"`
}

// Habit tracks a user's habit-replacement progress
type Habit struct {
	UserID           string `json:"user_id" dynamodbav:"user_id" bson:"user_id" db:"user_id"`
	HabitID          string `json:"habit_id" dynamodbav:"habit_id" bson:"habit_id" db:"habit_id"`
	Name             string `json:"habit_name" dynamodbav:"habit_name" bson:"habit_name" db:"habit_name"`
	ReplacementHabit string `json:"replacement_habit" dynamodbav:"replacement_habit" bson:"replacement_habit" db:"replacement_habit"`
	Streak           int    `json:"streak_days" dynamodbav:"streak_days" bson:"streak_days" db:"streak_days"`
	Level            int    `json:"level" dynamodbav:"level" bson:"level" db:"level"`
	StartedOn        string `json:"started_on" dynamodbav:"started_on" bson:"started_on" db:"started_on"`
	LastCompleted    string `json:"last_completed" dynamodbav:"last_completed" bson:"last_completed" db:"last_completed"`
	IsActive         bool   `json:"is_active" dynamodbav:"is_active" bson:"is_active" db:"is_active"`
}

// UserAccount holds signup credentials. Username is a generated UUID.
type UserAccount struct {
	Username     string `json:"username" dynamodbav:"username" bson:"username" db:"username"`
	Email        string `json:"email" dynamodbav:"email" bson:"email" db:"email"`
	PasswordHash string `json:"-" dynamodbav:"hashed_pw" bson:"hashed_pw" db:"hashed_pw"`
	Consent      bool   `json:"consent" dynamodbav:"consent" bson:"consent" db:"consent"`
	CreatedAt    string `json:"created_at" dynamodbav:"created_at" bson:"created_at" db:"created_at"`
}

// EmotionLog records the emotional context attached to a chat message
type EmotionLog struct {
	UserID    string  `json:"user_id" dynamodbav:"user_id" bson:"user_id" db:"user_id"`
	Timestamp string  `json:"timestamp" dynamodbav:"timestamp" bson:"timestamp" db:"logged_at"`
	Emotion   string  `json:"emotion" dynamodbav:"emotion" bson:"emotion" db:"emotion"`
	Stress    float64 `json:"stress" dynamodbav:"stress" bson:"stress" db:"stress"`
	Message   string  `json:"message" dynamodbav:"message" bson:"message" db:"message"`
}

// HealthData is one day of wearable metrics for a user
type HealthData struct {
	UserID string  `json:"user_id" dynamodbav:"user_id" bson:"user_id" db:"user_id"`
	Date   string  `json:"date" dynamodbav:"date" bson:"date" db:"day"`
	Sleep  float64 `json:"sleep" dynamodbav:"sleep" bson:"sleep" db:"sleep"`
	HRV    float64 `json:"hrv" dynamodbav:"hrv" bson:"hrv" db:"hrv"`
}
