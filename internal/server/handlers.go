package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/chat"
	"github.com/moodmate/moodmate-backend/internal/models"
)

const defaultMaxResults = 5

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// analyzeParams parses max_results and rescore query parameters
func analyzeParams(c *gin.Context) (int, bool) {
	maxResults := defaultMaxResults
	if v := c.Query("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxResults = n
		}
	}
	rescore, _ := strconv.ParseBool(c.Query("rescore"))
	return maxResults, rescore
}

func (s *Server) handleAnalyzeTweets(c *gin.Context) {
	maxResults, rescore := analyzeParams(c)

	results, err := s.deps.Analyzer.AnalyzeAccount(c.Request.Context(), c.Param("account"), maxResults, rescore)
	if err != nil {
		s.logger.Error("Failed to analyze account", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	if len(results) == 0 {
		c.JSON(http.StatusOK, gin.H{"error": "Try again later"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleAnalyzeAll(c *gin.Context) {
	maxResults, rescore := analyzeParams(c)

	results, err := s.deps.Analyzer.AnalyzeAccount(c.Request.Context(), c.Param("account"), maxResults, rescore)
	if err != nil {
		s.logger.Error("Failed to analyze account", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"risk_analysis": results})
}

func (s *Server) handleTriggerCheck(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Alerts.Snapshot())
}

type storedAnalysis struct {
	PostID      string  `json:"tweet_id"`
	Date        string  `json:"date"`
	Text        string  `json:"text"`
	Label       string  `json:"risk_detected"`
	Confidence  string  `json:"confidence"`
	Probability float64 `json:"probability_of_risk"`
	Explanation string  `json:"explanation"`
}

func (s *Server) handleReadAnalysis(c *gin.Context) {
	records, err := s.deps.Risks.ListRiskRecords(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to read analysis", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"risk_analysis": []storedAnalysis{}, "error": err.Error()})
		return
	}

	results := make([]storedAnalysis, 0, len(records))
	for _, r := range records {
		date := r.CreatedAt
		if date == "" {
			date = "Unknown"
		}
		results = append(results, storedAnalysis{
			PostID:      r.PostID,
			Date:        date,
			Text:        r.Text,
			Label:       r.Label,
			Confidence:  r.Confidence,
			Probability: r.Probability(),
			Explanation: r.Explanation,
		})
	}

	c.JSON(http.StatusOK, gin.H{"risk_analysis": results})
}

type chatRequest struct {
	UserInput  string   `json:"user_input"`
	UserID     string   `json:"user_id"`
	Emotion    *string  `json:"emotion"`
	Stress     *float64 `json:"stress"`
	RiskyTweet bool     `json:"risky_tweet"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply := s.deps.Chat.Reply(c.Request.Context(), chat.Request{
		UserInput: req.UserInput,
		UserID:    req.UserID,
		Emotion:   req.Emotion,
		Stress:    req.Stress,
		RiskyPost: req.RiskyTweet,
	})
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

type suggestRequest struct {
	BadHabit string `json:"bad_habit" binding:"required"`
}

func (s *Server) handleSuggestReplacements(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": s.deps.Habits.SuggestReplacements(c.Request.Context(), req.BadHabit)})
}

type saveProgressRequest struct {
	UserID           string `json:"user_id" binding:"required"`
	HabitName        string `json:"habit_name" binding:"required"`
	ReplacementHabit string `json:"replacement_habit"`
	Streak           int    `json:"streak"`
	Level            int    `json:"level"`
	LastCompleted    string `json:"last_completed"`
}

func (s *Server) handleSaveProgress(c *gin.Context) {
	var req saveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	habit, err := s.deps.Habits.Save(c.Request.Context(), models.Habit{
		UserID:           req.UserID,
		Name:             req.HabitName,
		ReplacementHabit: req.ReplacementHabit,
		Streak:           req.Streak,
		Level:            req.Level,
		LastCompleted:    req.LastCompleted,
	})
	if err != nil {
		s.logger.Error("Failed to save habit", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Habit progress saved", "habit_id": habit.HabitID})
}

func (s *Server) handleGetProgress(c *gin.Context) {
	habits, err := s.deps.Habits.List(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		s.logger.Error("Failed to list habits", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"error": err.Error(), "habits": []models.Habit{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

type streakRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	HabitID string `json:"habit_id" binding:"required"`
}

func (s *Server) handleIncrementStreak(c *gin.Context) {
	var req streakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	habit, err := s.deps.Habits.IncrementStreak(c.Request.Context(), req.UserID, req.HabitID)
	if errors.Is(err, models.ErrHabitNotFound) {
		c.JSON(http.StatusOK, gin.H{"error": "Habit not found"})
		return
	}
	if err != nil {
		s.logger.Error("Failed to increment streak", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Day added, streak updated!",
		"streak":  habit.Streak,
		"level":   habit.Level,
	})
}

type healthDataRequest struct {
	UserID string  `json:"user_id" binding:"required"`
	Date   string  `json:"date" binding:"required"`
	Sleep  float64 `json:"sleep"`
	HRV    float64 `json:"hrv"`
}

func (s *Server) handleSaveHealthData(c *gin.Context) {
	var req healthDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := time.Parse(models.DateLayout, req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	err := s.deps.Health.PutHealthData(c.Request.Context(), models.HealthData{
		UserID: req.UserID,
		Date:   req.Date,
		Sleep:  req.Sleep,
		HRV:    req.HRV,
	})
	if err != nil {
		s.logger.Error("Failed to save health data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Health data saved"})
}

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Consent  bool   `json:"consent"`
}

func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.deps.Auth.Signup(c.Request.Context(), req.Email, req.Password, req.Consent)
	switch {
	case errors.Is(err, models.ErrConsentRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Consent required"})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Error("Signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Signup successful", "id": id})
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := s.deps.Auth.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, models.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case err != nil:
		s.logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"message":  "Login successful",
			"username": session.Username,
			"token":    session.Token,
		})
	}
}
