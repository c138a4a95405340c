package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/auth"
	"github.com/moodmate/moodmate-backend/internal/chat"
	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// Analyzer scores an account's recent posts on demand
type Analyzer interface {
	AnalyzeAccount(ctx context.Context, account string, maxResults int, rescore bool) ([]models.AnalyzedPost, error)
}

// AlertReader exposes the current alert snapshot
type AlertReader interface {
	Snapshot() models.AlertState
}

// RiskLister lists every stored risk record
type RiskLister interface {
	ListRiskRecords(ctx context.Context) ([]models.RiskRecord, error)
}

// HealthRecorder stores wearable metrics
type HealthRecorder interface {
	PutHealthData(ctx context.Context, data models.HealthData) error
}

// ChatResponder answers chat turns
type ChatResponder interface {
	Reply(ctx context.Context, req chat.Request) string
}

// HabitTracker manages habit progress
type HabitTracker interface {
	Save(ctx context.Context, habit models.Habit) (models.Habit, error)
	List(ctx context.Context, userID string) ([]models.Habit, error)
	IncrementStreak(ctx context.Context, userID, habitID string) (models.Habit, error)
	SuggestReplacements(ctx context.Context, badHabit string) []string
}

// Authenticator handles signup and login
type Authenticator interface {
	Signup(ctx context.Context, email, password string, consent bool) (string, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// Deps are the services behind the HTTP routes
type Deps struct {
	Analyzer Analyzer
	Alerts   AlertReader
	Risks    RiskLister
	Health   HealthRecorder
	Chat     ChatResponder
	Habits   HabitTracker
	Auth     Authenticator
}

// Server handles HTTP requests
type Server struct {
	config config.ServerConfig
	deps   Deps
	router *gin.Engine
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.AllowedOrigins))

	s := &Server{
		config: cfg,
		deps:   deps,
		router: router,
		logger: logger,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Chat requests may wait on the answer service for up to a minute
		WriteTimeout: 90 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/ping", s.handlePing)

	r.GET("/analyze_tweets/:account", s.handleAnalyzeTweets)
	r.GET("/analyze_all/:account", s.handleAnalyzeAll)
	r.GET("/api/trigger_check", s.handleTriggerCheck)
	r.GET("/api/read_analysis", s.handleReadAnalysis)

	r.POST("/chat", s.handleChat)
	r.POST("/suggest_replacements", s.handleSuggestReplacements)

	habits := r.Group("/habitflow")
	{
		habits.POST("/save-progress", s.handleSaveProgress)
		habits.GET("/get-progress", s.handleGetProgress)
		habits.POST("/increment-streak", s.handleIncrementStreak)
	}

	r.POST("/save-health-data", s.handleSaveHealthData)

	r.POST("/signup", s.handleSignup)
	r.POST("/login", s.handleLogin)
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Server starting", zap.String("address", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// cors allows the configured browser origins, or any origin when "*" is listed
func cors(allowed []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (origins[origin] || origins["*"]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
