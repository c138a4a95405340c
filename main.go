package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/auth"
	"github.com/moodmate/moodmate-backend/internal/cache"
	"github.com/moodmate/moodmate-backend/internal/chat"
	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/habits"
	"github.com/moodmate/moodmate-backend/internal/llm"
	"github.com/moodmate/moodmate-backend/internal/logging"
	"github.com/moodmate/moodmate-backend/internal/monitor"
	"github.com/moodmate/moodmate-backend/internal/notify"
	"github.com/moodmate/moodmate-backend/internal/risk"
	"github.com/moodmate/moodmate-backend/internal/scheduler"
	"github.com/moodmate/moodmate-backend/internal/server"
	"github.com/moodmate/moodmate-backend/internal/social"
	"github.com/moodmate/moodmate-backend/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// The cache is optional; leave the interface nil when disabled
	var riskCache risk.Cache
	if cfg.Cache.Addr != "" {
		rc := cache.NewRiskCache(cfg.Cache)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable, reads will fall through to storage", zap.Error(err))
		}
		defer rc.Close()
		riskCache = rc
	}

	generator, err := llm.New(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to initialize text generator", zap.Error(err))
	}
	defer generator.Close()

	socialClient := social.NewClient(cfg.Social)
	scorer := risk.NewScorer(store, riskCache, generator, logger)

	var notifier monitor.Notifier
	if len(cfg.Notify.KafkaBrokers) > 0 {
		publisher := notify.NewPublisher(cfg.Notify, logger)
		defer publisher.Close()
		notifier = publisher
	}

	board := monitor.NewAlertBoard()
	analyzer := monitor.NewAnalyzer(socialClient, scorer)
	poller := monitor.NewPoller(cfg.Monitor, monitor.PollerDeps{
		Source:   socialClient,
		Scorer:   scorer,
		Support:  monitor.NewSupportWriter(generator, logger),
		Board:    board,
		Notifier: notifier,
		Logger:   logger,
	})

	habitService := habits.NewService(store, generator, nil, logger)
	authService := auth.NewService(store, auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), logger)
	chatService := chat.NewService(store, habitService, chat.NewRAGClient(cfg.Chat.RAGEndpoint, cfg.Chat.Timeout), logger)

	// Initialize HTTP server for API endpoints
	httpServer := server.NewServer(cfg.Server, server.Deps{
		Analyzer: analyzer,
		Alerts:   board,
		Risks:    store,
		Health:   store,
		Chat:     chatService,
		Habits:   habitService,
		Auth:     authService,
	}, logger)

	sched := scheduler.New(logger)
	if cfg.Monitor.Enabled {
		// First cycle runs at startup, then on the fixed interval
		go sched.RunNow("risk_poll", poller.Poll)
		if _, err := sched.Every("risk_poll", cfg.Monitor.Interval, poller.Poll); err != nil {
			logger.Fatal("Failed to schedule risk poll", zap.Error(err))
		}
		sched.Start()
		logger.Info("Risk monitor started",
			zap.String("account", cfg.Monitor.Account),
			zap.Duration("interval", cfg.Monitor.Interval))
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown error", zap.Error(err))
	}

	cancel()
	logger.Info("Shutdown complete")
}
