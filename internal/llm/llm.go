package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/config"
)

// Generator turns a prompt into model text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// New creates the generator for the configured provider
func New(cfg config.LLMConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIGenerator(cfg, logger)
	case "gemini":
		return NewGeminiGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
