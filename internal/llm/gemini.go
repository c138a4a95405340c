package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// GeminiGenerator wraps the Gemini API client
type GeminiGenerator struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiGenerator creates a Gemini-backed generator
func NewGeminiGenerator(cfg config.LLMConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	modelName := cfg.Model
	if modelName == "" || strings.HasPrefix(modelName, "gpt") {
		modelName = "gemini-1.5-flash"
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	if cfg.MaxOutputTokens > 0 {
		model.GenerationConfig = genai.GenerationConfig{
			MaxOutputTokens: genai.Ptr[int32](int32(cfg.MaxOutputTokens)),
		}
	}

	logger.Info("Gemini generator initialized", zap.String("model", modelName))

	return &GeminiGenerator{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Generate sends the prompt and concatenates the text parts of the first candidate
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.logger.Error("Gemini API error", zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty response from gemini", models.ErrMalformedModelResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("%w: no text parts from gemini", models.ErrMalformedModelResponse)
	}
	return out, nil
}

// Close closes the Gemini client
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
