package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// OpenAIGenerator calls the Responses API of OpenAI or a compatible endpoint
type OpenAIGenerator struct {
	client          *openai.Client
	model           string
	maxOutputTokens int64
	timeout         time.Duration
	logger          *zap.Logger
}

// NewOpenAIGenerator creates an OpenAI-backed generator
func NewOpenAIGenerator(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	logger.Info("OpenAI generator initialized", zap.String("model", cfg.Model))

	return &OpenAIGenerator{
		client:          &client,
		model:           cfg.Model,
		maxOutputTokens: int64(cfg.MaxOutputTokens),
		timeout:         cfg.Timeout,
		logger:          logger,
	}, nil
}

// Generate sends a single-turn prompt and returns the output text
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	params := responses.ResponseNewParams{
		Model: g.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	if g.maxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(g.maxOutputTokens)
	}

	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		g.logger.Error("OpenAI request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("%w: empty output", models.ErrMalformedModelResponse)
	}
	return text, nil
}

// Close is a no-op; the HTTP client needs no teardown
func (g *OpenAIGenerator) Close() error {
	return nil
}
