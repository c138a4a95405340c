package risk

import (
	"context"

	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/models"
)

const unknownID = "unknown_id"

// Store is the write-once record store the scorer reads through
type Store interface {
	GetRiskRecord(ctx context.Context, postID string) (*models.RiskRecord, error)
	PutRiskRecordIfAbsent(ctx context.Context, record models.RiskRecord) (bool, error)
}

// Cache is an optional fast layer in front of Store. Errors are treated as misses.
type Cache interface {
	Get(ctx context.Context, postID string) (*models.RiskRecord, error)
	Set(ctx context.Context, record models.RiskRecord) error
}

// Generator produces model text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Scorer assesses text for psychological risk, memoized by post id
type Scorer struct {
	store  Store
	cache  Cache
	llm    Generator
	logger *zap.Logger
}

// NewScorer creates a scorer. cache may be nil.
func NewScorer(store Store, cache Cache, llm Generator, logger *zap.Logger) *Scorer {
	return &Scorer{
		store:  store,
		cache:  cache,
		llm:    llm,
		logger: logger,
	}
}

// Score returns the stored assessment for postID if one exists, ignoring text and
// createdAt; otherwise it asks the model and stores the result. Failures yield a
// degraded assessment rather than an error.
func (s *Scorer) Score(ctx context.Context, postID, text, createdAt string) models.Assessment {
	if postID == "" {
		postID = unknownID
	}
	log := s.logger.With(zap.String("post_id", postID))

	if record := s.cached(ctx, postID, log); record != nil {
		return record.Assessment()
	}

	record, err := s.store.GetRiskRecord(ctx, postID)
	if err != nil {
		log.Error("Failed to read risk record", zap.Error(err))
		return degraded(text)
	}
	if record != nil {
		log.Debug("Found existing analysis")
		s.remember(ctx, *record, log)
		return record.Assessment()
	}

	return s.evaluate(ctx, postID, text, createdAt, log)
}

// Rescore asks the model again without consulting either cache layer. The stored record
// is still never overwritten.
func (s *Scorer) Rescore(ctx context.Context, postID, text, createdAt string) models.Assessment {
	if postID == "" {
		postID = unknownID
	}
	return s.evaluate(ctx, postID, text, createdAt, s.logger.With(zap.String("post_id", postID), zap.Bool("rescore", true)))
}

func (s *Scorer) evaluate(ctx context.Context, postID, text, createdAt string, log *zap.Logger) models.Assessment {
	reply, err := s.llm.Generate(ctx, buildEvaluationPrompt(text))
	if err != nil {
		log.Error("Risk evaluation failed", zap.Error(err))
		return degraded(text)
	}

	eval := parseEvaluation(reply)
	record := models.RiskRecord{
		PostID:      postID,
		Text:        text,
		CreatedAt:   createdAt,
		Label:       eval.label,
		Confidence:  eval.confidence,
		Explanation: eval.explanation,
	}

	stored, err := s.store.PutRiskRecordIfAbsent(ctx, record)
	if err != nil {
		log.Error("Failed to store risk record", zap.Error(err))
		return degraded(text)
	}
	if stored {
		s.remember(ctx, record, log)
	} else {
		log.Info("Risk record already exists, skipping write")
	}

	return record.Assessment()
}

func (s *Scorer) cached(ctx context.Context, postID string, log *zap.Logger) *models.RiskRecord {
	if s.cache == nil {
		return nil
	}
	record, err := s.cache.Get(ctx, postID)
	if err != nil {
		log.Warn("Risk cache lookup failed", zap.Error(err))
		return nil
	}
	return record
}

func (s *Scorer) remember(ctx context.Context, record models.RiskRecord, log *zap.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, record); err != nil {
		log.Warn("Failed to cache risk record", zap.Error(err))
	}
}

func degraded(text string) models.Assessment {
	return models.Assessment{
		Text:         text,
		RiskDetected: models.LabelUnknown,
		Confidence:   models.ConfidenceUnknown,
		Probability:  0.0,
	}
}
