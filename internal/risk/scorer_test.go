package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/models"
)

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetRiskRecord(ctx context.Context, postID string) (*models.RiskRecord, error) {
	args := m.Called(ctx, postID)
	record, _ := args.Get(0).(*models.RiskRecord)
	return record, args.Error(1)
}

func (m *MockStore) PutRiskRecordIfAbsent(ctx context.Context, record models.RiskRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

// MockCache is a mock implementation of the Cache interface
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, postID string) (*models.RiskRecord, error) {
	args := m.Called(ctx, postID)
	record, _ := args.Get(0).(*models.RiskRecord)
	return record, args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, record models.RiskRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockGenerator is a mock implementation of the Generator interface
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// memStore is an in-memory write-once store
type memStore struct {
	records map[string]models.RiskRecord
	puts    int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]models.RiskRecord{}}
}

func (s *memStore) GetRiskRecord(_ context.Context, postID string) (*models.RiskRecord, error) {
	r, ok := s.records[postID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memStore) PutRiskRecordIfAbsent(_ context.Context, record models.RiskRecord) (bool, error) {
	s.puts++
	if _, ok := s.records[record.PostID]; ok {
		return false, nil
	}
	s.records[record.PostID] = record
	return true, nil
}

const flaggedReply = "<harm>Yes</harm>\n<confidence>0.92</confidence>\n<comment>Expresses hopelessness</comment>"

func TestScorer_ScoreMissStoresAndReturns(t *testing.T) {
	store := newMemStore()
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, buildEvaluationPrompt("I can't go on")).Return(flaggedReply, nil).Once()

	scorer := NewScorer(store, nil, gen, zap.NewNop())
	result := scorer.Score(context.Background(), "1", "I can't go on", "2025-07-20T10:00:00.000Z")

	assert.Equal(t, "Yes", result.RiskDetected)
	assert.Equal(t, "0.92", result.Confidence)
	assert.InDelta(t, 0.92, result.Probability, 1e-9)
	assert.Equal(t, "Expresses hopelessness", result.Explanation)
	assert.Equal(t, "2025-07-20T10:00:00.000Z", result.CreatedAt)
	assert.Contains(t, store.records, "1")
	gen.AssertExpectations(t)
}

func TestScorer_SecondCallIsIdenticalAndSkipsModel(t *testing.T) {
	store := newMemStore()
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(flaggedReply, nil).Once()
	scorer := NewScorer(store, nil, gen, zap.NewNop())

	first := scorer.Score(context.Background(), "1", "text", "2025-07-20T10:00:00.000Z")
	second := scorer.Score(context.Background(), "1", "text", "2025-07-20T10:00:00.000Z")

	assert.Equal(t, first, second)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestScorer_StoreHitIgnoresArguments(t *testing.T) {
	store := newMemStore()
	store.records["1"] = models.RiskRecord{PostID: "1", Text: "stored", CreatedAt: "old", Label: "No", Confidence: "0.1", Explanation: "calm"}
	gen := new(MockGenerator)
	scorer := NewScorer(store, nil, gen, zap.NewNop())

	result := scorer.Score(context.Background(), "1", "completely different", "new")

	assert.Equal(t, "stored", result.Text)
	assert.Equal(t, "old", result.CreatedAt)
	assert.Equal(t, "No", result.RiskDetected)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestScorer_NonNumericConfidence(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("<harm>Yes</harm><confidence>high</confidence><comment>x</comment>", nil)
	scorer := NewScorer(newMemStore(), nil, gen, zap.NewNop())

	result := scorer.Score(context.Background(), "1", "text", "")

	assert.Equal(t, 0.0, result.Probability)
	assert.Equal(t, "high", result.Confidence)
	assert.Equal(t, "Yes", result.RiskDetected)
	assert.Equal(t, "x", result.Explanation)
}

func TestScorer_MissingTagsUseSentinels(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("I am not sure what you want", nil)
	store := newMemStore()
	scorer := NewScorer(store, nil, gen, zap.NewNop())

	result := scorer.Score(context.Background(), "1", "text", "")

	assert.Equal(t, models.LabelUnknown, result.RiskDetected)
	assert.Equal(t, models.ConfidenceUnknown, result.Confidence)
	assert.Equal(t, models.ExplanationNotProvided, result.Explanation)
	assert.Equal(t, 0.0, result.Probability)
	assert.False(t, result.Degraded())
	assert.Equal(t, models.ExplanationNotProvided, store.records["1"].Explanation)
}

func TestScorer_EmptyIDBecomesUnknownID(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(flaggedReply, nil)
	store := newMemStore()
	scorer := NewScorer(store, nil, gen, zap.NewNop())

	scorer.Score(context.Background(), "", "text", "")

	assert.Contains(t, store.records, unknownID)
}

func TestScorer_DegradedOnFailures(t *testing.T) {
	t.Run("store read error", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetRiskRecord", mock.Anything, "1").Return(nil, errors.New("throttled"))
		gen := new(MockGenerator)
		scorer := NewScorer(store, nil, gen, zap.NewNop())

		result := scorer.Score(context.Background(), "1", "text", "")

		assert.True(t, result.Degraded())
		assert.Equal(t, "text", result.Text)
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("model error", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetRiskRecord", mock.Anything, "1").Return(nil, nil)
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything).Return("", models.ErrUpstreamUnavailable)
		scorer := NewScorer(store, nil, gen, zap.NewNop())

		result := scorer.Score(context.Background(), "1", "text", "")

		assert.True(t, result.Degraded())
		assert.Equal(t, 0.0, result.Probability)
		store.AssertNotCalled(t, "PutRiskRecordIfAbsent", mock.Anything, mock.Anything)
	})

	t.Run("store write error", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetRiskRecord", mock.Anything, "1").Return(nil, nil)
		store.On("PutRiskRecordIfAbsent", mock.Anything, mock.Anything).Return(false, errors.New("disk full"))
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything).Return(flaggedReply, nil)
		scorer := NewScorer(store, nil, gen, zap.NewNop())

		result := scorer.Score(context.Background(), "1", "text", "")

		assert.True(t, result.Degraded())
		assert.Empty(t, result.Explanation)
	})
}

func TestScorer_ConcurrentWriterWinsWithoutError(t *testing.T) {
	store := new(MockStore)
	store.On("GetRiskRecord", mock.Anything, "1").Return(nil, nil)
	store.On("PutRiskRecordIfAbsent", mock.Anything, mock.Anything).Return(false, nil)
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(flaggedReply, nil)
	scorer := NewScorer(store, nil, gen, zap.NewNop())

	result := scorer.Score(context.Background(), "1", "text", "")

	assert.Equal(t, "Yes", result.RiskDetected)
	assert.False(t, result.Degraded())
}

func TestScorer_CacheHitSkipsStore(t *testing.T) {
	cache := new(MockCache)
	cache.On("Get", mock.Anything, "1").Return(&models.RiskRecord{PostID: "1", Text: "cached", Label: "No", Confidence: "0.05", Explanation: "ok"}, nil)
	store := new(MockStore)
	gen := new(MockGenerator)
	scorer := NewScorer(store, cache, gen, zap.NewNop())

	result := scorer.Score(context.Background(), "1", "text", "")

	assert.Equal(t, "cached", result.Text)
	assert.InDelta(t, 0.05, result.Probability, 1e-9)
	store.AssertNotCalled(t, "GetRiskRecord", mock.Anything, mock.Anything)
}

func TestScorer_CacheErrorFallsThroughAndPopulates(t *testing.T) {
	cache := new(MockCache)
	cache.On("Get", mock.Anything, "1").Return(nil, errors.New("connection refused"))
	cache.On("Set", mock.Anything, mock.Anything).Return(nil)
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(flaggedReply, nil)
	scorer := NewScorer(newMemStore(), cache, gen, zap.NewNop())

	result := scorer.Score(context.Background(), "1", "text", "")

	assert.Equal(t, "Yes", result.RiskDetected)
	cache.AssertCalled(t, "Set", mock.Anything, mock.MatchedBy(func(r models.RiskRecord) bool { return r.PostID == "1" }))
}

func TestScorer_RescoreBypassesCachesButNeverOverwrites(t *testing.T) {
	store := newMemStore()
	original := models.RiskRecord{PostID: "1", Text: "stored", Label: "No", Confidence: "0.1", Explanation: "calm"}
	store.records["1"] = original
	cache := new(MockCache)
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(flaggedReply, nil)
	scorer := NewScorer(store, cache, gen, zap.NewNop())

	result := scorer.Rescore(context.Background(), "1", "stored", "")

	assert.Equal(t, "Yes", result.RiskDetected)
	assert.Equal(t, original, store.records["1"])
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestParseEvaluation_Multiline(t *testing.T) {
	eval := parseEvaluation("<harm> Yes </harm><confidence>\n0.7\n</confidence><comment>line one\nline two</comment>")

	assert.Equal(t, "Yes", eval.label)
	assert.Equal(t, "0.7", eval.confidence)
	assert.Equal(t, "line one\nline two", eval.explanation)
}
