package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

var testNow = time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)

// fakeSource serves a fixed timeline for one account
type fakeSource struct {
	posts     []models.Post
	lookupErr error
	fetchErr  error
}

func (f *fakeSource) LookupUserID(_ context.Context, username string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return "id-" + username, nil
}

func (f *fakeSource) RecentPosts(_ context.Context, _ string, maxResults int) ([]models.Post, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.posts) > maxResults {
		return f.posts[:maxResults], nil
	}
	return f.posts, nil
}

// fakeScorer returns a fixed probability per post id and records call order
type fakeScorer struct {
	mu       sync.Mutex
	prob     map[string]float64
	scored   []string
	rescored []string
}

func (f *fakeScorer) assessment(id, text string) models.Assessment {
	p := f.prob[id]
	return models.Assessment{Text: text, RiskDetected: "Yes", Confidence: fmt.Sprint(p), Probability: p}
}

func (f *fakeScorer) Score(_ context.Context, id, text, _ string) models.Assessment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored = append(f.scored, id)
	return f.assessment(id, text)
}

func (f *fakeScorer) Rescore(_ context.Context, id, text, _ string) models.Assessment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescored = append(f.rescored, id)
	return f.assessment(id, text)
}

// fakeGenerator returns a canned reply
type fakeGenerator struct {
	reply string
	err   error
}

func (f fakeGenerator) Generate(context.Context, string) (string, error) {
	return f.reply, f.err
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishAlert(ctx context.Context, event models.AlertEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func post(id, text string, age time.Duration) models.Post {
	return models.Post{ID: id, Text: text, CreatedAt: testNow.Add(-age).Format("2006-01-02T15:04:05.000Z")}
}

type pollerFixture struct {
	poller *Poller
	source *fakeSource
	scorer *fakeScorer
	board  *AlertBoard
}

func newPollerFixture(gen Generator, notifier Notifier) *pollerFixture {
	source := &fakeSource{}
	scorer := &fakeScorer{prob: map[string]float64{}}
	board := NewAlertBoard()

	cfg := config.Default().Monitor
	cfg.Account = "someone"

	poller := NewPoller(cfg, PollerDeps{
		Source:   source,
		Scorer:   scorer,
		Support:  NewSupportWriter(gen, zap.NewNop()),
		Board:    board,
		Notifier: notifier,
		Clock:    func() time.Time { return testNow },
		Logger:   zap.NewNop(),
	})
	return &pollerFixture{poller: poller, source: source, scorer: scorer, board: board}
}

func TestPoller_FirstPostOverThresholdWins(t *testing.T) {
	f := newPollerFixture(fakeGenerator{reply: "<response>We're here for you.</response>"}, nil)
	f.source.posts = []models.Post{
		post("1", "fine day", time.Hour),
		post("2", "everything is dark", 2*time.Hour),
		post("3", "even darker", 3*time.Hour),
	}
	f.scorer.prob = map[string]float64{"1": 0.2, "2": 0.9, "3": 0.95}

	require.NoError(t, f.poller.RunCycle(context.Background()))

	state := f.board.Snapshot()
	assert.True(t, state.Active)
	require.NotNil(t, state.FlaggedText)
	assert.Equal(t, "everything is dark", *state.FlaggedText)
	require.NotNil(t, state.SupportMessage)
	assert.Equal(t, "We're here for you.", *state.SupportMessage)
	require.NotNil(t, state.LastChecked)
	assert.Equal(t, testNow, *state.LastChecked)
	assert.Equal(t, []string{"1", "2"}, f.scorer.scored)
}

func TestPoller_ThresholdIsStrict(t *testing.T) {
	f := newPollerFixture(fakeGenerator{}, nil)
	f.source.posts = []models.Post{post("1", "borderline", time.Hour)}
	f.scorer.prob = map[string]float64{"1": 0.85}

	require.NoError(t, f.poller.RunCycle(context.Background()))

	assert.False(t, f.board.Snapshot().Active)
}

func TestPoller_PostsOutsideWindowAreNeverScored(t *testing.T) {
	f := newPollerFixture(fakeGenerator{}, nil)
	f.source.posts = []models.Post{
		post("old", "ancient despair", 25*time.Hour),
		post("new", "ok", time.Hour),
		{ID: "blank", Text: "no timestamp"},
	}
	f.scorer.prob = map[string]float64{"old": 0.99, "new": 0.1}

	require.NoError(t, f.poller.RunCycle(context.Background()))

	assert.Equal(t, []string{"new"}, f.scorer.scored)
	assert.False(t, f.board.Snapshot().Active)
}

func TestPoller_NoRiskClearsPreviousAlert(t *testing.T) {
	f := newPollerFixture(fakeGenerator{}, nil)
	msg, text := "old message", "old text"
	f.board.Publish(models.AlertState{Active: true, SupportMessage: &msg, FlaggedText: &text})
	f.source.posts = []models.Post{post("1", "fine", time.Hour)}

	require.NoError(t, f.poller.RunCycle(context.Background()))

	state := f.board.Snapshot()
	assert.False(t, state.Active)
	assert.Nil(t, state.SupportMessage)
	assert.Nil(t, state.FlaggedText)
	require.NotNil(t, state.LastChecked)
	assert.Equal(t, testNow, *state.LastChecked)
}

func TestPoller_FailureForcesInactiveAndKeepsSnapshot(t *testing.T) {
	f := newPollerFixture(fakeGenerator{}, nil)
	msg, text := "old message", "old text"
	checked := testNow.Add(-17 * time.Minute)
	f.board.Publish(models.AlertState{Active: true, SupportMessage: &msg, FlaggedText: &text, LastChecked: &checked})
	f.source.lookupErr = models.ErrAccountNotFound

	f.poller.Poll(context.Background())

	state := f.board.Snapshot()
	assert.False(t, state.Active)
	assert.Equal(t, "old text", *state.FlaggedText)
	assert.Equal(t, checked, *state.LastChecked)
}

func TestPoller_UnparseableTimestampFailsCycle(t *testing.T) {
	f := newPollerFixture(fakeGenerator{}, nil)
	f.source.posts = []models.Post{{ID: "1", Text: "x", CreatedAt: "yesterday"}}

	err := f.poller.RunCycle(context.Background())

	assert.Error(t, err)
	assert.Empty(t, f.scorer.scored)
}

func TestPoller_FetchErrorPropagates(t *testing.T) {
	f := newPollerFixture(fakeGenerator{}, nil)
	f.source.fetchErr = models.ErrUpstreamUnavailable

	err := f.poller.RunCycle(context.Background())

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestPoller_SupportFallback(t *testing.T) {
	f := newPollerFixture(fakeGenerator{err: errors.New("model down")}, nil)
	f.source.posts = []models.Post{post("1", "help", time.Hour)}
	f.scorer.prob = map[string]float64{"1": 0.99}

	require.NoError(t, f.poller.RunCycle(context.Background()))

	state := f.board.Snapshot()
	assert.True(t, state.Active)
	assert.Equal(t, FallbackSupportMessage, *state.SupportMessage)
}

func TestPoller_PublishesAlertEvent(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("PublishAlert", mock.Anything, models.AlertEvent{
		Account:        "someone",
		PostText:       "help",
		SupportMessage: "hi",
		Probability:    0.99,
		DetectedAt:     testNow,
	}).Return(errors.New("broker down"))

	f := newPollerFixture(fakeGenerator{reply: "<response>hi</response>"}, notifier)
	f.source.posts = []models.Post{post("1", "help", time.Hour)}
	f.scorer.prob = map[string]float64{"1": 0.99}

	require.NoError(t, f.poller.RunCycle(context.Background()))

	assert.True(t, f.board.Snapshot().Active)
	notifier.AssertExpectations(t)
}

func TestSupportWriter_MissingTagFallsBack(t *testing.T) {
	w := NewSupportWriter(fakeGenerator{reply: "Sure! Here is a message."}, zap.NewNop())

	assert.Equal(t, FallbackSupportMessage, w.Write(context.Background(), "text"))
}

func TestAlertBoard_DeactivateKeepsFields(t *testing.T) {
	board := NewAlertBoard()
	assert.False(t, board.Snapshot().Active)
	assert.Nil(t, board.Snapshot().LastChecked)

	text := "flagged"
	board.Publish(models.AlertState{Active: true, FlaggedText: &text})
	board.Deactivate()

	state := board.Snapshot()
	assert.False(t, state.Active)
	assert.Equal(t, "flagged", *state.FlaggedText)
}

func TestAnalyzer_AnalyzeAccount(t *testing.T) {
	source := &fakeSource{posts: []models.Post{post("1", "a", time.Hour), post("2", "b", 48*time.Hour)}}
	scorer := &fakeScorer{prob: map[string]float64{"1": 0.3, "2": 0.6}}
	analyzer := NewAnalyzer(source, scorer)

	results, err := analyzer.AnalyzeAccount(context.Background(), "someone", 5, false)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].PostID)
	assert.Equal(t, source.posts[1].CreatedAt, results[1].Date)
	assert.InDelta(t, 0.6, results[1].Probability, 1e-9)
	assert.Equal(t, []string{"1", "2"}, scorer.scored)

	_, err = analyzer.AnalyzeAccount(context.Background(), "someone", 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, scorer.rescored)
}

func TestAnalyzer_UnknownAccount(t *testing.T) {
	analyzer := NewAnalyzer(&fakeSource{lookupErr: models.ErrAccountNotFound}, &fakeScorer{})

	_, err := analyzer.AnalyzeAccount(context.Background(), "ghost", 5, false)

	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}
