package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// Notifier publishes fired alerts
type Notifier interface {
	PublishAlert(ctx context.Context, event models.AlertEvent) error
}

// PollerDeps are the collaborators of a Poller. Notifier and Clock may be nil.
type PollerDeps struct {
	Source   PostSource
	Scorer   Scorer
	Support  *SupportWriter
	Board    *AlertBoard
	Notifier Notifier
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Poller checks one account's recent posts and updates the alert board
type Poller struct {
	cfg      config.MonitorConfig
	source   PostSource
	scorer   Scorer
	support  *SupportWriter
	board    *AlertBoard
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewPoller creates a poller for the configured account
func NewPoller(cfg config.MonitorConfig, deps PollerDeps) *Poller {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Poller{
		cfg:      cfg,
		source:   deps.Source,
		scorer:   deps.Scorer,
		support:  deps.Support,
		board:    deps.Board,
		notifier: deps.Notifier,
		now:      clock,
		logger:   deps.Logger.With(zap.String("account", cfg.Account)),
	}
}

// Poll runs one cycle. A failed cycle is logged and forces the alert inactive.
func (p *Poller) Poll(ctx context.Context) {
	if err := p.RunCycle(ctx); err != nil {
		p.logger.Error("Poll cycle failed", zap.Error(err))
		p.board.Deactivate()
	}
}

// RunCycle scores posts inside the lookback window in fetch order and raises the alert
// on the first one whose probability exceeds the threshold.
func (p *Poller) RunCycle(ctx context.Context) error {
	now := p.now().UTC()
	cutoff := now.Add(-p.cfg.Window)

	posts, err := fetchRecent(ctx, p.source, p.cfg.Account, p.cfg.MaxResults)
	if err != nil {
		return err
	}

	scored := 0
	for _, post := range posts {
		if post.CreatedAt == "" {
			continue
		}

		created, err := post.CreatedTime()
		if err != nil {
			return fmt.Errorf("invalid timestamp on post %s: %w", post.ID, err)
		}
		if created.Before(cutoff) {
			continue
		}

		assessment := p.scorer.Score(ctx, post.ID, post.Text, post.CreatedAt)
		scored++

		if assessment.Probability > p.cfg.Threshold {
			p.raise(ctx, assessment, now)
			return nil
		}
	}

	p.board.Publish(models.AlertState{Active: false, LastChecked: &now})
	p.logger.Info("Poll cycle completed", zap.Int("fetched", len(posts)), zap.Int("scored", scored))
	return nil
}

func (p *Poller) raise(ctx context.Context, assessment models.Assessment, now time.Time) {
	message := p.support.Write(ctx, assessment.Text)
	flagged := assessment.Text

	p.board.Publish(models.AlertState{
		Active:         true,
		SupportMessage: &message,
		LastChecked:    &now,
		FlaggedText:    &flagged,
	})
	p.logger.Warn("Risk alert raised", zap.Float64("probability", assessment.Probability))

	if p.notifier == nil {
		return
	}
	event := models.AlertEvent{
		Account:        p.cfg.Account,
		PostText:       flagged,
		SupportMessage: message,
		Probability:    assessment.Probability,
		DetectedAt:     now,
	}
	if err := p.notifier.PublishAlert(ctx, event); err != nil {
		p.logger.Error("Failed to publish alert", zap.Error(err))
	}
}
