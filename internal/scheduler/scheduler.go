package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work. The context is cancelled when the scheduler stops.
type Job func(ctx context.Context)

// Scheduler runs named jobs immediately or on a fixed cadence. A job never overlaps
// with itself: a run that would start while the previous one is active is skipped.
type Scheduler struct {
	cron   *cron.Cron
	chain  cron.Chain
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]cron.Job
}

// New creates a stopped scheduler
func New(logger *zap.Logger) *Scheduler {
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger)),
		chain:  cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		jobs:   make(map[string]cron.Job),
	}
}

// wrap returns the single guarded instance for a job name
func (s *Scheduler) wrap(name string, job Job) cron.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wrapped, ok := s.jobs[name]; ok {
		return wrapped
	}
	wrapped := s.chain.Then(cron.FuncJob(func() {
		start := time.Now()
		job(s.ctx)
		s.logger.Debug("Job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}))
	s.jobs[name] = wrapped
	return wrapped
}

// RunNow runs the job once on the calling goroutine
func (s *Scheduler) RunNow(name string, job Job) {
	s.wrap(name, job).Run()
}

// Every registers the job to run at a fixed interval once the scheduler is started
func (s *Scheduler) Every(name string, interval time.Duration, job Job) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("invalid interval %s for job %s", interval, name)
	}
	id := s.cron.Schedule(cron.Every(interval), s.wrap(name, job))
	s.logger.Info("Job scheduled", zap.String("job", name), zap.Duration("interval", interval))
	return id, nil
}

// Entries returns a snapshot of the scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Start begins running scheduled jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels job contexts and waits for running jobs to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
