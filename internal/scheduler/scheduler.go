// Package scheduler runs the unattended knowledge-base article generation
// jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"helpdeskai/pkg/domain"
)

// ArticleGenerator produces one knowledge-base article per call.
type ArticleGenerator interface {
	GenerateScheduledArticle(ctx context.Context) (domain.Article, error)
}

// Config holds the cron expressions for the two daily runs.
type Config struct {
	MorningSpec string
	EveningSpec string
	JobTimeout  time.Duration
}

// Scheduler owns the cron runner. Start is idempotent; a second call is a
// no-op.
type Scheduler struct {
	generator  ArticleGenerator
	cron       *cron.Cron
	jobTimeout time.Duration
	startOnce  sync.Once
	started    atomic.Bool
}

// New builds a scheduler with both cron entries registered. It fails when
// either expression does not parse.
func New(generator ArticleGenerator, cfg Config) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	s := &Scheduler{
		generator:  generator,
		cron:       cron.New(),
		jobTimeout: cfg.JobTimeout,
	}
	for _, spec := range []string{cfg.MorningSpec, cfg.EveningSpec} {
		spec := spec
		if _, err := s.cron.AddFunc(spec, func() { s.runJob(spec) }); err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
		}
	}
	return s, nil
}

// Started reports whether Start has been called.
func (s *Scheduler) Started() bool { return s.started.Load() }

// Start begins the cron loop. Repeated calls do not register duplicate
// entries or spawn extra runners.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		s.cron.Start()
		slog.Info("article scheduler started", "entries", len(s.cron.Entries()))
	})
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce triggers a single generation immediately, outside the schedule.
// Unlike the cron job it propagates the error to the caller.
func (s *Scheduler) RunOnce(ctx context.Context) (domain.Article, error) {
	return s.generator.GenerateScheduledArticle(ctx)
}

// runJob is the unattended entry point. Failures are logged and swallowed
// so one bad run never disturbs the schedule.
func (s *Scheduler) runJob(spec string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	article, err := s.generator.GenerateScheduledArticle(ctx)
	if err != nil {
		slog.Error("scheduled article generation failed", "spec", spec, "err", err)
		return
	}
	slog.Info("scheduled article generated", "spec", spec, "article_id", article.ID, "category", article.Category)
}
