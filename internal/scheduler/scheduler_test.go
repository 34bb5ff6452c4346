package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"helpdeskai/pkg/domain"
)

type countingGenerator struct {
	calls atomic.Int64
	err   error
}

func (g *countingGenerator) GenerateScheduledArticle(context.Context) (domain.Article, error) {
	g.calls.Add(1)
	if g.err != nil {
		return domain.Article{}, g.err
	}
	return domain.Article{ID: "a-1", Category: "Networking"}, nil
}

func TestNewRejectsInvalidCronSpec(t *testing.T) {
	_, err := New(&countingGenerator{}, Config{MorningSpec: "not a cron", EveningSpec: "0 17 * * *"})
	if err == nil {
		t.Fatalf("expected invalid cron expression to fail")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s, err := New(&countingGenerator{}, Config{MorningSpec: "0 9 * * *", EveningSpec: "0 17 * * *"})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	s.Start()
	s.Start()
	if !s.Started() {
		t.Fatalf("scheduler should report started")
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Fatalf("expected exactly 2 cron entries after repeated Start, got %d", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRunJobSwallowsErrors(t *testing.T) {
	gen := &countingGenerator{err: errors.New("model unavailable")}
	s, err := New(gen, Config{MorningSpec: "0 9 * * *", EveningSpec: "0 17 * * *"})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	// a failing run must not panic or stop anything; later runs still fire
	s.runJob("0 9 * * *")
	s.runJob("0 17 * * *")
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("expected both runs to execute despite errors, got %d", got)
	}
}

func TestRunOncePropagatesError(t *testing.T) {
	gen := &countingGenerator{err: errors.New("model unavailable")}
	s, err := New(gen, Config{MorningSpec: "0 9 * * *", EveningSpec: "0 17 * * *"})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected on-demand run to propagate the error")
	}
	gen.err = nil
	article, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if article.ID != "a-1" {
		t.Fatalf("unexpected article: %+v", article)
	}
}
