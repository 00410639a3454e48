package sweep

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/riverqueue/river"
)

type stubSweeper struct {
	n     int
	err   error
	calls int
}

func (s *stubSweeper) SweepExpired(context.Context) (int, error) {
	s.calls++
	return s.n, s.err
}

func TestExpireTradesWorker(t *testing.T) {
	sweeper := &stubSweeper{n: 3}
	w := NewExpireTradesWorker(sweeper, slog.New(slog.DiscardHandler))

	if err := w.Work(context.Background(), &river.Job[ExpireTradesJobArgs]{}); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if sweeper.calls != 1 {
		t.Errorf("sweep calls: got %d, want 1", sweeper.calls)
	}
}

func TestExpireTradesWorkerPropagatesError(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("db down")}
	w := NewExpireTradesWorker(sweeper, slog.New(slog.DiscardHandler))

	if err := w.Work(context.Background(), &river.Job[ExpireTradesJobArgs]{}); err == nil {
		t.Fatal("expected error so the job retries")
	}
}
