package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waxswap/backend/internal/audit"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/notify"
)

type sweepFixture struct {
	sweeper  *ExpirationSweeper
	trades   *mockTradeStore
	registry *mockRegistry
	audits   *recordingAudit
	notified *recordingNotifier
}

func newSweepFixture(trades []*models.Trade, files []*models.TrackFile) *sweepFixture {
	f := &sweepFixture{
		trades:   newMockTradeStore(trades...),
		registry: newMockRegistry(files...),
		audits:   &recordingAudit{},
		notified: &recordingNotifier{},
	}
	f.sweeper = NewExpirationSweeper(
		mockPool{}, f.trades, f.registry, f.audits, f.notified, 100,
		slog.New(slog.DiscardHandler),
	)
	return f
}

func TestSweepExpiresOverdueTrades(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	overdue := pendingTrade(alice, bob)
	overdue.ExpiresAt = time.Now().Add(-time.Hour)
	fresh := pendingTrade(alice, bob)

	file := trackFile(bob)
	file.LockedByTrade = &overdue.ID

	f := newSweepFixture([]*models.Trade{overdue, fresh}, []*models.TrackFile{file})

	n, err := f.sweeper.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("expired count: got %d, want 1", n)
	}

	if got := f.trades.status(overdue.ID); got != models.TradeStatusExpired {
		t.Errorf("overdue trade status: got %s, want expired", got)
	}
	if got := f.trades.status(fresh.ID); got != models.TradeStatusPending {
		t.Errorf("fresh trade status: got %s, want pending", got)
	}
	if f.registry.locked(file.ID) {
		t.Error("file lock should be released on expiry")
	}
	if got := f.notified.count(notify.EventTradeExpired); got != 2 {
		t.Errorf("expired notifications: got %d, want 2", got)
	}
	if kinds := f.audits.kinds(); len(kinds) != 1 || kinds[0] != audit.KindTradeExpired {
		t.Errorf("audit kinds: got %v", kinds)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	overdue := pendingTrade(alice, bob)
	overdue.ExpiresAt = time.Now().Add(-time.Hour)

	f := newSweepFixture([]*models.Trade{overdue}, nil)
	ctx := context.Background()

	if n, err := f.sweeper.SweepExpired(ctx); err != nil || n != 1 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	if n, err := f.sweeper.SweepExpired(ctx); err != nil || n != 0 {
		t.Errorf("second sweep: n=%d err=%v, want 0 and nil", n, err)
	}
	if got := f.notified.count(notify.EventTradeExpired); got != 2 {
		t.Errorf("notifications after two sweeps: got %d, want 2", got)
	}
}

// A trade resolved between listing and locking is left alone.
func TestSweepSkipsTradeResolvedMeanwhile(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	overdue := pendingTrade(alice, bob)
	overdue.ExpiresAt = time.Now().Add(-time.Hour)

	f := newSweepFixture([]*models.Trade{overdue}, nil)

	now := time.Now()
	if err := f.trades.UpdateStatusTx(context.Background(), nil, overdue.ID, models.TradeStatusCompleted); err != nil {
		t.Fatalf("UpdateStatusTx: %v", err)
	}

	if err := f.sweeper.expireOne(context.Background(), overdue.ID, now); err != nil {
		t.Fatalf("expireOne: %v", err)
	}
	if got := f.trades.status(overdue.ID); got != models.TradeStatusCompleted {
		t.Errorf("trade status: got %s, want completed", got)
	}
	if got := f.notified.count(notify.EventTradeExpired); got != 0 {
		t.Errorf("notifications: got %d, want 0", got)
	}
}

func TestSweepUnknownTradeIsNoop(t *testing.T) {
	f := newSweepFixture(nil, nil)
	if err := f.sweeper.expireOne(context.Background(), uuid.New(), time.Now()); err != nil {
		t.Fatalf("expireOne on unknown trade: %v", err)
	}
}
