package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/waxswap/backend/internal/audit"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/notify"
)

// SweepTradeStore is the trade repository subset the sweep needs.
type SweepTradeStore interface {
	ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Trade, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// LockReleaser clears file locks held by a trade.
type LockReleaser interface {
	UnlockAllForTrade(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (int64, error)
}

// ExpirationSweeper expires pending trades whose TTL elapsed. Each trade is
// handled in its own transaction: one bad row never blocks the rest of the
// batch, and re-running the sweep over already-expired trades is a no-op.
type ExpirationSweeper struct {
	Pool      TxBeginner
	Trades    SweepTradeStore
	Registry  LockReleaser
	Audit     audit.Sink
	Notifier  Notifier
	BatchSize int
	Logger    *slog.Logger
}

func NewExpirationSweeper(
	pool TxBeginner,
	trades SweepTradeStore,
	registry LockReleaser,
	auditSink audit.Sink,
	notifier Notifier,
	batchSize int,
	logger *slog.Logger,
) *ExpirationSweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirationSweeper{
		Pool:      pool,
		Trades:    trades,
		Registry:  registry,
		Audit:     auditSink,
		Notifier:  notifier,
		BatchSize: batchSize,
		Logger:    logger,
	}
}

// SweepExpired expires one batch of overdue pending trades and returns how
// many it expired. Listing failures abort the sweep; per-trade failures are
// logged and skipped.
func (s *ExpirationSweeper) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now()
	ids, err := s.Trades.ListExpiredPendingIDs(ctx, now, s.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired trades: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := s.expireOne(ctx, id, now); err != nil {
			s.Logger.Error("expire trade failed", "trade_id", id, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// expireOne re-checks the trade under its row lock before expiring it: a
// trade resolved between listing and locking is left alone.
func (s *ExpirationSweeper) expireOne(ctx context.Context, tradeID uuid.UUID, now time.Time) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin expire tx: %w", err)
	}
	defer tx.Rollback(ctx)

	trade, err := s.Trades.GetByIDForUpdate(ctx, tx, tradeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("lock trade: %w", err)
	}
	if trade.Terminal() || !trade.Expired(now) {
		return nil
	}

	if _, err := s.Registry.UnlockAllForTrade(ctx, tx, tradeID); err != nil {
		return fmt.Errorf("release file locks: %w", err)
	}
	if err := s.Trades.UpdateStatusTx(ctx, tx, tradeID, models.TradeStatusExpired); err != nil {
		return fmt.Errorf("set trade expired: %w", err)
	}
	if err := s.Audit.Record(ctx, tx, audit.Event{TradeID: tradeID, Kind: audit.KindTradeExpired}); err != nil {
		return fmt.Errorf("record expiry audit: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit expiry: %w", err)
	}

	for _, accountID := range []uuid.UUID{trade.ProposerID, trade.ReceiverID} {
		ev := notify.Event{Kind: notify.EventTradeExpired, TradeID: tradeID}
		if err := s.Notifier.Notify(ctx, accountID, ev); err != nil {
			s.Logger.Warn("notify failed", "account_id", accountID, "kind", ev.Kind, "trade_id", tradeID, "error", err)
		}
	}
	return nil
}
