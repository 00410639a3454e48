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

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SettlementTradeStore is the trade repository subset settlement needs.
type SettlementTradeStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Trade, error)
	ItemsByTradeIDTx(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) ([]*models.TradeItem, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// TrackRegistry is the ownership registry subset settlement needs. Lock must
// be compare-and-set: it returns false when another trade already holds the
// file.
type TrackRegistry interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TrackFile, error)
	Lock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) (bool, error)
	Unlock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) error
	UnlockAllForTrade(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (int64, error)
	ReassignOwner(ctx context.Context, tx pgx.Tx, fileID, newOwnerID uuid.UUID) error
}

// SettlementLedger moves credits between the two parties.
type SettlementLedger interface {
	Transfer(ctx context.Context, tx pgx.Tx, from, to uuid.UUID, amount int, tradeID *uuid.UUID, reason string) error
}

// GrantStore appends access grants.
type GrantStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, g *models.AccessGrant) error
}

// Notifier delivers an event to one user. Failures are logged, never fatal.
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, ev notify.Event) error
}

// SettlementEngine converts an accepted trade into ownership and balance
// changes. Everything runs in one transaction: a failure at any step after
// validation rolls back every lock, grant, and ledger row of the attempt.
type SettlementEngine struct {
	Pool     TxBeginner
	Trades   SettlementTradeStore
	Registry TrackRegistry
	Ledger   SettlementLedger
	Grants   GrantStore
	Audit    audit.Sink
	Notifier Notifier
	Logger   *slog.Logger
}

func NewSettlementEngine(
	pool TxBeginner,
	trades SettlementTradeStore,
	registry TrackRegistry,
	ledger SettlementLedger,
	grants GrantStore,
	auditSink audit.Sink,
	notifier Notifier,
	logger *slog.Logger,
) *SettlementEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementEngine{
		Pool:     pool,
		Trades:   trades,
		Registry: registry,
		Ledger:   ledger,
		Grants:   grants,
		Audit:    auditSink,
		Notifier: notifier,
		Logger:   logger,
	}
}

// Settle executes the settlement algorithm for a pending trade:
//
//  1. Re-fetch the trade under a row lock; it must still be pending and
//     unexpired.
//  2. Re-validate every referenced file: owned by its declared party,
//     transferable, unlocked.
//  3. Claim each file via compare-and-set; losing the race to another
//     settling trade aborts with ErrConflict.
//  4. Move credits, item by item; a debit that would go negative aborts
//     with ErrInsufficientCredits.
//  5. Re-parent each file, write its access grant, release its lock.
//  6. Cash legs are informational; the external payment collaborator runs
//     before acceptance.
//  7. Mark the trade completed and write the audit record.
//
// The caller decides what a returned ErrConflict means for the trade (the
// lifecycle service cancels it).
func (e *SettlementEngine) Settle(ctx context.Context, tradeID uuid.UUID) error {
	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback(ctx)

	trade, err := e.Trades.GetByIDForUpdate(ctx, tx, tradeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("fetch trade for settlement: %w", err)
	}
	if trade.Terminal() {
		return ErrAlreadyResolved
	}
	if trade.Expired(time.Now()) {
		return fmt.Errorf("%w: trade expired before settlement", ErrConflict)
	}

	items, err := e.Trades.ItemsByTradeIDTx(ctx, tx, tradeID)
	if err != nil {
		return fmt.Errorf("fetch trade items: %w", err)
	}

	for _, it := range items {
		if it.TrackFileID == nil {
			continue
		}
		f, err := e.Registry.GetByIDTx(ctx, tx, *it.TrackFileID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: stale reference, file %s is gone", ErrConflict, *it.TrackFileID)
			}
			return fmt.Errorf("fetch file %s: %w", *it.TrackFileID, err)
		}
		if f.OwnerID != it.OfferedBy || !f.Transferable || f.LockedByTrade != nil {
			return fmt.Errorf("%w: stale reference on file %s", ErrConflict, f.ID)
		}
	}

	for _, it := range items {
		if it.TrackFileID == nil {
			continue
		}
		won, err := e.Registry.Lock(ctx, tx, *it.TrackFileID, tradeID)
		if err != nil {
			return fmt.Errorf("lock file %s: %w", *it.TrackFileID, err)
		}
		if !won {
			return fmt.Errorf("%w: lost lock race on file %s", ErrConflict, *it.TrackFileID)
		}
	}

	for _, it := range items {
		if it.CreditsOffered <= 0 {
			continue
		}
		to := trade.Counterparty(it.OfferedBy)
		if err := e.Ledger.Transfer(ctx, tx, it.OfferedBy, to, it.CreditsOffered, &trade.ID, models.CreditReasonTradeSettlement); err != nil {
			return err
		}
	}

	for _, it := range items {
		if it.TrackFileID == nil {
			continue
		}
		newOwner := trade.Counterparty(it.OfferedBy)
		if err := e.Registry.ReassignOwner(ctx, tx, *it.TrackFileID, newOwner); err != nil {
			return fmt.Errorf("reassign file %s: %w", *it.TrackFileID, err)
		}
		grant := &models.AccessGrant{
			ID:          uuid.New(),
			AccountID:   newOwner,
			TrackFileID: *it.TrackFileID,
			GrantType:   models.GrantTypeTrade,
			TradeID:     &trade.ID,
		}
		if err := e.Grants.CreateTx(ctx, tx, grant); err != nil {
			return fmt.Errorf("write access grant: %w", err)
		}
		if err := e.Registry.Unlock(ctx, tx, *it.TrackFileID, tradeID); err != nil {
			return fmt.Errorf("unlock file %s: %w", *it.TrackFileID, err)
		}
	}

	if err := e.Trades.UpdateStatusTx(ctx, tx, tradeID, models.TradeStatusCompleted); err != nil {
		return fmt.Errorf("mark trade completed: %w", err)
	}
	if err := e.Audit.Record(ctx, tx, audit.Event{
		TradeID: tradeID,
		Kind:    audit.KindTradeSettled,
		Payload: map[string]any{"items": len(items)},
	}); err != nil {
		return fmt.Errorf("record settlement audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}

	e.notifyParties(ctx, trade, notify.EventTradeCompleted)
	return nil
}

func (e *SettlementEngine) notifyParties(ctx context.Context, trade *models.Trade, kind string) {
	for _, id := range []uuid.UUID{trade.ProposerID, trade.ReceiverID} {
		ev := notify.Event{Kind: kind, TradeID: trade.ID}
		if err := e.Notifier.Notify(ctx, id, ev); err != nil {
			e.Logger.Warn("notify failed", "account_id", id, "kind", kind, "trade_id", trade.ID, "error", err)
		}
	}
}
