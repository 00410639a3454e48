package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/waxswap/backend/internal/audit"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/notify"
)

// LifecycleTradeStore is the trade repository subset the lifecycle needs.
type LifecycleTradeStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Trade) error
	CreateItemTx(ctx context.Context, tx pgx.Tx, it *models.TradeItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Trade, error)
	ItemsByTradeID(ctx context.Context, tradeID uuid.UUID) ([]*models.TradeItem, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
	UpdateForCounterTx(ctx context.Context, tx pgx.Tx, id, awaitingID uuid.UUID, expiresAt time.Time) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, status string) ([]*models.Trade, error)
}

// FileReader is the registry subset proposal-time validation needs.
type FileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.TrackFile, error)
	UnlockAllForTrade(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (int64, error)
}

// Settler runs the settlement algorithm for an accepted trade.
type Settler interface {
	Settle(ctx context.Context, tradeID uuid.UUID) error
}

// Limits bounds what a proposal may contain.
type Limits struct {
	DefaultTTL          time.Duration
	MaxTTL              time.Duration
	MaxCreditsPerItem   int
	MaxCashCentsPerItem int
}

// ItemSpec is one proposed unit of value, before persistence.
type ItemSpec struct {
	TrackFileID      *uuid.UUID
	CreditsOffered   int
	CashOfferedCents int
	Note             string
}

// TradeLifecycleService owns proposal creation, counter rounds, responses,
// and cancellation. Settlement itself is delegated to the engine.
type TradeLifecycleService struct {
	Pool     TxBeginner
	Trades   LifecycleTradeStore
	Files    FileReader
	Engine   Settler
	Audit    audit.Sink
	Notifier Notifier
	Limits   Limits
	Logger   *slog.Logger
}

func NewTradeLifecycleService(
	pool TxBeginner,
	trades LifecycleTradeStore,
	files FileReader,
	engine Settler,
	auditSink audit.Sink,
	notifier Notifier,
	limits Limits,
	logger *slog.Logger,
) *TradeLifecycleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeLifecycleService{
		Pool:     pool,
		Trades:   trades,
		Files:    files,
		Engine:   engine,
		Audit:    auditSink,
		Notifier: notifier,
		Limits:   limits,
		Logger:   logger,
	}
}

// CreateTrade validates and persists a new pending proposal. Offered items
// are attributed to the proposer and requested items to the receiver; the
// receiver is the first party awaited.
func (s *TradeLifecycleService) CreateTrade(ctx context.Context, proposerID, receiverID uuid.UUID, offered, requested []ItemSpec, ttl time.Duration) (*models.Trade, error) {
	if proposerID == receiverID {
		return nil, fmt.Errorf("%w: cannot trade with yourself", ErrValidation)
	}
	if len(offered)+len(requested) == 0 {
		return nil, fmt.Errorf("%w: trade must contain at least one item", ErrValidation)
	}
	if ttl <= 0 {
		ttl = s.Limits.DefaultTTL
	}
	if ttl > s.Limits.MaxTTL {
		return nil, fmt.Errorf("%w: ttl exceeds maximum of %s", ErrValidation, s.Limits.MaxTTL)
	}

	if err := s.validateItems(ctx, offered, proposerID, true); err != nil {
		return nil, err
	}
	if err := s.validateItems(ctx, requested, receiverID, false); err != nil {
		return nil, err
	}

	trade := &models.Trade{
		ID:         uuid.New(),
		ProposerID: proposerID,
		ReceiverID: receiverID,
		Status:     models.TradeStatusPending,
		AwaitingID: receiverID,
		ExpiresAt:  time.Now().Add(ttl),
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Trades.CreateTx(ctx, tx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	if err := s.insertItems(ctx, tx, trade.ID, proposerID, offered); err != nil {
		return nil, err
	}
	if err := s.insertItems(ctx, tx, trade.ID, receiverID, requested); err != nil {
		return nil, err
	}
	if err := s.Audit.Record(ctx, tx, audit.Event{
		TradeID: trade.ID,
		Kind:    audit.KindTradeCreated,
		Payload: map[string]any{"proposer_id": proposerID, "receiver_id": receiverID},
	}); err != nil {
		return nil, fmt.Errorf("record trade audit: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit trade: %w", err)
	}

	s.notify(ctx, receiverID, notify.EventTradeProposed, trade.ID)
	return trade, nil
}

// Respond handles accept, decline, and counter. Only the awaited party may
// respond, and only while the trade is pending and unexpired.
func (s *TradeLifecycleService) Respond(ctx context.Context, tradeID, actorID uuid.UUID, action string, counterItems []ItemSpec) (*models.Trade, error) {
	trade, err := s.loadForParty(ctx, tradeID, actorID)
	if err != nil {
		return nil, err
	}
	if trade.Terminal() {
		return nil, ErrAlreadyResolved
	}
	if actorID != trade.AwaitingID {
		return nil, fmt.Errorf("%w: it is not your turn to respond", ErrForbidden)
	}
	if trade.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: trade has expired", ErrAlreadyResolved)
	}

	switch action {
	case models.RespondAccept:
		return s.accept(ctx, trade)
	case models.RespondDecline:
		return s.decline(ctx, trade)
	case models.RespondCounter:
		return s.counter(ctx, trade, actorID, counterItems)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
}

// CancelTrade withdraws a pending proposal. Only the proposer may cancel.
func (s *TradeLifecycleService) CancelTrade(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	trade, err := s.loadForParty(ctx, tradeID, actorID)
	if err != nil {
		return nil, err
	}
	if actorID != trade.ProposerID {
		return nil, fmt.Errorf("%w: only the proposer may cancel", ErrForbidden)
	}
	if trade.Terminal() {
		return nil, ErrAlreadyResolved
	}
	if err := s.terminate(ctx, trade, models.TradeStatusCancelled, audit.KindTradeCancelled); err != nil {
		return nil, err
	}
	s.notify(ctx, trade.ReceiverID, notify.EventTradeCancelled, trade.ID)
	return trade, nil
}

// GetTrade returns the trade and its items to one of its parties.
func (s *TradeLifecycleService) GetTrade(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, []*models.TradeItem, error) {
	trade, err := s.loadForParty(ctx, tradeID, actorID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.Trades.ItemsByTradeID(ctx, tradeID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch trade items: %w", err)
	}
	return trade, items, nil
}

// ListTrades returns the actor's trades, optionally filtered by status.
func (s *TradeLifecycleService) ListTrades(ctx context.Context, actorID uuid.UUID, status string) ([]*models.Trade, error) {
	if status != "" {
		switch status {
		case models.TradeStatusPending, models.TradeStatusDeclined, models.TradeStatusCancelled,
			models.TradeStatusExpired, models.TradeStatusCompleted:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
	}
	return s.Trades.ListByAccount(ctx, actorID, status)
}

func (s *TradeLifecycleService) accept(ctx context.Context, trade *models.Trade) (*models.Trade, error) {
	err := s.Engine.Settle(ctx, trade.ID)
	if err == nil {
		return s.Trades.GetByID(ctx, trade.ID)
	}
	if errors.Is(err, ErrConflict) {
		// The attempt rolled back in full. The trade itself is now dead:
		// cancel it in a fresh transaction so the caller sees a terminal
		// state, then surface the conflict.
		if cancelErr := s.terminate(ctx, trade, models.TradeStatusCancelled, audit.KindTradeCancelled); cancelErr != nil {
			s.Logger.Error("cancel after settlement conflict failed", "trade_id", trade.ID, "error", cancelErr)
		} else {
			s.notify(ctx, trade.ProposerID, notify.EventTradeCancelled, trade.ID)
			s.notify(ctx, trade.ReceiverID, notify.EventTradeCancelled, trade.ID)
		}
	}
	return nil, err
}

func (s *TradeLifecycleService) decline(ctx context.Context, trade *models.Trade) (*models.Trade, error) {
	if err := s.terminate(ctx, trade, models.TradeStatusDeclined, audit.KindTradeDeclined); err != nil {
		return nil, err
	}
	s.notify(ctx, trade.Counterparty(trade.AwaitingID), notify.EventTradeDeclined, trade.ID)
	return trade, nil
}

func (s *TradeLifecycleService) counter(ctx context.Context, trade *models.Trade, actorID uuid.UUID, items []ItemSpec) (*models.Trade, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: counter-offer must add at least one item", ErrValidation)
	}
	if err := s.validateItems(ctx, items, actorID, true); err != nil {
		return nil, err
	}

	nextAwaiting := trade.Counterparty(actorID)
	expiresAt := time.Now().Add(s.Limits.DefaultTTL)

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin counter tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.Trades.GetByIDForUpdate(ctx, tx, trade.ID)
	if err != nil {
		return nil, fmt.Errorf("lock trade for counter: %w", err)
	}
	if current.Terminal() {
		return nil, ErrAlreadyResolved
	}
	if err := s.insertItems(ctx, tx, trade.ID, actorID, items); err != nil {
		return nil, err
	}
	if err := s.Trades.UpdateForCounterTx(ctx, tx, trade.ID, nextAwaiting, expiresAt); err != nil {
		return nil, fmt.Errorf("flip awaited party: %w", err)
	}
	if err := s.Audit.Record(ctx, tx, audit.Event{
		TradeID: trade.ID,
		Kind:    audit.KindTradeCountered,
		Payload: map[string]any{"by": actorID, "items_added": len(items)},
	}); err != nil {
		return nil, fmt.Errorf("record counter audit: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit counter: %w", err)
	}

	trade.AwaitingID = nextAwaiting
	trade.ExpiresAt = expiresAt
	s.notify(ctx, nextAwaiting, notify.EventTradeCountered, trade.ID)
	return trade, nil
}

// terminate moves a pending trade to a terminal state, releasing any file
// locks it holds. Re-checks pending under the row lock so concurrent
// resolutions cannot double-fire.
func (s *TradeLifecycleService) terminate(ctx context.Context, trade *models.Trade, status, auditKind string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin terminate tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.Trades.GetByIDForUpdate(ctx, tx, trade.ID)
	if err != nil {
		return fmt.Errorf("lock trade: %w", err)
	}
	if current.Terminal() {
		return ErrAlreadyResolved
	}
	if _, err := s.Files.UnlockAllForTrade(ctx, tx, trade.ID); err != nil {
		return fmt.Errorf("release file locks: %w", err)
	}
	if err := s.Trades.UpdateStatusTx(ctx, tx, trade.ID, status); err != nil {
		return fmt.Errorf("set trade status: %w", err)
	}
	if err := s.Audit.Record(ctx, tx, audit.Event{TradeID: trade.ID, Kind: auditKind}); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit terminate: %w", err)
	}
	trade.Status = status
	return nil
}

// validateItems checks bounds on every item and, when checkOwnership is set,
// that each referenced file belongs to owner. Transferability is checked on
// both sides.
func (s *TradeLifecycleService) validateItems(ctx context.Context, items []ItemSpec, owner uuid.UUID, checkOwnership bool) error {
	for _, it := range items {
		if it.CreditsOffered < 0 || it.CashOfferedCents < 0 {
			return fmt.Errorf("%w: amounts must be non-negative", ErrValidation)
		}
		if s.Limits.MaxCreditsPerItem > 0 && it.CreditsOffered > s.Limits.MaxCreditsPerItem {
			return fmt.Errorf("%w: credits exceed per-item maximum", ErrValidation)
		}
		if s.Limits.MaxCashCentsPerItem > 0 && it.CashOfferedCents > s.Limits.MaxCashCentsPerItem {
			return fmt.Errorf("%w: cash exceeds per-item maximum", ErrValidation)
		}
		if it.TrackFileID == nil && it.CreditsOffered == 0 && it.CashOfferedCents == 0 {
			return fmt.Errorf("%w: item offers nothing", ErrValidation)
		}
		if strings.TrimSpace(it.Note) != it.Note {
			return fmt.Errorf("%w: note has leading or trailing whitespace", ErrValidation)
		}
		if it.TrackFileID == nil {
			continue
		}
		f, err := s.Files.GetByID(ctx, *it.TrackFileID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: file %s", ErrNotFound, *it.TrackFileID)
			}
			return fmt.Errorf("fetch file %s: %w", *it.TrackFileID, err)
		}
		if checkOwnership && f.OwnerID != owner {
			return fmt.Errorf("%w: file %s", ErrOwnership, f.ID)
		}
		if !f.Transferable {
			return fmt.Errorf("%w: file %s", ErrNotTransferable, f.ID)
		}
		if f.LockedByTrade != nil {
			return fmt.Errorf("%w: file %s is locked by another trade", ErrConflict, f.ID)
		}
	}
	return nil
}

func (s *TradeLifecycleService) insertItems(ctx context.Context, tx pgx.Tx, tradeID, offeredBy uuid.UUID, items []ItemSpec) error {
	for _, spec := range items {
		it := &models.TradeItem{
			ID:               uuid.New(),
			TradeID:          tradeID,
			OfferedBy:        offeredBy,
			TrackFileID:      spec.TrackFileID,
			CreditsOffered:   spec.CreditsOffered,
			CashOfferedCents: spec.CashOfferedCents,
			Note:             spec.Note,
		}
		if err := s.Trades.CreateItemTx(ctx, tx, it); err != nil {
			return fmt.Errorf("insert trade item: %w", err)
		}
	}
	return nil
}

func (s *TradeLifecycleService) loadForParty(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	trade, err := s.Trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch trade: %w", err)
	}
	if !trade.IsParty(actorID) {
		return nil, ErrForbidden
	}
	return trade, nil
}

func (s *TradeLifecycleService) notify(ctx context.Context, accountID uuid.UUID, kind string, tradeID uuid.UUID) {
	if err := s.Notifier.Notify(ctx, accountID, notify.Event{Kind: kind, TradeID: tradeID}); err != nil {
		s.Logger.Warn("notify failed", "account_id", accountID, "kind", kind, "trade_id", tradeID, "error", err)
	}
}
