package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/waxswap/backend/internal/models"
)

// ErrInsufficientCredits is returned when a debit would drive an account's
// balance negative.
var ErrInsufficientCredits = errors.New("insufficient credits")

// AccountStore is the minimal account repository interface the ledger needs.
// Implementations must make DeductCredits conditional on the balance so the
// check and the write are one atomic statement.
type AccountStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	DeductCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// EntryStore appends credit transaction rows.
type EntryStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error
}

// Service is the append-only credits ledger. Every balance mutation writes
// one accounts update plus one credit_transactions row in the same
// transaction, so credit_balance always equals the sum of deltas.
type Service struct {
	Accounts AccountStore
	Entries  EntryStore
}

func NewService(accounts AccountStore, entries EntryStore) *Service {
	return &Service{Accounts: accounts, Entries: entries}
}

// BalanceOf returns the account's current balance.
func (s *Service) BalanceOf(ctx context.Context, accountID uuid.UUID) (int, error) {
	acc, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.CreditBalance, nil
}

// Append writes one signed ledger row within the caller's transaction.
// A negative delta fails with ErrInsufficientCredits rather than taking the
// balance below zero.
func (s *Service) Append(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, delta int, tradeID *uuid.UUID, reason string) (*models.CreditTransaction, error) {
	if delta == 0 {
		return nil, fmt.Errorf("ledger append: zero delta")
	}

	var newBalance int
	var err error
	if delta < 0 {
		newBalance, err = s.Accounts.DeductCredits(ctx, tx, accountID, -delta)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientCredits
		}
	} else {
		newBalance, err = s.Accounts.AddCredits(ctx, tx, accountID, delta)
	}
	if err != nil {
		return nil, err
	}

	entry := &models.CreditTransaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		TradeID:      tradeID,
		Delta:        delta,
		Reason:       reason,
		BalanceAfter: newBalance,
	}
	if err := s.Entries.CreateTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Transfer moves amount from one account to another: one debit row plus one
// credit row, all inside the caller's transaction. Both account rows are
// locked in deterministic order to avoid deadlock between opposing transfers.
func (s *Service) Transfer(ctx context.Context, tx pgx.Tx, from, to uuid.UUID, amount int, tradeID *uuid.UUID, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("ledger transfer: amount must be positive, got %d", amount)
	}
	if from == to {
		return fmt.Errorf("ledger transfer: from and to are the same account")
	}

	ids := []uuid.UUID{from, to}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := s.Accounts.GetByIDForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}

	if _, err := s.Append(ctx, tx, from, -amount, tradeID, reason); err != nil {
		return err
	}
	_, err := s.Append(ctx, tx, to, amount, tradeID, reason)
	return err
}
