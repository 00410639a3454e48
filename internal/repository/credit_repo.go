package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waxswap/backend/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// CreateTx appends a ledger row inside the given transaction.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, account_id, trade_id, delta, reason, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.AccountID, c.TradeID, c.Delta, c.Reason, c.BalanceAfter).Scan(&c.CreatedAt)
}

func (r *CreditRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, trade_id, delta, reason, balance_after, created_at
		FROM credit_transactions WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return scanCreditRows(rows)
}

func (r *CreditRepo) ListByTradeID(ctx context.Context, tradeID uuid.UUID) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, trade_id, delta, reason, balance_after, created_at
		FROM credit_transactions WHERE trade_id = $1 ORDER BY created_at
	`, tradeID)
	if err != nil {
		return nil, err
	}
	return scanCreditRows(rows)
}

// SumDeltas recomputes the balance from the ledger. Used by reconciliation,
// not by write paths.
func (r *CreditRepo) SumDeltas(ctx context.Context, accountID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM credit_transactions WHERE account_id = $1
	`, accountID).Scan(&total)
	return total, err
}

func scanCreditRows(rows pgx.Rows) ([]*models.CreditTransaction, error) {
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.AccountID, &c.TradeID, &c.Delta, &c.Reason, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
