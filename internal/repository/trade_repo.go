package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waxswap/backend/internal/models"
)

type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

func (r *TradeRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts the trade row inside the given transaction so trade and
// items commit together.
func (r *TradeRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Trade) error {
	return tx.QueryRow(ctx, `
		INSERT INTO trades (id, proposer_id, receiver_id, status, awaiting_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, t.ID, t.ProposerID, t.ReceiverID, t.Status, t.AwaitingID, t.ExpiresAt).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TradeRepo) CreateItemTx(ctx context.Context, tx pgx.Tx, it *models.TradeItem) error {
	return tx.QueryRow(ctx, `
		INSERT INTO trade_items (id, trade_id, offered_by, track_file_id, credits_offered, cash_offered_cents, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, it.ID, it.TradeID, it.OfferedBy, it.TrackFileID, it.CreditsOffered, it.CashOfferedCents, it.Note).Scan(&it.CreatedAt)
}

func (r *TradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	return scanTrade(r.pool.QueryRow(ctx, `
		SELECT id, proposer_id, receiver_id, status, awaiting_id, expires_at, created_at, updated_at
		FROM trades WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the trade row for the duration of the transaction.
// Settlement, cancellation, and the sweep all serialize on this lock.
func (r *TradeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Trade, error) {
	return scanTrade(tx.QueryRow(ctx, `
		SELECT id, proposer_id, receiver_id, status, awaiting_id, expires_at, created_at, updated_at
		FROM trades WHERE id = $1 FOR UPDATE
	`, id))
}

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(&t.ID, &t.ProposerID, &t.ReceiverID, &t.Status, &t.AwaitingID, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateStatusTx moves the trade to a terminal state inside the transaction.
func (r *TradeRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE trades SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

// UpdateForCounterTx refreshes the expiry and flips who must respond next.
func (r *TradeRepo) UpdateForCounterTx(ctx context.Context, tx pgx.Tx, id, awaitingID uuid.UUID, expiresAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE trades SET awaiting_id = $2, expires_at = $3, updated_at = now() WHERE id = $1
	`, id, awaitingID, expiresAt)
	return err
}

func (r *TradeRepo) ItemsByTradeID(ctx context.Context, tradeID uuid.UUID) ([]*models.TradeItem, error) {
	rows, err := r.pool.Query(ctx, itemsQuery, tradeID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// ItemsByTradeIDTx reads items under the caller's transaction so settlement
// sees the same snapshot it will mutate.
func (r *TradeRepo) ItemsByTradeIDTx(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) ([]*models.TradeItem, error) {
	rows, err := tx.Query(ctx, itemsQuery, tradeID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

const itemsQuery = `
	SELECT id, trade_id, offered_by, track_file_id, credits_offered, cash_offered_cents, note, created_at
	FROM trade_items WHERE trade_id = $1 ORDER BY created_at, id
`

func scanItems(rows pgx.Rows) ([]*models.TradeItem, error) {
	defer rows.Close()
	var list []*models.TradeItem
	for rows.Next() {
		var it models.TradeItem
		if err := rows.Scan(&it.ID, &it.TradeID, &it.OfferedBy, &it.TrackFileID, &it.CreditsOffered, &it.CashOfferedCents, &it.Note, &it.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

// ListByAccount returns trades where the account is proposer or receiver,
// optionally filtered by status.
func (r *TradeRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, status string) ([]*models.Trade, error) {
	q := `
		SELECT id, proposer_id, receiver_id, status, awaiting_id, expires_at, created_at, updated_at
		FROM trades WHERE (proposer_id = $1 OR receiver_id = $1)
	`
	args := []any{accountID}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.ProposerID, &t.ReceiverID, &t.Status, &t.AwaitingID, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// ListExpiredPendingIDs returns ids of pending trades whose TTL elapsed
// before now. The sweep processes each id in its own transaction.
func (r *TradeRepo) ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM trades
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
