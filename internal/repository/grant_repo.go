package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waxswap/backend/internal/models"
)

type GrantRepo struct {
	pool *pgxpool.Pool
}

func NewGrantRepo(pool *pgxpool.Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

// CreateTx inserts a grant inside the given transaction.
func (r *GrantRepo) CreateTx(ctx context.Context, tx pgx.Tx, g *models.AccessGrant) error {
	return tx.QueryRow(ctx, `
		INSERT INTO access_grants (id, account_id, track_file_id, grant_type, trade_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING granted_at
	`, g.ID, g.AccountID, g.TrackFileID, g.GrantType, g.TradeID).Scan(&g.GrantedAt)
}

func (r *GrantRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.AccessGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, track_file_id, grant_type, trade_id, granted_at
		FROM access_grants WHERE account_id = $1 ORDER BY granted_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.AccessGrant
	for rows.Next() {
		var g models.AccessGrant
		if err := rows.Scan(&g.ID, &g.AccountID, &g.TrackFileID, &g.GrantType, &g.TradeID, &g.GrantedAt); err != nil {
			return nil, err
		}
		list = append(list, &g)
	}
	return list, rows.Err()
}
