package registry

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waxswap/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const trackColumns = `id, owner_id, title, transferable, locked_by_trade, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, t *models.TrackFile) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO track_files (id, owner_id, title, transferable)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, t.ID, t.OwnerID, t.Title, t.Transferable).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.TrackFile, error) {
	return scanTrack(r.pool.QueryRow(ctx, `
		SELECT `+trackColumns+` FROM track_files WHERE id = $1
	`, id))
}

// GetByIDTx reads the file under the caller's transaction so settlement
// validates against the state it is about to mutate.
func (r *Repository) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TrackFile, error) {
	return scanTrack(tx.QueryRow(ctx, `
		SELECT `+trackColumns+` FROM track_files WHERE id = $1
	`, id))
}

func scanTrack(row pgx.Row) (*models.TrackFile, error) {
	var t models.TrackFile
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Transferable, &t.LockedByTrade, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.TrackFile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+trackColumns+` FROM track_files WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TrackFile
	for rows.Next() {
		var t models.TrackFile
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Transferable, &t.LockedByTrade, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// Lock claims the file for a settling trade via compare-and-set: it succeeds
// only if no trade currently holds the lock. Returns false when another
// writer won the race.
func (r *Repository) Lock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE track_files SET locked_by_trade = $1, updated_at = now()
		WHERE id = $2 AND locked_by_trade IS NULL
	`, tradeID, fileID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Unlock releases the file only if the given trade holds the lock.
func (r *Repository) Unlock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE track_files SET locked_by_trade = NULL, updated_at = now()
		WHERE id = $1 AND locked_by_trade = $2
	`, fileID, tradeID)
	return err
}

// UnlockAllForTrade clears every lock held by the trade. Used by cancellation
// and the expiration sweep; a no-op when the trade holds none.
func (r *Repository) UnlockAllForTrade(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE track_files SET locked_by_trade = NULL, updated_at = now()
		WHERE locked_by_trade = $1
	`, tradeID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReassignOwner re-parents the file to its new owner.
func (r *Repository) ReassignOwner(ctx context.Context, tx pgx.Tx, fileID, newOwnerID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE track_files SET owner_id = $1, updated_at = now() WHERE id = $2
	`, newOwnerID, fileID)
	return err
}
