package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/waxswap/backend/internal/models"
)

// Service is the track ownership registry: it answers ownership,
// transferability, and lock queries and performs re-parenting. The settlement
// engine is its main consumer.
type Service interface {
	RegisterTrack(ctx context.Context, ownerID uuid.UUID, title string, transferable bool) (*models.TrackFile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.TrackFile, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TrackFile, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.TrackFile, error)
	Lock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) (bool, error)
	Unlock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) error
	UnlockAllForTrade(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (int64, error)
	ReassignOwner(ctx context.Context, tx pgx.Tx, fileID, newOwnerID uuid.UUID) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) *service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) RegisterTrack(ctx context.Context, ownerID uuid.UUID, title string, transferable bool) (*models.TrackFile, error) {
	t := &models.TrackFile{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Title:        strings.TrimSpace(title),
		Transferable: transferable,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.TrackFile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TrackFile, error) {
	return s.repo.GetByIDTx(ctx, tx, id)
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.TrackFile, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) Lock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) (bool, error) {
	return s.repo.Lock(ctx, tx, fileID, tradeID)
}

func (s *service) Unlock(ctx context.Context, tx pgx.Tx, fileID, tradeID uuid.UUID) error {
	return s.repo.Unlock(ctx, tx, fileID, tradeID)
}

func (s *service) UnlockAllForTrade(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID) (int64, error) {
	return s.repo.UnlockAllForTrade(ctx, tx, tradeID)
}

func (s *service) ReassignOwner(ctx context.Context, tx pgx.Tx, fileID, newOwnerID uuid.UUID) error {
	return s.repo.ReassignOwner(ctx, tx, fileID, newOwnerID)
}
