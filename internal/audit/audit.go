package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds recorded against trades.
const (
	KindTradeCreated   = "trade_created"
	KindTradeCountered = "trade_countered"
	KindTradeDeclined  = "trade_declined"
	KindTradeCancelled = "trade_cancelled"
	KindTradeExpired   = "trade_expired"
	KindTradeSettled   = "trade_settled"
)

// Event is one audit record.
type Event struct {
	TradeID uuid.UUID
	Kind    string
	Payload any
}

// Sink records audit events. The settlement engine writes its record inside
// the settlement transaction so the audit row commits or rolls back with it.
type Sink interface {
	Record(ctx context.Context, tx pgx.Tx, ev Event) error
}

// PGSink persists audit events to the audit_events table.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Record(ctx context.Context, tx pgx.Tx, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	q := `INSERT INTO audit_events (id, trade_id, kind, payload) VALUES ($1, $2, $3, $4)`
	if tx != nil {
		_, err = tx.Exec(ctx, q, uuid.New(), ev.TradeID, ev.Kind, payload)
	} else {
		_, err = s.pool.Exec(ctx, q, uuid.New(), ev.TradeID, ev.Kind, payload)
	}
	return err
}
