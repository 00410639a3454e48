package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event kinds published to parties of a trade.
const (
	EventTradeProposed  = "trade.proposed"
	EventTradeCountered = "trade.countered"
	EventTradeDeclined  = "trade.declined"
	EventTradeCancelled = "trade.cancelled"
	EventTradeExpired   = "trade.expired"
	EventTradeCompleted = "trade.completed"
	EventCreditsMoved   = "credits.moved"
)

// Event is a notification destined for one user. Delivery transport (web
// socket, email, push) is downstream's concern; this core only publishes.
type Event struct {
	Kind      string    `json:"kind"`
	TradeID   uuid.UUID `json:"trade_id,omitempty"`
	AccountID uuid.UUID `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Gateway delivers events to users. Implementations must be safe for
// concurrent use.
type Gateway interface {
	Notify(ctx context.Context, accountID uuid.UUID, ev Event) error
	Close()
}

// LogGateway writes events to the logger only. Used as the broker fallback
// and in tests.
type LogGateway struct {
	Log *slog.Logger
}

func NewLogGateway(log *slog.Logger) *LogGateway {
	if log == nil {
		log = slog.Default()
	}
	return &LogGateway{Log: log}
}

func (g *LogGateway) Notify(_ context.Context, accountID uuid.UUID, ev Event) error {
	g.Log.Info("notification", "account_id", accountID, "kind", ev.Kind, "trade_id", ev.TradeID)
	return nil
}

func (g *LogGateway) Close() {}
