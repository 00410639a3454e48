package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit transaction reason enums. The delta sign distinguishes the debit
// and credit sides of a settlement or transfer.
const (
	CreditReasonTradeSettlement = "trade_settlement"
	CreditReasonTransfer        = "transfer"
	CreditReasonPromo           = "promo"
)

// CreditTransaction is one append-only ledger row. Delta is signed; an
// account's current balance is the running sum of its deltas, snapshotted
// in BalanceAfter at write time.
type CreditTransaction struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	TradeID      *uuid.UUID `json:"trade_id,omitempty"`
	Delta        int        `json:"delta"`
	Reason       string     `json:"reason"`
	BalanceAfter int        `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}
