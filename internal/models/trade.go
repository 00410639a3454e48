package models

import (
	"time"

	"github.com/google/uuid"
)

// Trade status enums. pending is the only non-terminal state; counter-offers
// loop pending -> pending with a refreshed expiry.
const (
	TradeStatusPending   = "pending"
	TradeStatusDeclined  = "declined"
	TradeStatusCancelled = "cancelled"
	TradeStatusExpired   = "expired"
	TradeStatusCompleted = "completed"
)

// Respond actions accepted by the lifecycle service.
const (
	RespondAccept  = "accept"
	RespondDecline = "decline"
	RespondCounter = "counter"
)

type Trade struct {
	ID         uuid.UUID `json:"id"`
	ProposerID uuid.UUID `json:"proposer_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Status     string    `json:"status"`
	// AwaitingID is the party whose response is pending. Starts as the
	// receiver and flips to the other party on each counter-offer.
	AwaitingID uuid.UUID `json:"awaiting_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Terminal reports whether the trade is in an immutable end state.
func (t *Trade) Terminal() bool {
	return t.Status != TradeStatusPending
}

// Expired reports whether the trade's TTL has elapsed at the given instant.
func (t *Trade) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Counterparty returns the other side of the trade relative to accountID.
func (t *Trade) Counterparty(accountID uuid.UUID) uuid.UUID {
	if accountID == t.ProposerID {
		return t.ReceiverID
	}
	return t.ProposerID
}

// IsParty reports whether accountID is the proposer or the receiver.
func (t *Trade) IsParty(accountID uuid.UUID) bool {
	return accountID == t.ProposerID || accountID == t.ReceiverID
}

// TradeItem is one unit of value on one side of a trade: a track file,
// a credit amount, an informational cash amount, or any combination.
// Items are appended at creation and during counter rounds, never deleted.
type TradeItem struct {
	ID               uuid.UUID  `json:"id"`
	TradeID          uuid.UUID  `json:"trade_id"`
	OfferedBy        uuid.UUID  `json:"offered_by"`
	TrackFileID      *uuid.UUID `json:"track_file_id,omitempty"`
	CreditsOffered   int        `json:"credits_offered"`
	CashOfferedCents int        `json:"cash_offered_cents"`
	Note             string     `json:"note,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
