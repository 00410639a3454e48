package models

import (
	"time"

	"github.com/google/uuid"
)

// Access grant type enums.
const (
	GrantTypePurchase = "purchase"
	GrantTypeTrade    = "trade"
	GrantTypePromo    = "promo"
)

// TrackFile is an exclusive digital asset. LockedByTrade is a non-owning
// back-reference to the trade currently settling against the file; at most
// one trade may hold it at any instant.
type TrackFile struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	Title         string     `json:"title"`
	Transferable  bool       `json:"transferable"`
	LockedByTrade *uuid.UUID `json:"locked_by_trade,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AccessGrant is the additive historical record of who has held access to a
// file. Grants are never revoked; current ownership lives on TrackFile.
type AccessGrant struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	TrackFileID uuid.UUID  `json:"track_file_id"`
	GrantType   string     `json:"grant_type"`
	TradeID     *uuid.UUID `json:"trade_id,omitempty"`
	GrantedAt   time.Time  `json:"granted_at"`
}
