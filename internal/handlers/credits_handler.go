package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/waxswap/backend/internal/ledger"
	"github.com/waxswap/backend/internal/middleware"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/notify"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CreditsLedger is the ledger surface the handler needs.
type CreditsLedger interface {
	BalanceOf(ctx context.Context, accountID uuid.UUID) (int, error)
	Transfer(ctx context.Context, tx pgx.Tx, from, to uuid.UUID, amount int, tradeID *uuid.UUID, reason string) error
}

// Notifier delivers an event to one user.
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, ev notify.Event) error
}

// CreditsHandler serves /v1/credits endpoints.
type CreditsHandler struct {
	Pool     TxBeginner
	Ledger   CreditsLedger
	Notifier Notifier
	Logger   *slog.Logger
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int    `json:"balance"`
}

type transferRequest struct {
	ToAccountID string `json:"to_account_id"`
	Amount      int    `json:"amount"`
}

// GetBalance handles GET /v1/credits/balance.
func (h *CreditsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	balance, err := h.Ledger.BalanceOf(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("read balance", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{AccountID: acc.ID.String(), Balance: balance})
}

// Transfer handles POST /v1/credits/transfer — a direct credits move between
// two accounts, outside any trade.
func (h *CreditsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		http.Error(w, `{"error":"invalid to_account_id"}`, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, `{"error":"amount must be > 0"}`, http.StatusBadRequest)
		return
	}
	if toID == acc.ID {
		http.Error(w, `{"error":"cannot transfer to yourself"}`, http.StatusBadRequest)
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin transfer tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Ledger.Transfer(r.Context(), tx, acc.ID, toID, req.Amount, nil, models.CreditReasonTransfer); err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
			return
		}
		h.Logger.Error("transfer credits", "error", err)
		http.Error(w, `{"error":"transfer failed"}`, http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit transfer tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	for _, id := range []uuid.UUID{acc.ID, toID} {
		if err := h.Notifier.Notify(r.Context(), id, notify.Event{Kind: notify.EventCreditsMoved}); err != nil {
			h.Logger.Warn("notify failed", "account_id", id, "error", err)
		}
	}

	balance, err := h.Ledger.BalanceOf(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("read balance after transfer", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{AccountID: acc.ID.String(), Balance: balance})
}
