package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/waxswap/backend/internal/auth"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/repository"
)

// Handler serves the account-facing dashboard endpoints: profile, credit
// ledger history, and access grants.
type Handler struct {
	authSvc  auth.Service
	accountR *repository.AccountRepo
	creditR  *repository.CreditRepo
	grantR   *repository.GrantRepo
	log      *slog.Logger
}

func NewHandler(
	authSvc auth.Service,
	accountR *repository.AccountRepo,
	creditR *repository.CreditRepo,
	grantR *repository.GrantRepo,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		authSvc:  authSvc,
		accountR: accountR,
		creditR:  creditR,
		grantR:   grantR,
		log:      log,
	}
}

func (h *Handler) accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, errors.New("missing bearer token")
	}
	token := strings.TrimSpace(authz[len(prefix):])
	return h.authSvc.ValidateToken(r.Context(), token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get account failed", "error", err)
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             acc.ID,
		"email":          acc.Email,
		"display_name":   acc.DisplayName,
		"credit_balance": acc.CreditBalance,
		"created_at":     acc.CreatedAt,
	})
}

// PATCH /api/v1/account/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body struct {
		DisplayName *string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.DisplayName == nil || strings.TrimSpace(*body.DisplayName) == "" {
		http.Error(w, "display_name is required", http.StatusBadRequest)
		return
	}
	if err := h.accountR.UpdateDisplayName(r.Context(), accountID, *body.DisplayName); err != nil {
		h.log.Error("update settings failed", "error", err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/credit-ledger
// Optional ?trade_id= filters to the entries one trade produced.
func (h *Handler) ListCreditLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var entries []*models.CreditTransaction
	if raw := r.URL.Query().Get("trade_id"); raw != "" {
		tradeID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid trade_id", http.StatusBadRequest)
			return
		}
		all, err := h.creditR.ListByTradeID(r.Context(), tradeID)
		if err != nil {
			h.log.Error("list credit ledger by trade failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		// Only the caller's own side of the trade.
		for _, e := range all {
			if e.AccountID == accountID {
				entries = append(entries, e)
			}
		}
	} else {
		entries, err = h.creditR.ListByAccountID(r.Context(), accountID)
		if err != nil {
			h.log.Error("list credit ledger failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	if entries == nil {
		entries = []*models.CreditTransaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/credit-ledger/reconcile
// Recomputes the balance from ledger deltas and compares it to the stored
// balance.
func (h *Handler) ReconcileLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get account for reconcile failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	sum, err := h.creditR.SumDeltas(r.Context(), accountID)
	if err != nil {
		h.log.Error("sum ledger deltas failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	consistent := sum == acc.CreditBalance
	if !consistent {
		h.log.Error("ledger drift detected", "account_id", accountID, "balance", acc.CreditBalance, "ledger_sum", sum)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":    acc.CreditBalance,
		"ledger_sum": sum,
		"consistent": consistent,
	})
}

// GET /api/v1/grants
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	grants, err := h.grantR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list grants failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if grants == nil {
		grants = []*models.AccessGrant{}
	}
	writeJSON(w, http.StatusOK, grants)
}
