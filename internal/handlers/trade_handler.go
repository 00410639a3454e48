package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/waxswap/backend/internal/middleware"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/services"
)

// TradeService is the lifecycle surface the handler needs.
type TradeService interface {
	CreateTrade(ctx context.Context, proposerID, receiverID uuid.UUID, offered, requested []services.ItemSpec, ttl time.Duration) (*models.Trade, error)
	Respond(ctx context.Context, tradeID, actorID uuid.UUID, action string, counterItems []services.ItemSpec) (*models.Trade, error)
	CancelTrade(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error)
	GetTrade(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, []*models.TradeItem, error)
	ListTrades(ctx context.Context, actorID uuid.UUID, status string) ([]*models.Trade, error)
}

// TradeSweeper expires one batch of overdue pending trades.
type TradeSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// TradeHandler serves /v1/trades endpoints.
type TradeHandler struct {
	Trades  TradeService
	Sweeper TradeSweeper
	Logger  *slog.Logger
}

type itemSpecRequest struct {
	TrackFileID      *string `json:"track_file_id,omitempty"`
	CreditsOffered   int     `json:"credits_offered"`
	CashOfferedCents int     `json:"cash_offered_cents"`
	Note             string  `json:"note,omitempty"`
}

type createTradeRequest struct {
	ReceiverID string            `json:"receiver_id"`
	Offered    []itemSpecRequest `json:"offered_items"`
	Requested  []itemSpecRequest `json:"requested_items"`
	TTLSeconds int               `json:"ttl_seconds"`
}

type respondRequest struct {
	Action       string            `json:"action"`
	CounterItems []itemSpecRequest `json:"counter_items,omitempty"`
}

type tradeResponse struct {
	ID         string              `json:"id"`
	ProposerID string              `json:"proposer_id"`
	ReceiverID string              `json:"receiver_id"`
	Status     string              `json:"status"`
	AwaitingID string              `json:"awaiting_id"`
	ExpiresAt  time.Time           `json:"expires_at"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Items      []*models.TradeItem `json:"items,omitempty"`
}

// CreateTrade handles POST /v1/trades.
func (h *TradeHandler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		http.Error(w, `{"error":"invalid receiver_id"}`, http.StatusBadRequest)
		return
	}
	offered, err := toItemSpecs(req.Offered)
	if err != nil {
		http.Error(w, `{"error":"invalid track_file_id in offered_items"}`, http.StatusBadRequest)
		return
	}
	requested, err := toItemSpecs(req.Requested)
	if err != nil {
		http.Error(w, `{"error":"invalid track_file_id in requested_items"}`, http.StatusBadRequest)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	trade, err := h.Trades.CreateTrade(r.Context(), acc.ID, receiverID, offered, requested, ttl)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tradeToResponse(trade, nil))
}

// Respond handles POST /v1/trades/{id}/respond.
func (h *TradeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tradeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid trade id"}`, http.StatusBadRequest)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	counterItems, err := toItemSpecs(req.CounterItems)
	if err != nil {
		http.Error(w, `{"error":"invalid track_file_id in counter_items"}`, http.StatusBadRequest)
		return
	}

	trade, err := h.Trades.Respond(r.Context(), tradeID, acc.ID, req.Action, counterItems)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeToResponse(trade, nil))
}

// Cancel handles POST /v1/trades/{id}/cancel.
func (h *TradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tradeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid trade id"}`, http.StatusBadRequest)
		return
	}

	trade, err := h.Trades.CancelTrade(r.Context(), tradeID, acc.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeToResponse(trade, nil))
}

// GetTrade handles GET /v1/trades/{id}.
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tradeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid trade id"}`, http.StatusBadRequest)
		return
	}

	trade, items, err := h.Trades.GetTrade(r.Context(), tradeID, acc.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeToResponse(trade, items))
}

// ListTrades handles GET /v1/trades?status=pending.
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	trades, err := h.Trades.ListTrades(r.Context(), acc.ID, r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeToResponse(t, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

// ExpireTrades handles POST /v1/trades/expire. The periodic job runs the
// same sweep; this endpoint exists for manual operation.
func (h *TradeHandler) ExpireTrades(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	expired, err := h.Sweeper.SweepExpired(r.Context())
	if err != nil {
		h.Logger.Error("manual expiration sweep failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

// writeServiceError maps the service error taxonomy to HTTP statuses.
func (h *TradeHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientCredits):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "insufficient credits"})
	case errors.Is(err, services.ErrAlreadyResolved), errors.Is(err, services.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrOwnership), errors.Is(err, services.ErrNotTransferable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.Logger.Error("trade operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func toItemSpecs(reqs []itemSpecRequest) ([]services.ItemSpec, error) {
	specs := make([]services.ItemSpec, 0, len(reqs))
	for _, r := range reqs {
		spec := services.ItemSpec{
			CreditsOffered:   r.CreditsOffered,
			CashOfferedCents: r.CashOfferedCents,
			Note:             r.Note,
		}
		if r.TrackFileID != nil {
			id, err := uuid.Parse(*r.TrackFileID)
			if err != nil {
				return nil, err
			}
			spec.TrackFileID = &id
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func tradeToResponse(t *models.Trade, items []*models.TradeItem) tradeResponse {
	return tradeResponse{
		ID:         t.ID.String(),
		ProposerID: t.ProposerID.String(),
		ReceiverID: t.ReceiverID.String(),
		Status:     t.Status,
		AwaitingID: t.AwaitingID.String(),
		ExpiresAt:  t.ExpiresAt,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		Items:      items,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
