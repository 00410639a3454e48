package registry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/waxswap/backend/internal/auth"
	"github.com/waxswap/backend/internal/models"
)

type RegisterTrackRequest struct {
	Title        string `json:"title"`
	Transferable *bool  `json:"transferable"`
}

type TrackResponse struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"owner_id"`
	Title         string  `json:"title"`
	Transferable  bool    `json:"transferable"`
	LockedByTrade *string `json:"locked_by_trade,omitempty"`
}

type Handler struct {
	svc     Service
	authSvc auth.Service
	log     *slog.Logger
}

func NewHandler(svc Service, authSvc auth.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, authSvc: authSvc, log: log}
}

func (h *Handler) RegisterTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, err := h.accountIDFromRequest(r)
	if err != nil || ownerID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req RegisterTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	transferable := true
	if req.Transferable != nil {
		transferable = *req.Transferable
	}
	track, err := h.svc.RegisterTrack(r.Context(), ownerID, req.Title, transferable)
	if err != nil {
		h.log.Error("register track failed", "error", err)
		http.Error(w, "register track failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(trackToResponse(track))
}

func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, err := h.accountIDFromRequest(r)
	if err != nil || ownerID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.log.Error("list tracks failed", "error", err)
		http.Error(w, "list tracks failed", http.StatusInternalServerError)
		return
	}
	resp := make([]TrackResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, trackToResponse(t))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, nil
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, nil
	}
	id, err := h.authSvc.ValidateToken(r.Context(), token)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func trackToResponse(t *models.TrackFile) TrackResponse {
	out := TrackResponse{
		ID:           t.ID.String(),
		OwnerID:      t.OwnerID.String(),
		Title:        t.Title,
		Transferable: t.Transferable,
	}
	if t.LockedByTrade != nil {
		s := t.LockedByTrade.String()
		out.LockedByTrade = &s
	}
	return out
}
