package main

import (
	"log/slog"
	"net/http"

	"github.com/waxswap/backend/internal/handlers"
	"github.com/waxswap/backend/internal/middleware"
	"github.com/waxswap/backend/internal/repository"
	"github.com/waxswap/backend/internal/services"
)

// RegisterV1Routes adds the /v1/ trade and credits endpoints to the given mux.
// Middleware chain: JWTAuth -> handler.
func RegisterV1Routes(
	mux *http.ServeMux,
	lifecycle *services.TradeLifecycleService,
	sweeper handlers.TradeSweeper,
	credits handlers.CreditsLedger,
	pool handlers.TxBeginner,
	notifier handlers.Notifier,
	validator middleware.TokenValidator,
	accountRepo *repository.AccountRepo,
	logger *slog.Logger,
) {
	th := &handlers.TradeHandler{
		Trades:  lifecycle,
		Sweeper: sweeper,
		Logger:  logger,
	}
	ch := &handlers.CreditsHandler{
		Pool:     pool,
		Ledger:   credits,
		Notifier: notifier,
		Logger:   logger,
	}

	auth := middleware.JWTAuth(validator, accountRepo)

	mux.Handle("POST /v1/trades", auth(http.HandlerFunc(th.CreateTrade)))
	mux.Handle("GET /v1/trades", auth(http.HandlerFunc(th.ListTrades)))
	mux.Handle("GET /v1/trades/{id}", auth(http.HandlerFunc(th.GetTrade)))
	mux.Handle("POST /v1/trades/{id}/respond", auth(http.HandlerFunc(th.Respond)))
	mux.Handle("POST /v1/trades/{id}/cancel", auth(http.HandlerFunc(th.Cancel)))
	mux.Handle("POST /v1/trades/expire", auth(http.HandlerFunc(th.ExpireTrades)))

	mux.Handle("GET /v1/credits/balance", auth(http.HandlerFunc(ch.GetBalance)))
	mux.Handle("POST /v1/credits/transfer", auth(http.HandlerFunc(ch.Transfer)))
}
