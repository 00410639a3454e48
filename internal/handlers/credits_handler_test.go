package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/waxswap/backend/internal/ledger"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/notify"
)

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// --- in-memory ledger ---

type mockLedger struct {
	balances map[uuid.UUID]int
}

func (m *mockLedger) BalanceOf(_ context.Context, accountID uuid.UUID) (int, error) {
	return m.balances[accountID], nil
}

func (m *mockLedger) Transfer(_ context.Context, _ pgx.Tx, from, to uuid.UUID, amount int, _ *uuid.UUID, _ string) error {
	if m.balances[from] < amount {
		return ledger.ErrInsufficientCredits
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, uuid.UUID, notify.Event) error { return nil }

func newCreditsHandler(l *mockLedger) *CreditsHandler {
	return &CreditsHandler{
		Pool:     mockPool{},
		Ledger:   l,
		Notifier: nopNotifier{},
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func TestGetBalance(t *testing.T) {
	alice := &models.Account{ID: uuid.New()}
	h := newCreditsHandler(&mockLedger{balances: map[uuid.UUID]int{alice.ID: 420}})

	rr := httptest.NewRecorder()
	h.GetBalance(rr, authedRequest(http.MethodGet, "/v1/credits/balance", nil, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp balanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Balance != 420 {
		t.Errorf("balance: got %d, want 420", resp.Balance)
	}
}

func TestTransferCredits(t *testing.T) {
	alice := &models.Account{ID: uuid.New()}
	bob := uuid.New()
	l := &mockLedger{balances: map[uuid.UUID]int{alice.ID: 100, bob: 0}}
	h := newCreditsHandler(l)

	body := transferRequest{ToAccountID: bob.String(), Amount: 60}
	rr := httptest.NewRecorder()
	h.Transfer(rr, authedRequest(http.MethodPost, "/v1/credits/transfer", body, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rr.Code, rr.Body.String())
	}
	if l.balances[alice.ID] != 40 || l.balances[bob] != 60 {
		t.Errorf("balances: alice=%d bob=%d, want 40 and 60", l.balances[alice.ID], l.balances[bob])
	}
}

func TestTransferCreditsFailures(t *testing.T) {
	alice := &models.Account{ID: uuid.New()}
	bob := uuid.New()

	cases := []struct {
		name string
		body transferRequest
		want int
	}{
		{"insufficient", transferRequest{ToAccountID: bob.String(), Amount: 500}, http.StatusPaymentRequired},
		{"zero amount", transferRequest{ToAccountID: bob.String(), Amount: 0}, http.StatusBadRequest},
		{"self transfer", transferRequest{ToAccountID: alice.ID.String(), Amount: 10}, http.StatusBadRequest},
		{"bad account id", transferRequest{ToAccountID: "nope", Amount: 10}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &mockLedger{balances: map[uuid.UUID]int{alice.ID: 100}}
			h := newCreditsHandler(l)
			rr := httptest.NewRecorder()
			h.Transfer(rr, authedRequest(http.MethodPost, "/v1/credits/transfer", tc.body, alice))
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
			if l.balances[alice.ID] != 100 {
				t.Errorf("balance changed on failed transfer: got %d", l.balances[alice.ID])
			}
		})
	}
}
