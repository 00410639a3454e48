package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/waxswap/backend/internal/audit"
	"github.com/waxswap/backend/internal/ledger"
	"github.com/waxswap/backend/internal/models"
	"github.com/waxswap/backend/internal/notify"
)

// ---------------------------------------------------------------------------
// In-memory mocks. These let us test the real settlement, lifecycle, and
// sweep logic without a database. Shared by the other _test.go files in this
// package.
// ---------------------------------------------------------------------------

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

// --- trade store mock ---

type mockTradeStore struct {
	mu     sync.Mutex
	trades map[uuid.UUID]*models.Trade
	items  map[uuid.UUID][]*models.TradeItem
}

func newMockTradeStore(trades ...*models.Trade) *mockTradeStore {
	m := &mockTradeStore{
		trades: make(map[uuid.UUID]*models.Trade),
		items:  make(map[uuid.UUID][]*models.TradeItem),
	}
	for _, t := range trades {
		cp := *t
		m.trades[t.ID] = &cp
	}
	return m
}

func (m *mockTradeStore) CreateTx(_ context.Context, _ pgx.Tx, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.trades[t.ID] = &cp
	return nil
}

func (m *mockTradeStore) CreateItemTx(_ context.Context, _ pgx.Tx, it *models.TradeItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	cp.CreatedAt = time.Now()
	m.items[it.TradeID] = append(m.items[it.TradeID], &cp)
	return nil
}

func (m *mockTradeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTradeStore) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Trade, error) {
	return m.GetByID(ctx, id)
}

func (m *mockTradeStore) ItemsByTradeID(_ context.Context, tradeID uuid.UUID) ([]*models.TradeItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TradeItem, len(m.items[tradeID]))
	copy(out, m.items[tradeID])
	return out, nil
}

func (m *mockTradeStore) ItemsByTradeIDTx(ctx context.Context, _ pgx.Tx, tradeID uuid.UUID) ([]*models.TradeItem, error) {
	return m.ItemsByTradeID(ctx, tradeID)
}

func (m *mockTradeStore) UpdateStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (m *mockTradeStore) UpdateForCounterTx(_ context.Context, _ pgx.Tx, id, awaitingID uuid.UUID, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.AwaitingID = awaitingID
	t.ExpiresAt = expiresAt
	t.UpdatedAt = time.Now()
	return nil
}

func (m *mockTradeStore) ListByAccount(_ context.Context, accountID uuid.UUID, status string) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for _, t := range m.trades {
		if !t.IsParty(accountID) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockTradeStore) ListExpiredPendingIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, t := range m.trades {
		if t.Status == models.TradeStatusPending && t.Expired(now) {
			ids = append(ids, t.ID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *mockTradeStore) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades[id].Status
}

// --- registry mock ---

type mockRegistry struct {
	mu         sync.Mutex
	files      map[uuid.UUID]*models.TrackFile
	lockDenied map[uuid.UUID]bool
	unlockAll  int
}

func newMockRegistry(files ...*models.TrackFile) *mockRegistry {
	m := &mockRegistry{
		files:      make(map[uuid.UUID]*models.TrackFile),
		lockDenied: make(map[uuid.UUID]bool),
	}
	for _, f := range files {
		cp := *f
		m.files[f.ID] = &cp
	}
	return m
}

func (m *mockRegistry) GetByID(_ context.Context, id uuid.UUID) (*models.TrackFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *f
	return &cp, nil
}

func (m *mockRegistry) GetByIDTx(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.TrackFile, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRegistry) Lock(_ context.Context, _ pgx.Tx, fileID, tradeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if m.lockDenied[fileID] || f.LockedByTrade != nil {
		return false, nil
	}
	id := tradeID
	f.LockedByTrade = &id
	return true, nil
}

func (m *mockRegistry) Unlock(_ context.Context, _ pgx.Tx, fileID, tradeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if ok && f.LockedByTrade != nil && *f.LockedByTrade == tradeID {
		f.LockedByTrade = nil
	}
	return nil
}

func (m *mockRegistry) UnlockAllForTrade(_ context.Context, _ pgx.Tx, tradeID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlockAll++
	var n int64
	for _, f := range m.files {
		if f.LockedByTrade != nil && *f.LockedByTrade == tradeID {
			f.LockedByTrade = nil
			n++
		}
	}
	return n, nil
}

func (m *mockRegistry) ReassignOwner(_ context.Context, _ pgx.Tx, fileID, newOwnerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return pgx.ErrNoRows
	}
	f.OwnerID = newOwnerID
	return nil
}

func (m *mockRegistry) owner(id uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[id].OwnerID
}

func (m *mockRegistry) locked(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[id].LockedByTrade != nil
}

// --- ledger backing mocks (the real ledger.Service runs on top) ---

type mockAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMockAccounts(accs ...*models.Account) *mockAccounts {
	m := &mockAccounts{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *mockAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccounts) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAccounts) DeductCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.CreditBalance < amount {
		return 0, pgx.ErrNoRows
	}
	a.CreditBalance -= amount
	return a.CreditBalance, nil
}

func (m *mockAccounts) AddCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	a.CreditBalance += amount
	return a.CreditBalance, nil
}

func (m *mockAccounts) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].CreditBalance
}

type mockEntries struct {
	mu      sync.Mutex
	entries []*models.CreditTransaction
}

func (m *mockEntries) CreateTx(_ context.Context, _ pgx.Tx, c *models.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockEntries) all() []*models.CreditTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.CreditTransaction, len(m.entries))
	copy(out, m.entries)
	return out
}

// --- grants mock ---

type mockGrants struct {
	mu     sync.Mutex
	grants []*models.AccessGrant
}

func (m *mockGrants) CreateTx(_ context.Context, _ pgx.Tx, g *models.AccessGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.grants = append(m.grants, &cp)
	return nil
}

func (m *mockGrants) all() []*models.AccessGrant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AccessGrant, len(m.grants))
	copy(out, m.grants)
	return out
}

// --- audit mock ---

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *recordingAudit) Record(_ context.Context, _ pgx.Tx, ev audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *recordingAudit) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Kind)
	}
	return out
}

// --- notifier mock ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (m *recordingNotifier) Notify(_ context.Context, accountID uuid.UUID, ev notify.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.AccountID = accountID
	m.events = append(m.events, ev)
	return nil
}

func (m *recordingNotifier) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type settleFixture struct {
	engine   *SettlementEngine
	trades   *mockTradeStore
	registry *mockRegistry
	accounts *mockAccounts
	entries  *mockEntries
	grants   *mockGrants
	audits   *recordingAudit
	notified *recordingNotifier
}

func newSettleFixture(trades []*models.Trade, files []*models.TrackFile, accs []*models.Account) *settleFixture {
	f := &settleFixture{
		trades:   newMockTradeStore(trades...),
		registry: newMockRegistry(files...),
		accounts: newMockAccounts(accs...),
		entries:  &mockEntries{},
		grants:   &mockGrants{},
		audits:   &recordingAudit{},
		notified: &recordingNotifier{},
	}
	ledgerSvc := ledger.NewService(f.accounts, f.entries)
	f.engine = NewSettlementEngine(
		mockPool{}, f.trades, f.registry, ledgerSvc, f.grants, f.audits, f.notified,
		slog.New(slog.DiscardHandler),
	)
	return f
}

func pendingTrade(proposer, receiver uuid.UUID) *models.Trade {
	return &models.Trade{
		ID:         uuid.New(),
		ProposerID: proposer,
		ReceiverID: receiver,
		Status:     models.TradeStatusPending,
		AwaitingID: receiver,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func trackFile(owner uuid.UUID) *models.TrackFile {
	return &models.TrackFile{ID: uuid.New(), OwnerID: owner, Title: "untitled", Transferable: true}
}

func acct(id uuid.UUID, balance int) *models.Account {
	return &models.Account{ID: id, CreditBalance: balance}
}

func item(trade *models.Trade, offeredBy uuid.UUID, fileID *uuid.UUID, credits int) *models.TradeItem {
	return &models.TradeItem{
		ID:             uuid.New(),
		TradeID:        trade.ID,
		OfferedBy:      offeredBy,
		TrackFileID:    fileID,
		CreditsOffered: credits,
	}
}

// ---------------------------------------------------------------------------
// File-for-file swap: both files change hands, grants written, no ledger rows.
// ---------------------------------------------------------------------------

func TestSettleFileForFile(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	fileA := trackFile(alice)
	fileB := trackFile(bob)
	trade := pendingTrade(alice, bob)

	f := newSettleFixture(
		[]*models.Trade{trade},
		[]*models.TrackFile{fileA, fileB},
		[]*models.Account{acct(alice, 0), acct(bob, 0)},
	)
	f.trades.items[trade.ID] = []*models.TradeItem{
		item(trade, alice, &fileA.ID, 0),
		item(trade, bob, &fileB.ID, 0),
	}

	if err := f.engine.Settle(context.Background(), trade.ID); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if got := f.registry.owner(fileA.ID); got != bob {
		t.Errorf("fileA owner: got %s, want bob %s", got, bob)
	}
	if got := f.registry.owner(fileB.ID); got != alice {
		t.Errorf("fileB owner: got %s, want alice %s", got, alice)
	}
	if f.registry.locked(fileA.ID) || f.registry.locked(fileB.ID) {
		t.Error("files should be unlocked after settlement")
	}
	if got := f.trades.status(trade.ID); got != models.TradeStatusCompleted {
		t.Errorf("trade status: got %s, want completed", got)
	}

	grants := f.grants.all()
	if len(grants) != 2 {
		t.Fatalf("grants: got %d, want 2", len(grants))
	}
	for _, g := range grants {
		if g.GrantType != models.GrantTypeTrade {
			t.Errorf("grant type: got %s, want %s", g.GrantType, models.GrantTypeTrade)
		}
		if g.TradeID == nil || *g.TradeID != trade.ID {
			t.Error("grant should reference the trade")
		}
	}

	if n := len(f.entries.all()); n != 0 {
		t.Errorf("ledger entries: got %d, want 0", n)
	}
	if got := f.notified.count(notify.EventTradeCompleted); got != 2 {
		t.Errorf("completed notifications: got %d, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// File plus credits: credits and the file move in opposite directions, and
// balance_after snapshots line up with the moves.
// ---------------------------------------------------------------------------

func TestSettleFilePlusCredits(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	fileB := trackFile(bob)
	trade := pendingTrade(alice, bob)

	f := newSettleFixture(
		[]*models.Trade{trade},
		[]*models.TrackFile{fileB},
		[]*models.Account{acct(alice, 500), acct(bob, 100)},
	)
	f.trades.items[trade.ID] = []*models.TradeItem{
		item(trade, alice, nil, 150),
		item(trade, bob, &fileB.ID, 0),
	}

	if err := f.engine.Settle(context.Background(), trade.ID); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if got := f.accounts.balance(alice); got != 350 {
		t.Errorf("alice balance: got %d, want 350", got)
	}
	if got := f.accounts.balance(bob); got != 250 {
		t.Errorf("bob balance: got %d, want 250", got)
	}
	if got := f.registry.owner(fileB.ID); got != alice {
		t.Errorf("file owner: got %s, want alice %s", got, alice)
	}

	entries := f.entries.all()
	if len(entries) != 2 {
		t.Fatalf("ledger entries: got %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Reason != models.CreditReasonTradeSettlement {
			t.Errorf("entry reason: got %s, want %s", e.Reason, models.CreditReasonTradeSettlement)
		}
		if e.TradeID == nil || *e.TradeID != trade.ID {
			t.Error("entry should reference the trade")
		}
		switch e.AccountID {
		case alice:
			if e.Delta != -150 || e.BalanceAfter != 350 {
				t.Errorf("alice entry: delta %d balance_after %d", e.Delta, e.BalanceAfter)
			}
		case bob:
			if e.Delta != 150 || e.BalanceAfter != 250 {
				t.Errorf("bob entry: delta %d balance_after %d", e.Delta, e.BalanceAfter)
			}
		default:
			t.Errorf("entry for unexpected account %s", e.AccountID)
		}
	}
}

// ---------------------------------------------------------------------------
// Insufficient credits abort the settlement with no balance, ownership,
// grant, or status changes.
// ---------------------------------------------------------------------------

func TestSettleInsufficientCredits(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	fileB := trackFile(bob)
	trade := pendingTrade(alice, bob)

	f := newSettleFixture(
		[]*models.Trade{trade},
		[]*models.TrackFile{fileB},
		[]*models.Account{acct(alice, 50), acct(bob, 100)},
	)
	f.trades.items[trade.ID] = []*models.TradeItem{
		item(trade, alice, nil, 150),
		item(trade, bob, &fileB.ID, 0),
	}

	err := f.engine.Settle(context.Background(), trade.ID)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got: %v", err)
	}

	if got := f.accounts.balance(alice); got != 50 {
		t.Errorf("alice balance changed: got %d, want 50", got)
	}
	if got := f.accounts.balance(bob); got != 100 {
		t.Errorf("bob balance changed: got %d, want 100", got)
	}
	if got := f.registry.owner(fileB.ID); got != bob {
		t.Error("file ownership changed on failed settlement")
	}
	if n := len(f.entries.all()); n != 0 {
		t.Errorf("ledger entries after failed settlement: got %d, want 0", n)
	}
	if n := len(f.grants.all()); n != 0 {
		t.Errorf("grants after failed settlement: got %d, want 0", n)
	}
	if got := f.trades.status(trade.ID); got != models.TradeStatusPending {
		t.Errorf("trade status: got %s, want pending", got)
	}
}

// ---------------------------------------------------------------------------
// A file already locked by another trade fails validation with ErrConflict.
// ---------------------------------------------------------------------------

func TestSettleFileLockedByOtherTrade(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	fileB := trackFile(bob)
	other := uuid.New()
	fileB.LockedByTrade = &other
	trade := pendingTrade(alice, bob)

	f := newSettleFixture(
		[]*models.Trade{trade},
		[]*models.TrackFile{fileB},
		[]*models.Account{acct(alice, 500), acct(bob, 0)},
	)
	f.trades.items[trade.ID] = []*models.TradeItem{
		item(trade, alice, nil, 100),
		item(trade, bob, &fileB.ID, 0),
	}

	err := f.engine.Settle(context.Background(), trade.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
	if got := f.accounts.balance(alice); got != 500 {
		t.Errorf("alice balance changed: got %d, want 500", got)
	}
	if got := f.trades.status(trade.ID); got != models.TradeStatusPending {
		t.Errorf("trade status: got %s, want pending", got)
	}
}

// ---------------------------------------------------------------------------
// Losing the compare-and-set race after validation also yields ErrConflict.
// ---------------------------------------------------------------------------

func TestSettleLostLockRace(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	fileB := trackFile(bob)
	trade := pendingTrade(alice, bob)

	f := newSettleFixture(
		[]*models.Trade{trade},
		[]*models.TrackFile{fileB},
		[]*models.Account{acct(alice, 0), acct(bob, 0)},
	)
	f.registry.lockDenied[fileB.ID] = true
	f.trades.items[trade.ID] = []*models.TradeItem{
		item(trade, bob, &fileB.ID, 0),
	}

	err := f.engine.Settle(context.Background(), trade.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Stale reference: the offering party no longer owns the file.
// ---------------------------------------------------------------------------

func TestSettleStaleOwnership(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()
	fileB := trackFile(carol) // bob sold it elsewhere
	trade := pendingTrade(alice, bob)

	f := newSettleFixture(
		[]*models.Trade{trade},
		[]*models.TrackFile{fileB},
		[]*models.Account{acct(alice, 0), acct(bob, 0)},
	)
	f.trades.items[trade.ID] = []*models.TradeItem{
		item(trade, bob, &fileB.ID, 0),
	}

	err := f.engine.Settle(context.Background(), trade.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
	if got := f.registry.owner(fileB.ID); got != carol {
		t.Error("file ownership changed on failed settlement")
	}
}

// ---------------------------------------------------------------------------
// Terminal and expired trades are rejected before any mutation.
// ---------------------------------------------------------------------------

func TestSettleTerminalTrade(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	trade := pendingTrade(alice, bob)
	trade.Status = models.TradeStatusCompleted

	f := newSettleFixture([]*models.Trade{trade}, nil, nil)

	if err := f.engine.Settle(context.Background(), trade.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got: %v", err)
	}
}

func TestSettleExpiredTrade(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	trade := pendingTrade(alice, bob)
	trade.ExpiresAt = time.Now().Add(-time.Minute)

	f := newSettleFixture([]*models.Trade{trade}, nil, nil)

	if err := f.engine.Settle(context.Background(), trade.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
}

func TestSettleUnknownTrade(t *testing.T) {
	f := newSettleFixture(nil, nil, nil)

	if err := f.engine.Settle(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}
