package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory entity.TradeStore. The store mutex is held for
// the whole transaction, giving the same serialization the Postgres row lock
// provides, and writes land on a clone that is only swapped in on success.
type memStore struct {
	mu        sync.Mutex
	accounts  map[string]entity.Account
	positions map[string]entity.Position
	ledger    []entity.LedgerEntry

	failUpsert bool
	failCash   bool
}

func newMemStore(accounts ...entity.Account) *memStore {
	s := &memStore{
		accounts:  make(map[string]entity.Account),
		positions: make(map[string]entity.Position),
	}
	for _, account := range accounts {
		s.accounts[account.ID] = account
	}
	return s
}

func positionKey(accountID string, instrumentID int64) string {
	return fmt.Sprintf("%s|%d", accountID, instrumentID)
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx entity.TradeTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		accounts:  make(map[string]entity.Account, len(s.accounts)),
		positions: make(map[string]entity.Position, len(s.positions)),
		ledger:    append([]entity.LedgerEntry(nil), s.ledger...),
	}
	for k, v := range s.accounts {
		tx.accounts[k] = v
	}
	for k, v := range s.positions {
		tx.positions[k] = v
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.accounts = tx.accounts
	s.positions = tx.positions
	s.ledger = tx.ledger

	return nil
}

func (s *memStore) account(id string) entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *memStore) position(accountID string, instrumentID int64) (entity.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	position, ok := s.positions[positionKey(accountID, instrumentID)]
	return position, ok
}

func (s *memStore) ledgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

type memTx struct {
	store     *memStore
	accounts  map[string]entity.Account
	positions map[string]entity.Position
	ledger    []entity.LedgerEntry
}

func (t *memTx) AccountForUpdate(_ context.Context, accountID string) (*entity.Account, error) {
	account, ok := t.accounts[accountID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &account, nil
}

func (t *memTx) PositionForUpdate(_ context.Context, accountID string, instrumentID int64) (*entity.Position, error) {
	position, ok := t.positions[positionKey(accountID, instrumentID)]
	if !ok {
		return nil, nil
	}
	return &position, nil
}

func (t *memTx) UpdateAccountCash(_ context.Context, accountID string, cash decimal.Decimal) error {
	if t.store.failCash {
		return errors.New("cash write failed")
	}
	account := t.accounts[accountID]
	account.CashBalance = cash
	t.accounts[accountID] = account
	return nil
}

func (t *memTx) UpsertPosition(_ context.Context, position *entity.Position) error {
	if t.store.failUpsert {
		return errors.New("position write failed")
	}
	t.positions[positionKey(position.AccountID, position.InstrumentID)] = *position
	return nil
}

func (t *memTx) DeletePosition(_ context.Context, accountID string, instrumentID int64) error {
	delete(t.positions, positionKey(accountID, instrumentID))
	return nil
}

func (t *memTx) AppendLedgerEntry(_ context.Context, entry *entity.LedgerEntry) error {
	entry.ID = int64(len(t.ledger) + 1)
	t.ledger = append(t.ledger, *entry)
	return nil
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func newAccount(id, cash string) entity.Account {
	return entity.Account{ID: id, Username: id, CashBalance: dec(cash)}
}

const instrumentID = int64(1)

func TestExecuteBuy(t *testing.T) {
	tests := []struct {
		name        string
		startCash   string
		startPos    *entity.Position
		quantity    int64
		price       string
		wantErr     error
		wantCash    string
		wantQty     int64
		wantAvg     string
	}{
		{
			name:      "first buy opens position",
			startCash: "1000",
			quantity:  10,
			price:     "100",
			wantCash:  "0",
			wantQty:   10,
			wantAvg:   "100",
		},
		{
			name:      "second buy blends average cost",
			startCash: "2400",
			startPos:  &entity.Position{AccountID: "acct", InstrumentID: instrumentID, Quantity: 10, AverageCost: dec("100")},
			quantity:  10,
			price:     "120",
			wantCash:  "1200",
			wantQty:   20,
			wantAvg:   "110",
		},
		{
			name:      "insufficient funds",
			startCash: "50",
			quantity:  1,
			price:     "100",
			wantErr:   ErrInsufficientFunds,
			wantCash:  "50",
		},
		{
			name:      "zero quantity rejected",
			startCash: "1000",
			quantity:  0,
			price:     "100",
			wantErr:   ErrInvalidOrder,
			wantCash:  "1000",
		},
		{
			name:      "negative price rejected",
			startCash: "1000",
			quantity:  1,
			price:     "-5",
			wantErr:   ErrInvalidOrder,
			wantCash:  "1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(newAccount("acct", tt.startCash))
			if tt.startPos != nil {
				store.positions[positionKey(tt.startPos.AccountID, tt.startPos.InstrumentID)] = *tt.startPos
			}
			svc := NewSettlementService(store, nil)

			entry, err := svc.ExecuteBuy(context.Background(), "acct", instrumentID, tt.quantity, dec(tt.price))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExecuteBuy error = %v, want %v", err, tt.wantErr)
			}

			gotCash := store.account("acct").CashBalance
			if !gotCash.Equal(dec(tt.wantCash)) {
				t.Errorf("cash = %s, want %s", gotCash, tt.wantCash)
			}

			if tt.wantErr != nil {
				if entry != nil {
					t.Errorf("expected no ledger entry, got %+v", entry)
				}
				wantLedger := 0
				if got := store.ledgerLen(); got != wantLedger {
					t.Errorf("ledger length = %d, want %d", got, wantLedger)
				}
				return
			}

			if entry == nil {
				t.Fatal("expected ledger entry")
			}
			if entry.Side != entity.TradeSideBuy {
				t.Errorf("side = %s, want BUY", entry.Side)
			}
			wantTotal := dec(tt.price).Mul(decimal.NewFromInt(tt.quantity))
			if !entry.TotalAmount.Equal(wantTotal) {
				t.Errorf("total = %s, want %s", entry.TotalAmount, wantTotal)
			}
			if entry.RealizedPnl != nil {
				t.Errorf("buy should not carry realized pnl, got %s", entry.RealizedPnl)
			}

			position, ok := store.position("acct", instrumentID)
			if !ok {
				t.Fatal("expected open position")
			}
			if position.Quantity != tt.wantQty {
				t.Errorf("quantity = %d, want %d", position.Quantity, tt.wantQty)
			}
			if !position.AverageCost.Equal(dec(tt.wantAvg)) {
				t.Errorf("average cost = %s, want %s", position.AverageCost, tt.wantAvg)
			}
		})
	}
}

func TestExecuteSell(t *testing.T) {
	tests := []struct {
		name         string
		startCash    string
		startPos     *entity.Position
		quantity     int64
		price        string
		wantErr      error
		wantCash     string
		wantQty      int64
		wantRemoved  bool
		wantPnl      string
	}{
		{
			name:      "partial sell keeps average cost",
			startCash: "0",
			startPos:  &entity.Position{AccountID: "acct", InstrumentID: instrumentID, Quantity: 20, AverageCost: dec("110")},
			quantity:  15,
			price:     "130",
			wantCash:  "1950",
			wantQty:   5,
			wantPnl:   "300",
		},
		{
			name:        "full liquidation removes position",
			startCash:   "1950",
			startPos:    &entity.Position{AccountID: "acct", InstrumentID: instrumentID, Quantity: 5, AverageCost: dec("110")},
			quantity:    5,
			price:       "110",
			wantCash:    "2500",
			wantRemoved: true,
			wantPnl:     "0",
		},
		{
			name:      "insufficient shares",
			startCash: "0",
			startPos:  &entity.Position{AccountID: "acct", InstrumentID: instrumentID, Quantity: 3, AverageCost: dec("110")},
			quantity:  5,
			price:     "130",
			wantErr:   ErrInsufficientShares,
			wantCash:  "0",
			wantQty:   3,
		},
		{
			name:      "no open position",
			startCash: "0",
			quantity:  1,
			price:     "130",
			wantErr:   ErrInsufficientShares,
			wantCash:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(newAccount("acct", tt.startCash))
			var startAvg decimal.Decimal
			if tt.startPos != nil {
				startAvg = tt.startPos.AverageCost
				store.positions[positionKey(tt.startPos.AccountID, tt.startPos.InstrumentID)] = *tt.startPos
			}
			svc := NewSettlementService(store, nil)

			entry, err := svc.ExecuteSell(context.Background(), "acct", instrumentID, tt.quantity, dec(tt.price))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExecuteSell error = %v, want %v", err, tt.wantErr)
			}

			gotCash := store.account("acct").CashBalance
			if !gotCash.Equal(dec(tt.wantCash)) {
				t.Errorf("cash = %s, want %s", gotCash, tt.wantCash)
			}

			position, open := store.position("acct", instrumentID)

			if tt.wantErr != nil {
				if store.ledgerLen() != 0 {
					t.Errorf("ledger length = %d, want 0", store.ledgerLen())
				}
				if tt.startPos != nil {
					if !open || position.Quantity != tt.wantQty {
						t.Errorf("position changed on failed sell: %+v", position)
					}
				}
				return
			}

			if entry == nil {
				t.Fatal("expected ledger entry")
			}
			if entry.Side != entity.TradeSideSell {
				t.Errorf("side = %s, want SELL", entry.Side)
			}
			if entry.RealizedPnl == nil {
				t.Fatal("sell entry should carry realized pnl")
			}
			if !entry.RealizedPnl.Equal(dec(tt.wantPnl)) {
				t.Errorf("realized pnl = %s, want %s", entry.RealizedPnl, tt.wantPnl)
			}

			if tt.wantRemoved {
				if open {
					t.Errorf("expected position removed, got %+v", position)
				}
				return
			}

			if !open {
				t.Fatal("expected position to remain open")
			}
			if position.Quantity != tt.wantQty {
				t.Errorf("quantity = %d, want %d", position.Quantity, tt.wantQty)
			}
			if !position.AverageCost.Equal(startAvg) {
				t.Errorf("average cost changed on sell: %s -> %s", startAvg, position.AverageCost)
			}
		})
	}
}

func TestAverageCostIsOrderIndependent(t *testing.T) {
	type lot struct {
		quantity int64
		price    string
	}

	lots := []lot{
		{3, "95.50"},
		{10, "100"},
		{7, "112.25"},
		{5, "87"},
	}

	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
	}

	var totalCost decimal.Decimal
	var totalQty int64
	for _, l := range lots {
		totalCost = totalCost.Add(dec(l.price).Mul(decimal.NewFromInt(l.quantity)))
		totalQty += l.quantity
	}
	wantAvg := totalCost.Div(decimal.NewFromInt(totalQty))

	tolerance := decimal.New(1, -10)

	for _, order := range orders {
		store := newMemStore(newAccount("acct", "100000"))
		svc := NewSettlementService(store, nil)

		for _, idx := range order {
			l := lots[idx]
			if _, err := svc.ExecuteBuy(context.Background(), "acct", instrumentID, l.quantity, dec(l.price)); err != nil {
				t.Fatalf("ExecuteBuy failed: %v", err)
			}
		}

		position, ok := store.position("acct", instrumentID)
		if !ok {
			t.Fatal("expected open position")
		}
		if position.AverageCost.Sub(wantAvg).Abs().GreaterThan(tolerance) {
			t.Errorf("order %v: average cost = %s, want %s", order, position.AverageCost, wantAvg)
		}
	}
}

func TestCashConservation(t *testing.T) {
	store := newMemStore(newAccount("acct", "10000"))
	svc := NewSettlementService(store, nil)
	ctx := context.Background()

	type trade struct {
		side     entity.TradeSide
		quantity int64
		price    string
	}

	trades := []trade{
		{entity.TradeSideBuy, 10, "100"},
		{entity.TradeSideBuy, 5, "120"},
		{entity.TradeSideSell, 8, "130"},
		{entity.TradeSideBuy, 3, "90"},
		{entity.TradeSideSell, 10, "105"},
	}

	expected := dec("10000")
	for _, tr := range trades {
		total := dec(tr.price).Mul(decimal.NewFromInt(tr.quantity))
		var err error
		if tr.side == entity.TradeSideBuy {
			_, err = svc.ExecuteBuy(ctx, "acct", instrumentID, tr.quantity, dec(tr.price))
			expected = expected.Sub(total)
		} else {
			_, err = svc.ExecuteSell(ctx, "acct", instrumentID, tr.quantity, dec(tr.price))
			expected = expected.Add(total)
		}
		if err != nil {
			t.Fatalf("trade %+v failed: %v", tr, err)
		}
	}

	gotCash := store.account("acct").CashBalance
	if !gotCash.Equal(expected) {
		t.Errorf("cash = %s, want %s", gotCash, expected)
	}
	if store.ledgerLen() != len(trades) {
		t.Errorf("ledger length = %d, want %d", store.ledgerLen(), len(trades))
	}
}

func TestBuySellRoundTrip(t *testing.T) {
	store := newMemStore(newAccount("acct", "5000"))
	svc := NewSettlementService(store, nil)
	ctx := context.Background()

	if _, err := svc.ExecuteBuy(ctx, "acct", instrumentID, 7, dec("123.45")); err != nil {
		t.Fatalf("ExecuteBuy failed: %v", err)
	}
	if _, err := svc.ExecuteSell(ctx, "acct", instrumentID, 7, dec("123.45")); err != nil {
		t.Fatalf("ExecuteSell failed: %v", err)
	}

	gotCash := store.account("acct").CashBalance
	if !gotCash.Equal(dec("5000")) {
		t.Errorf("cash = %s, want 5000", gotCash)
	}
	if _, open := store.position("acct", instrumentID); open {
		t.Error("expected position removed after round trip")
	}
}

func TestConcurrentSellsCannotOversell(t *testing.T) {
	store := newMemStore(newAccount("acct", "0"))
	store.positions[positionKey("acct", instrumentID)] = entity.Position{
		AccountID:    "acct",
		InstrumentID: instrumentID,
		Quantity:     10,
		AverageCost:  dec("100"),
	}
	svc := NewSettlementService(store, nil)

	const sellers = 4
	errs := make(chan error, sellers)

	var wg sync.WaitGroup
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ExecuteSell(context.Background(), "acct", instrumentID, 10, dec("120"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, ErrInsufficientShares) {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Fatalf("succeeded sells = %d, want exactly 1", succeeded)
	}

	gotCash := store.account("acct").CashBalance
	if !gotCash.Equal(dec("1200")) {
		t.Errorf("cash = %s, want 1200", gotCash)
	}
	if _, open := store.position("acct", instrumentID); open {
		t.Error("expected position removed after the winning sell")
	}
}

func TestPersistenceFailureAppliesNothing(t *testing.T) {
	tests := []struct {
		name string
		prep func(*memStore)
	}{
		{name: "position write fails", prep: func(s *memStore) { s.failUpsert = true }},
		{name: "cash write fails", prep: func(s *memStore) { s.failCash = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(newAccount("acct", "1000"))
			tt.prep(store)
			svc := NewSettlementService(store, nil)

			_, err := svc.ExecuteBuy(context.Background(), "acct", instrumentID, 5, dec("100"))
			if !errors.Is(err, ErrPersistenceFailed) {
				t.Fatalf("error = %v, want %v", err, ErrPersistenceFailed)
			}

			if got := store.account("acct").CashBalance; !got.Equal(dec("1000")) {
				t.Errorf("cash = %s, want 1000", got)
			}
			if store.ledgerLen() != 0 {
				t.Errorf("ledger length = %d, want 0", store.ledgerLen())
			}
			if _, open := store.position("acct", instrumentID); open {
				t.Error("expected no position after failed trade")
			}
		})
	}
}

func TestUnknownAccount(t *testing.T) {
	store := newMemStore()
	svc := NewSettlementService(store, nil)

	_, err := svc.ExecuteBuy(context.Background(), "ghost", instrumentID, 1, dec("10"))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("error = %v, want %v", err, ErrAccountNotFound)
	}
}
