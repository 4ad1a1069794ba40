package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// fakeBackend is an in-memory storage.Store with failure injection.
type fakeBackend struct {
	txns    []core.Transaction
	budgets map[string]*core.BudgetItem

	failInsert   bool
	failDelete   bool
	failAddSpent bool
	failSet      bool

	inserts int
	deletes int
}

var errBackendDown = errors.New("backend down")

func newFakeBackend() *fakeBackend {
	return &fakeBackend{budgets: make(map[string]*core.BudgetItem)}
}

func (f *fakeBackend) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	out := make([]core.Transaction, len(f.txns))
	copy(out, f.txns)
	return out, nil
}

func (f *fakeBackend) LoadBudgets(ctx context.Context) ([]core.BudgetItem, error) {
	var out []core.BudgetItem
	for _, b := range f.budgets {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBackend) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if f.failInsert {
		return errBackendDown
	}
	f.inserts++
	f.txns = append([]core.Transaction{t}, f.txns...)
	return nil
}

func (f *fakeBackend) InsertTransactions(ctx context.Context, txns []core.Transaction) error {
	if f.failInsert {
		return errBackendDown
	}
	f.txns = append(txns, f.txns...)
	return nil
}

func (f *fakeBackend) DeleteTransaction(ctx context.Context, id string) error {
	if f.failDelete {
		return errBackendDown
	}
	f.deletes++
	for i, t := range f.txns {
		if t.ID == id {
			f.txns = append(f.txns[:i], f.txns[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) SetBudgeted(ctx context.Context, category string, amount core.Money) error {
	if f.failSet {
		return errBackendDown
	}
	b, ok := f.budgets[category]
	if !ok {
		b = &core.BudgetItem{Category: category}
		f.budgets[category] = b
	}
	b.Budgeted = amount
	return nil
}

func (f *fakeBackend) AddSpent(ctx context.Context, category string, deltaCents int64) error {
	if f.failAddSpent {
		return errBackendDown
	}
	b, ok := f.budgets[category]
	if !ok {
		b = &core.BudgetItem{Category: category}
		f.budgets[category] = b
	}
	b.Spent.Cents += deltaCents
	if b.Spent.Cents < 0 {
		b.Spent.Cents = 0
	}
	return nil
}

func (f *fakeBackend) SaveStatement(ctx context.Context, st storage.Statement) error { return nil }
func (f *fakeBackend) GetStatement(ctx context.Context, id string) (storage.Statement, error) {
	return storage.Statement{}, storage.ErrStatementNotFound
}
func (f *fakeBackend) ListStatements(ctx context.Context) ([]storage.Statement, error) {
	return nil, nil
}
func (f *fakeBackend) ListUnprocessedStatements(ctx context.Context, limit int) ([]storage.Statement, error) {
	return nil, nil
}
func (f *fakeBackend) MarkStatementProcessed(ctx context.Context, id string, extracted int) error {
	return nil
}
func (f *fakeBackend) Close() error { return nil }

func openTestStore(t *testing.T, backend storage.Store) *Store {
	t.Helper()
	s, err := Open(context.Background(), backend, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.now = func() time.Time { return time.Date(2025, time.August, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestAddRecordsTransaction(t *testing.T) {
	backend := newFakeBackend()
	s := openTestStore(t, backend)

	got, err := s.Add(context.Background(), AddParams{
		Amount:      core.Money{Cents: 4550},
		Description: "Weekly groceries",
		Category:    "Food & Dining",
		Type:        core.Expense,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got.ID == "" {
		t.Error("Add() assigned empty id")
	}
	if got.Date.String() != "2025-08-15" {
		t.Errorf("Add() defaulted date = %s, want 2025-08-15", got.Date)
	}

	list := s.List(Filter{})
	if len(list) != 1 || list[0].ID != got.ID {
		t.Fatalf("List() = %v, want the new transaction first", list)
	}

	for _, b := range s.Budgets() {
		if b.Category == "Food & Dining" && b.Spent.Cents != 4550 {
			t.Errorf("budget spent = %d, want 4550", b.Spent.Cents)
		}
	}
	if backend.inserts != 1 {
		t.Errorf("backend inserts = %d, want 1", backend.inserts)
	}
}

func TestAddOrdersMostRecentFirst(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	first, _ := s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 100}, Description: "first", Category: "Other", Type: core.Expense,
	})
	second, _ := s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 200}, Description: "second", Category: "Other", Type: core.Expense,
	})

	list := s.List(Filter{})
	if len(list) != 2 {
		t.Fatalf("List() length = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("List() order = [%s %s], want newest first", list[0].Description, list[1].Description)
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name    string
		params  AddParams
		wantErr error
	}{
		{
			name: "zero amount",
			params: AddParams{
				Amount: core.Money{}, Description: "x", Category: "Other", Type: core.Expense,
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			params: AddParams{
				Amount: core.Money{Cents: -500}, Description: "x", Category: "Other", Type: core.Expense,
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "blank description",
			params: AddParams{
				Amount: core.Money{Cents: 100}, Description: "   ", Category: "Other", Type: core.Expense,
			},
			wantErr: core.ErrEmptyDescription,
		},
		{
			name: "blank category",
			params: AddParams{
				Amount: core.Money{Cents: 100}, Description: "x", Category: "", Type: core.Expense,
			},
			wantErr: core.ErrEmptyCategory,
		},
		{
			name: "unknown type",
			params: AddParams{
				Amount: core.Money{Cents: 100}, Description: "x", Category: "Other", Type: "transfer",
			},
			wantErr: core.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			s := openTestStore(t, backend)

			_, err := s.Add(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() error = %v, want %v", err, tt.wantErr)
			}
			if backend.inserts != 0 {
				t.Errorf("backend inserts = %d, want 0 after rejected input", backend.inserts)
			}
			if len(s.List(Filter{})) != 0 {
				t.Error("rejected Add() changed the log")
			}
		})
	}
}

func TestAddPersistFailureLeavesMemoryUntouched(t *testing.T) {
	backend := newFakeBackend()
	backend.failInsert = true
	s := openTestStore(t, backend)

	_, err := s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 100}, Description: "x", Category: "Other", Type: core.Expense,
	})
	if !errors.Is(err, errBackendDown) {
		t.Fatalf("Add() error = %v, want backend failure", err)
	}
	if len(s.List(Filter{})) != 0 {
		t.Error("failed Add() changed the log")
	}
	for _, b := range s.Budgets() {
		if b.Spent.Cents != 0 {
			t.Errorf("failed Add() changed budget %s", b.Category)
		}
	}
}

func TestAddBudgetWriteFailureRollsBackInsert(t *testing.T) {
	backend := newFakeBackend()
	s := openTestStore(t, backend)
	backend.failAddSpent = true

	_, err := s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 4550}, Description: "groceries", Category: "Food & Dining", Type: core.Expense,
	})
	if !errors.Is(err, errBackendDown) {
		t.Fatalf("Add() error = %v, want backend failure", err)
	}
	if backend.inserts != 1 {
		t.Errorf("inserts = %d, want 1 (insert happens before the budget write)", backend.inserts)
	}
	if backend.deletes != 1 {
		t.Errorf("deletes = %d, want 1 (compensating delete)", backend.deletes)
	}
	if len(backend.txns) != 0 {
		t.Errorf("backend kept %d transactions after rollback", len(backend.txns))
	}
	if len(s.List(Filter{})) != 0 {
		t.Error("failed Add() changed the log")
	}

	// A store reopened from this backend must see spent figures that
	// match the surviving expense transactions.
	backend.failAddSpent = false
	s2 := openTestStore(t, backend)
	if n := len(s2.List(Filter{})); n != 0 {
		t.Errorf("reopened store has %d transactions, want 0", n)
	}
	for _, b := range s2.Budgets() {
		if b.Spent.Cents != 0 {
			t.Errorf("reopened store has spent=%d for %s, want 0", b.Spent.Cents, b.Category)
		}
	}
}

func TestReloadPicksUpIngestedTransactions(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := openTestStore(t, backend)

	// The statement worker writes straight into the backend, bypassing
	// this store.
	ingested := core.Transaction{
		ID:          "ing-1",
		Amount:      core.Money{Cents: 4567},
		Description: "GROCERY STORE",
		Category:    "Food & Dining",
		Date:        core.NewDate(2024, time.January, 16),
		Type:        core.Expense,
	}
	if err := backend.InsertTransactions(ctx, []core.Transaction{ingested}); err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}
	if err := backend.AddSpent(ctx, "Food & Dining", 4567); err != nil {
		t.Fatalf("AddSpent() error = %v", err)
	}

	if len(s.List(Filter{})) != 0 {
		t.Fatal("out-of-band write visible before Reload()")
	}

	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	list := s.List(Filter{})
	if len(list) != 1 || list[0].ID != "ing-1" {
		t.Fatalf("Reload() log = %+v, want the ingested transaction", list)
	}
	for _, b := range s.Budgets() {
		if b.Category == "Food & Dining" && b.Spent.Cents != 4567 {
			t.Errorf("Reload() spent = %d for Food & Dining, want 4567", b.Spent.Cents)
		}
	}
}

func TestRemoveRefundsBudget(t *testing.T) {
	backend := newFakeBackend()
	s := openTestStore(t, backend)

	tx, _ := s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 4550}, Description: "groceries", Category: "Food & Dining", Type: core.Expense,
	})

	if err := s.Remove(context.Background(), tx.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(s.List(Filter{})) != 0 {
		t.Error("Remove() left the transaction in the log")
	}
	for _, b := range s.Budgets() {
		if b.Category == "Food & Dining" && b.Spent.Cents != 0 {
			t.Errorf("budget spent = %d after refund, want 0", b.Spent.Cents)
		}
	}
}

func TestRemoveUnknownIDIsNoOp(t *testing.T) {
	backend := newFakeBackend()
	s := openTestStore(t, backend)

	if err := s.Remove(context.Background(), "no-such-id"); err != nil {
		t.Fatalf("Remove() error = %v, want nil", err)
	}
	if backend.deletes != 0 {
		t.Errorf("backend deletes = %d, want 0 for unknown id", backend.deletes)
	}
}

func TestSetBudget(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	if err := s.SetBudget(context.Background(), "Food & Dining", core.Money{Cents: 50000}); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}

	var found bool
	for _, b := range s.Budgets() {
		if b.Category == "Food & Dining" {
			found = true
			if b.Budgeted.Cents != 50000 {
				t.Errorf("budgeted = %d, want 50000", b.Budgeted.Cents)
			}
		}
	}
	if !found {
		t.Error("budget row missing after SetBudget()")
	}
}

func TestSetBudgetZeroAllowedNegativeRejected(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	if err := s.SetBudget(context.Background(), "Shopping", core.Money{Cents: 0}); err != nil {
		t.Errorf("SetBudget(0) error = %v, want nil", err)
	}
	err := s.SetBudget(context.Background(), "Shopping", core.Money{Cents: -100})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("SetBudget(-100) error = %v, want ErrInvalidAmount", err)
	}
}

func TestOverBudgetScenario(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	if err := s.SetBudget(context.Background(), "Entertainment", core.Money{Cents: 1000}); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if _, err := s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 1599}, Description: "Streaming", Category: "Entertainment", Type: core.Expense,
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	for _, b := range s.Budgets() {
		if b.Category == "Entertainment" {
			if !b.Over() {
				t.Errorf("Over() = false with spent %d over budget %d", b.Spent.Cents, b.Budgeted.Cents)
			}
			if b.Remaining().Cents != 0 {
				t.Errorf("Remaining() = %d, want 0 when over budget", b.Remaining().Cents)
			}
		}
	}
}

func TestIncomeDoesNotTouchBudgets(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	if _, err := s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 350000}, Description: "Monthly salary", Category: "Salary", Type: core.Income,
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	for _, b := range s.Budgets() {
		if b.Spent.Cents != 0 {
			t.Errorf("income credit leaked into budget %s", b.Category)
		}
	}
}

func TestMaterializeBudgets(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	budgets := s.Budgets()
	want := core.ExpenseCategories()
	if len(budgets) != len(want) {
		t.Fatalf("Budgets() length = %d, want %d", len(budgets), len(want))
	}
	for i, cat := range want {
		if budgets[i].Category != cat {
			t.Errorf("Budgets()[%d] = %s, want %s", i, budgets[i].Category, cat)
		}
		if budgets[i].Budgeted.Cents != 0 || budgets[i].Spent.Cents != 0 {
			t.Errorf("materialized budget %s not zeroed", cat)
		}
	}
}

func TestListFilters(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 100}, Description: "a", Category: "Other", Type: core.Expense,
	})
	s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 200}, Description: "b", Category: "Salary", Type: core.Income,
	})

	if got := len(s.List(Filter{Type: core.Income})); got != 1 {
		t.Errorf("List(income) length = %d, want 1", got)
	}
	if got := len(s.List(Filter{Category: "Other"})); got != 1 {
		t.Errorf("List(Other) length = %d, want 1", got)
	}
	if got := len(s.List(Filter{Category: "Travel"})); got != 0 {
		t.Errorf("List(Travel) length = %d, want 0", got)
	}
}

func TestSubscribeNotified(t *testing.T) {
	s := openTestStore(t, newFakeBackend())

	var got []State
	s.Subscribe(func(st State) { got = append(got, st) })

	s.Add(context.Background(), AddParams{
		Amount: core.Money{Cents: 100}, Description: "a", Category: "Other", Type: core.Expense,
	})
	s.SetBudget(context.Background(), "Other", core.Money{Cents: 5000})

	if len(got) != 2 {
		t.Fatalf("subscriber called %d times, want 2", len(got))
	}
	if len(got[0].Transactions) != 1 {
		t.Errorf("first notification carried %d transactions, want 1", len(got[0].Transactions))
	}
}
