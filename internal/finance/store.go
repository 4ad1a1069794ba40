// Package finance holds the in-memory view of the transaction log and
// budget ledger, kept in lockstep with a storage backend. All mutations
// persist first and commit to memory only once the backend accepted the
// write, so a crashed request never leaves memory ahead of disk.
package finance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// State is a point-in-time snapshot. Transactions are most-recent-first,
// Budgets carry one row per expense category.
type State struct {
	Transactions []core.Transaction
	Budgets      []core.BudgetItem
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Category string
	Type     core.TransactionType
}

// AddParams describes a transaction to record. A zero Date means today.
type AddParams struct {
	Amount      core.Money
	Description string
	Category    string
	Date        core.Date
	Type        core.TransactionType
}

// Store coordinates the transaction log and budget ledger over a
// persistence backend.
type Store struct {
	mu      sync.RWMutex
	state   State
	backend storage.Store
	now     func() time.Time
	newID   func() string
	subs    []func(State)
	logger  *slog.Logger
}

// Open loads persisted state from the backend and materializes a budget
// row for every expense category that has none yet.
func Open(ctx context.Context, backend storage.Store, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	txns, err := backend.LoadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	budgets, err := backend.LoadBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}

	s := &Store{
		state: State{
			Transactions: txns,
			Budgets:      materializeBudgets(budgets),
		},
		backend: backend,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger,
	}

	logger.Info("Loaded finance state",
		"transactions", len(s.state.Transactions),
		"budgets", len(s.state.Budgets))
	return s, nil
}

// materializeBudgets orders persisted rows by the canonical category list
// and fills in zero rows for expense categories the backend had no row
// for. Rows for ad hoc categories are appended after the canonical ones.
func materializeBudgets(persisted []core.BudgetItem) []core.BudgetItem {
	byCategory := make(map[string]core.BudgetItem, len(persisted))
	for _, b := range persisted {
		byCategory[b.Category] = b
	}

	out := make([]core.BudgetItem, 0, len(persisted))
	for _, cat := range core.ExpenseCategories() {
		if b, ok := byCategory[cat]; ok {
			out = append(out, b)
		} else {
			out = append(out, core.BudgetItem{Category: cat})
		}
		delete(byCategory, cat)
	}
	for _, b := range persisted {
		if _, ok := byCategory[b.Category]; ok {
			out = append(out, b)
			delete(byCategory, b.Category)
		}
	}
	return out
}

// Add validates and records a new transaction. An expense credits its
// category's spent figure in the budget ledger.
func (s *Store) Add(ctx context.Context, p AddParams) (core.Transaction, error) {
	date := p.Date
	if date.IsZero() {
		date = core.DateOf(s.now())
	}

	t := core.Transaction{
		ID:          s.newID(),
		Amount:      p.Amount,
		Description: p.Description,
		Category:    core.NormalizeCategory(p.Category),
		Date:        date,
		Type:        p.Type,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.backend.InsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("persist transaction: %w", err)
	}
	if t.Type == core.Expense {
		if err := s.backend.AddSpent(ctx, t.Category, t.Amount.Cents); err != nil {
			// Undo the insert so the backend never holds a transaction
			// whose spend was not credited.
			if delErr := s.backend.DeleteTransaction(ctx, t.ID); delErr != nil {
				s.logger.Error("Rollback of uncredited transaction failed",
					"id", t.ID, "error", delErr)
			}
			return core.Transaction{}, fmt.Errorf("persist budget update: %w", err)
		}
	}

	s.mu.Lock()
	s.state.Transactions = prepend(s.state.Transactions, t)
	if t.Type == core.Expense {
		s.state.Budgets = creditSpent(s.state.Budgets, t.Category, t.Amount)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("Transaction recorded",
		"id", t.ID,
		"type", string(t.Type),
		"category", t.Category,
		"amount_cents", t.Amount.Cents)
	s.notify(snap)
	return t, nil
}

// Remove deletes a transaction by id. Removing an unknown id is a no-op.
// Removing an expense refunds its category's spent figure, floored at
// zero.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.RLock()
	removed, found := findTransaction(s.state.Transactions, id)
	s.mu.RUnlock()
	if !found {
		return nil
	}

	if err := s.backend.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("persist delete: %w", err)
	}
	if removed.Type == core.Expense {
		if err := s.backend.AddSpent(ctx, removed.Category, -removed.Amount.Cents); err != nil {
			return fmt.Errorf("persist budget update: %w", err)
		}
	}

	s.mu.Lock()
	s.state.Transactions = removeTransaction(s.state.Transactions, id)
	if removed.Type == core.Expense {
		s.state.Budgets = debitSpent(s.state.Budgets, removed.Category, removed.Amount)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("Transaction removed", "id", id, "category", removed.Category)
	s.notify(snap)
	return nil
}

// SetBudget overwrites the budgeted target for a category. Zero is a
// valid target, negative amounts are rejected before any state changes.
func (s *Store) SetBudget(ctx context.Context, category string, amount core.Money) error {
	if amount.Cents < 0 {
		return core.ErrInvalidAmount
	}
	category = core.NormalizeCategory(category)
	if category == "" {
		return core.ErrEmptyCategory
	}

	if err := s.backend.SetBudgeted(ctx, category, amount); err != nil {
		return fmt.Errorf("persist budget: %w", err)
	}

	s.mu.Lock()
	s.state.Budgets = setBudgeted(s.state.Budgets, category, amount)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("Budget updated", "category", category, "budgeted_cents", amount.Cents)
	s.notify(snap)
	return nil
}

// Reload replaces the in-memory state with what the backend holds.
// Used after out-of-band writes such as statement ingestion.
func (s *Store) Reload(ctx context.Context) error {
	txns, err := s.backend.LoadTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	budgets, err := s.backend.LoadBudgets(ctx)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}

	s.mu.Lock()
	s.state = State{
		Transactions: txns,
		Budgets:      materializeBudgets(budgets),
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// List returns matching transactions, most-recent-first. The returned
// slice is the caller's to keep.
func (s *Store) List(f Filter) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Transaction, 0, len(s.state.Transactions))
	for _, t := range s.state.Transactions {
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Budgets returns a copy of the budget ledger.
func (s *Store) Budgets() []core.BudgetItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.BudgetItem, len(s.state.Budgets))
	copy(out, s.state.Budgets)
	return out
}

// Snapshot returns a copy of the full state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Totals computes income and expense sums over the current log.
func (s *Store) Totals() core.Totals {
	return core.TotalsByType(s.List(Filter{}))
}

// Breakdown computes the top-N expense categories over the current log.
func (s *Store) Breakdown(topN int) []core.CategoryAmount {
	return core.CategoryBreakdown(s.List(Filter{}), topN)
}

// Trend computes the dense month-by-month series ending at the current
// month.
func (s *Store) Trend(monthsBack int) []core.MonthPoint {
	return core.MonthlyTrend(s.List(Filter{}), monthsBack, s.now())
}

// Subscribe registers fn to be called with a state snapshot after every
// committed mutation. Callbacks run on the mutating goroutine.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) snapshotLocked() State {
	snap := State{
		Transactions: make([]core.Transaction, len(s.state.Transactions)),
		Budgets:      make([]core.BudgetItem, len(s.state.Budgets)),
	}
	copy(snap.Transactions, s.state.Transactions)
	copy(snap.Budgets, s.state.Budgets)
	return snap
}

func (s *Store) notify(snap State) {
	s.mu.RLock()
	subs := s.subs
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func prepend(txns []core.Transaction, t core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns)+1)
	out = append(out, t)
	return append(out, txns...)
}

func findTransaction(txns []core.Transaction, id string) (core.Transaction, bool) {
	for _, t := range txns {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

func removeTransaction(txns []core.Transaction, id string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func creditSpent(budgets []core.BudgetItem, category string, amount core.Money) []core.BudgetItem {
	out := make([]core.BudgetItem, len(budgets))
	copy(out, budgets)
	for i := range out {
		if out[i].Category == category {
			out[i].Spent = out[i].Spent.Add(amount)
			return out
		}
	}
	return append(out, core.BudgetItem{Category: category, Spent: amount})
}

func debitSpent(budgets []core.BudgetItem, category string, amount core.Money) []core.BudgetItem {
	out := make([]core.BudgetItem, len(budgets))
	copy(out, budgets)
	for i := range out {
		if out[i].Category == category {
			out[i].Spent = out[i].Spent.SubClamped(amount)
			return out
		}
	}
	return out
}

func setBudgeted(budgets []core.BudgetItem, category string, amount core.Money) []core.BudgetItem {
	out := make([]core.BudgetItem, len(budgets))
	copy(out, budgets)
	for i := range out {
		if out[i].Category == category {
			out[i].Budgeted = amount
			return out
		}
	}
	return append(out, core.BudgetItem{Category: category, Budgeted: amount})
}
