package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func sameDayTransaction(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Amount:      core.Money{Cents: cents},
		Description: "entry " + id,
		Category:    "Other",
		Date:        core.NewDate(2025, time.August, 15),
		Type:        core.Expense,
	}
}

func TestSameDateInsertsKeepOrderAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openTestStore(t, dir)

	// All on the same date, inserted within the same second: the order
	// must survive a reopen regardless of created_at resolution.
	for _, id := range []string{"first", "second", "third"} {
		if err := s.InsertTransaction(ctx, sameDayTransaction(id, 100)); err != nil {
			t.Fatalf("InsertTransaction(%s): %v", id, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2 := openTestStore(t, dir)
	defer s2.Close()
	txns, err := s2.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}
	wantOrder := []string{"third", "second", "first"}
	if len(txns) != len(wantOrder) {
		t.Fatalf("got %d transactions, want %d", len(txns), len(wantOrder))
	}
	for i, id := range wantOrder {
		if txns[i].ID != id {
			t.Errorf("txns[%d].ID = %q, want %q", i, txns[i].ID, id)
		}
	}
}

func TestBatchInsertKeepsHeadOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	if err := s.InsertTransaction(ctx, sameDayTransaction("old", 100)); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	batch := []core.Transaction{
		sameDayTransaction("batch-1", 200),
		sameDayTransaction("batch-2", 300),
	}
	if err := s.InsertTransactions(ctx, batch); err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}

	txns, err := s.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}
	wantOrder := []string{"batch-1", "batch-2", "old"}
	if len(txns) != len(wantOrder) {
		t.Fatalf("got %d transactions, want %d", len(txns), len(wantOrder))
	}
	for i, id := range wantOrder {
		if txns[i].ID != id {
			t.Errorf("txns[%d].ID = %q, want %q", i, txns[i].ID, id)
		}
	}
}
