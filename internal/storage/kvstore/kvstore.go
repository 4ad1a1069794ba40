// Package kvstore persists the finance collections as JSON blobs in a local
// key-value file store, one blob per key, rewritten whole on every mutation.
// It mirrors the browser-local-storage variant of the original application:
// writes are synchronous and last-writer-wins.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	keyTransactions = "transactions"
	keyBudgets      = "budgets"
	keyStatements   = "statements"
)

// KV is the primitive blob store: Read returns the blob for a key if
// present, Write replaces it atomically (write to temp file, rename).
type KV struct {
	mu  sync.Mutex
	dir string
}

func NewKV(dir string) (*KV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &KV{dir: dir}, nil
}

func (k *KV) path(key string) string {
	return filepath.Join(k.dir, key+".json")
}

func (k *KV) Read(key string) ([]byte, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	blob, err := os.ReadFile(k.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read key %s: %w", key, err)
	}
	return blob, true, nil
}

func (k *KV) Write(key string, blob []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	tmp := k.path(key) + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return fmt.Errorf("write key %s: %w", key, err)
	}
	if err := os.Rename(tmp, k.path(key)); err != nil {
		return fmt.Errorf("commit key %s: %w", key, err)
	}
	return nil
}

// Store implements storage.Store over a KV.
type Store struct {
	kv *KV
}

var _ storage.Store = (*Store)(nil)

func New(dir string) (*Store, error) {
	kv, err := NewKV(dir)
	if err != nil {
		return nil, err
	}
	return &Store{kv: kv}, nil
}

// transactionRecord is the serialized form of a core.Transaction. Kept
// separate so the wire format stays stable if the domain type grows.
type transactionRecord struct {
	ID          string               `json:"id"`
	AmountCents int64                `json:"amount_cents"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Date        core.Date            `json:"date"`
	Type        core.TransactionType `json:"type"`
}

type budgetRecord struct {
	Category      string `json:"category"`
	BudgetedCents int64  `json:"budgeted_cents"`
	SpentCents    int64  `json:"spent_cents"`
}

func toRecord(t core.Transaction) transactionRecord {
	return transactionRecord{
		ID:          t.ID,
		AmountCents: t.Amount.Cents,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date,
		Type:        t.Type,
	}
}

func fromRecord(r transactionRecord) core.Transaction {
	return core.Transaction{
		ID:          r.ID,
		Amount:      core.Money{Cents: r.AmountCents},
		Description: r.Description,
		Category:    r.Category,
		Date:        r.Date,
		Type:        r.Type,
	}
}

func (s *Store) loadTransactionRecords() ([]transactionRecord, error) {
	blob, ok, err := s.kv.Read(keyTransactions)
	if err != nil || !ok {
		return nil, err
	}
	var records []transactionRecord
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("decode transactions blob: %w", err)
	}
	return records, nil
}

func (s *Store) saveTransactionRecords(records []transactionRecord) error {
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode transactions blob: %w", err)
	}
	return s.kv.Write(keyTransactions, blob)
}

func (s *Store) loadBudgetRecords() ([]budgetRecord, error) {
	blob, ok, err := s.kv.Read(keyBudgets)
	if err != nil || !ok {
		return nil, err
	}
	var records []budgetRecord
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("decode budgets blob: %w", err)
	}
	return records, nil
}

func (s *Store) saveBudgetRecords(records []budgetRecord) error {
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode budgets blob: %w", err)
	}
	return s.kv.Write(keyBudgets, blob)
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	records, err := s.loadTransactionRecords()
	if err != nil {
		return nil, err
	}
	txns := make([]core.Transaction, len(records))
	for i, r := range records {
		txns[i] = fromRecord(r)
	}
	return txns, nil
}

func (s *Store) LoadBudgets(ctx context.Context) ([]core.BudgetItem, error) {
	records, err := s.loadBudgetRecords()
	if err != nil {
		return nil, err
	}
	items := make([]core.BudgetItem, len(records))
	for i, r := range records {
		items[i] = core.BudgetItem{
			Category: r.Category,
			Budgeted: core.Money{Cents: r.BudgetedCents},
			Spent:    core.Money{Cents: r.SpentCents},
		}
	}
	return items, nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	records, err := s.loadTransactionRecords()
	if err != nil {
		return err
	}
	// Most-recent-first: new entries go to the head of the log.
	records = append([]transactionRecord{toRecord(t)}, records...)
	return s.saveTransactionRecords(records)
}

func (s *Store) InsertTransactions(ctx context.Context, txns []core.Transaction) error {
	records, err := s.loadTransactionRecords()
	if err != nil {
		return err
	}
	head := make([]transactionRecord, len(txns))
	for i, t := range txns {
		head[i] = toRecord(t)
	}
	// One blob write keeps the batch all-or-nothing.
	return s.saveTransactionRecords(append(head, records...))
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	records, err := s.loadTransactionRecords()
	if err != nil {
		return err
	}
	kept := records[:0]
	found := false
	for _, r := range records {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return nil
	}
	return s.saveTransactionRecords(kept)
}

func (s *Store) SetBudgeted(ctx context.Context, category string, amount core.Money) error {
	records, err := s.loadBudgetRecords()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].Category == category {
			records[i].BudgetedCents = amount.Cents
			return s.saveBudgetRecords(records)
		}
	}
	records = append(records, budgetRecord{Category: category, BudgetedCents: amount.Cents})
	return s.saveBudgetRecords(records)
}

func (s *Store) AddSpent(ctx context.Context, category string, deltaCents int64) error {
	records, err := s.loadBudgetRecords()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].Category == category {
			records[i].SpentCents += deltaCents
			if records[i].SpentCents < 0 {
				records[i].SpentCents = 0
			}
			return s.saveBudgetRecords(records)
		}
	}
	spent := deltaCents
	if spent < 0 {
		spent = 0
	}
	records = append(records, budgetRecord{Category: category, SpentCents: spent})
	return s.saveBudgetRecords(records)
}

func (s *Store) loadStatements() ([]storage.Statement, error) {
	blob, ok, err := s.kv.Read(keyStatements)
	if err != nil || !ok {
		return nil, err
	}
	var sts []storage.Statement
	if err := json.Unmarshal(blob, &sts); err != nil {
		return nil, fmt.Errorf("decode statements blob: %w", err)
	}
	return sts, nil
}

func (s *Store) saveStatements(sts []storage.Statement) error {
	blob, err := json.Marshal(sts)
	if err != nil {
		return fmt.Errorf("encode statements blob: %w", err)
	}
	return s.kv.Write(keyStatements, blob)
}

func (s *Store) SaveStatement(ctx context.Context, st storage.Statement) error {
	sts, err := s.loadStatements()
	if err != nil {
		return err
	}
	return s.saveStatements(append([]storage.Statement{st}, sts...))
}

func (s *Store) GetStatement(ctx context.Context, id string) (storage.Statement, error) {
	sts, err := s.loadStatements()
	if err != nil {
		return storage.Statement{}, err
	}
	for _, st := range sts {
		if st.ID == id {
			return st, nil
		}
	}
	return storage.Statement{}, storage.ErrStatementNotFound
}

func (s *Store) ListStatements(ctx context.Context) ([]storage.Statement, error) {
	return s.loadStatements()
}

func (s *Store) ListUnprocessedStatements(ctx context.Context, limit int) ([]storage.Statement, error) {
	sts, err := s.loadStatements()
	if err != nil {
		return nil, err
	}
	var out []storage.Statement
	for _, st := range sts {
		if st.Processed {
			continue
		}
		out = append(out, st)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkStatementProcessed(ctx context.Context, id string, extracted int) error {
	sts, err := s.loadStatements()
	if err != nil {
		return err
	}
	for i := range sts {
		if sts[i].ID == id {
			sts[i].Processed = true
			sts[i].Extracted = extracted
			return s.saveStatements(sts)
		}
	}
	slog.WarnContext(ctx, "Mark processed for unknown statement", "id", id)
	return storage.ErrStatementNotFound
}

func (s *Store) Close() error { return nil }
