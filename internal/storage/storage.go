// Package storage defines the persistence contract shared by the local
// key-value, SQLite and Postgres backends.
package storage

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

const (
	StatementBank       = "bank"
	StatementCreditCard = "credit_card"
)

// Statement is an uploaded document awaiting (or done with) transaction
// extraction.
type Statement struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"file_path"`
	Type       string    `json:"type"` // bank | credit_card
	SizeBytes  int64     `json:"size_bytes"`
	Processed  bool      `json:"processed"`
	Extracted  int       `json:"transactions_extracted"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ErrStatementNotFound is returned by GetStatement for unknown ids.
// Transaction deletes are deliberately idempotent and never report
// not-found.
var ErrStatementNotFound = errors.New("statement not found")

// Store is the persistence adapter behind the finance store. The key-value
// implementation rewrites whole collections per mutation; the relational
// ones issue row-level statements. Callers cannot tell the difference.
type Store interface {
	// LoadTransactions returns the persisted log, most-recent-first.
	LoadTransactions(ctx context.Context) ([]core.Transaction, error)
	// LoadBudgets returns all persisted budget rows.
	LoadBudgets(ctx context.Context) ([]core.BudgetItem, error)

	InsertTransaction(ctx context.Context, t core.Transaction) error
	// InsertTransactions persists an ingestion batch atomically:
	// either every transaction lands or none do.
	InsertTransactions(ctx context.Context, txns []core.Transaction) error
	// DeleteTransaction is a no-op when the id is absent.
	DeleteTransaction(ctx context.Context, id string) error

	// SetBudgeted overwrites the budget target for a category,
	// materializing the row if absent. Spent is untouched.
	SetBudgeted(ctx context.Context, category string, amount core.Money) error
	// AddSpent adjusts the derived spent figure by deltaCents, flooring
	// the stored value at zero.
	AddSpent(ctx context.Context, category string, deltaCents int64) error

	SaveStatement(ctx context.Context, st Statement) error
	GetStatement(ctx context.Context, id string) (Statement, error)
	ListStatements(ctx context.Context) ([]Statement, error)
	ListUnprocessedStatements(ctx context.Context, limit int) ([]Statement, error)
	MarkStatementProcessed(ctx context.Context, id string, extracted int) error

	Close() error
}
