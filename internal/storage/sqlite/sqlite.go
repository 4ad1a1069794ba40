// Package sqlite is the local relational persistence backend, built on
// modernc.org/sqlite through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount_cents, description, category, tx_date, tx_type
		FROM transactions
		ORDER BY tx_date DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		var (
			t       core.Transaction
			dateStr string
			typeStr string
		)
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &t.Description, &t.Category, &dateStr, &typeStr); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("transaction %s has bad date %q: %w", t.ID, dateStr, err)
		}
		t.Date = date
		t.Type = core.TransactionType(typeStr)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *Store) LoadBudgets(ctx context.Context) ([]core.BudgetItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, budgeted_cents, spent_cents FROM budgets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var items []core.BudgetItem
	for rows.Next() {
		var b core.BudgetItem
		if err := rows.Scan(&b.Category, &b.Budgeted.Cents, &b.Spent.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount_cents, description, category, tx_date, tx_type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Amount.Cents, t.Description, t.Category, t.Date.String(), string(t.Type))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"description", t.Description,
		"amount_cents", t.Amount.Cents,
		"type", string(t.Type))
	return nil
}

func (s *Store) InsertTransactions(ctx context.Context, txns []core.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, amount_cents, description, category, tx_date, tx_type)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	// Reverse order: the head of the batch must end up with the highest
	// seq so reloads return it first among same-date rows.
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		if _, err := stmt.ExecContext(ctx, t.ID, t.Amount.Cents, t.Description, t.Category, t.Date.String(), string(t.Type)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	// Idempotent: deleting an absent row is not an error.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *Store) SetBudgeted(ctx context.Context, category string, amount core.Money) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (category, budgeted_cents, spent_cents)
		VALUES (?, ?, 0)
		ON CONFLICT (category) DO UPDATE SET budgeted_cents = excluded.budgeted_cents`,
		category, amount.Cents)
	if err != nil {
		return fmt.Errorf("set budget for %s: %w", category, err)
	}
	return nil
}

func (s *Store) AddSpent(ctx context.Context, category string, deltaCents int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (category, budgeted_cents, spent_cents)
		VALUES (?1, 0, max(0, ?2))
		ON CONFLICT (category) DO UPDATE SET spent_cents = max(0, spent_cents + ?2)`,
		category, deltaCents)
	if err != nil {
		return fmt.Errorf("adjust spent for %s: %w", category, err)
	}
	return nil
}

func (s *Store) SaveStatement(ctx context.Context, st storage.Statement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statements (id, filename, file_path, statement_type, size_bytes, processed, transactions_extracted, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Filename, st.FilePath, st.Type, st.SizeBytes, boolToInt(st.Processed), st.Extracted,
		st.UploadedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}
	return nil
}

func (s *Store) GetStatement(ctx context.Context, id string) (storage.Statement, error) {
	st, err := scanStatement(s.db.QueryRowContext(ctx, `
		SELECT id, filename, file_path, statement_type, size_bytes, processed, transactions_extracted, uploaded_at
		FROM statements WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return storage.Statement{}, storage.ErrStatementNotFound
	}
	if err != nil {
		return storage.Statement{}, fmt.Errorf("get statement: %w", err)
	}
	return st, nil
}

func (s *Store) ListStatements(ctx context.Context) ([]storage.Statement, error) {
	return s.queryStatements(ctx, `
		SELECT id, filename, file_path, statement_type, size_bytes, processed, transactions_extracted, uploaded_at
		FROM statements ORDER BY uploaded_at DESC`)
}

func (s *Store) ListUnprocessedStatements(ctx context.Context, limit int) ([]storage.Statement, error) {
	return s.queryStatements(ctx, `
		SELECT id, filename, file_path, statement_type, size_bytes, processed, transactions_extracted, uploaded_at
		FROM statements WHERE processed = 0 ORDER BY uploaded_at ASC LIMIT ?`, limit)
}

func (s *Store) MarkStatementProcessed(ctx context.Context, id string, extracted int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE statements SET processed = 1, transactions_extracted = ? WHERE id = ?`,
		extracted, id)
	if err != nil {
		return fmt.Errorf("mark statement processed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrStatementNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (storage.Statement, error) {
	var (
		st         storage.Statement
		processed  int
		uploadedAt string
	)
	err := row.Scan(&st.ID, &st.Filename, &st.FilePath, &st.Type, &st.SizeBytes, &processed, &st.Extracted, &uploadedAt)
	if err != nil {
		return storage.Statement{}, err
	}
	st.Processed = processed != 0
	if ts, err := time.Parse(time.RFC3339, uploadedAt); err == nil {
		st.UploadedAt = ts
	}
	return st, nil
}

func (s *Store) queryStatements(ctx context.Context, query string, args ...any) ([]storage.Statement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	var out []storage.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
