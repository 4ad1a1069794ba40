// Package postgres is the hosted persistence backend. Every row is scoped
// by an owner id so several users can share one database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	db      *pgxpool.Pool
	ownerID string
}

var _ storage.Store = (*Store)(nil)

// New connects a pool, runs migrations and returns a store scoped to
// ownerID. All reads and writes are filtered by that owner.
func New(ctx context.Context, databaseURL, ownerID string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: pool, ownerID: ownerID}, nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, amount_cents, description, category, tx_date, tx_type
		FROM transactions
		WHERE owner_id = $1
		ORDER BY tx_date DESC, seq DESC`, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		var (
			t       core.Transaction
			date    time.Time
			typeStr string
		)
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &t.Description, &t.Category, &date, &typeStr); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = core.DateOf(date)
		t.Type = core.TransactionType(typeStr)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *Store) LoadBudgets(ctx context.Context) ([]core.BudgetItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT category, budgeted_cents, spent_cents
		FROM budgets
		WHERE owner_id = $1
		ORDER BY category`, s.ownerID)
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
	_, err := s.db.Exec(ctx, `
		INSERT INTO transactions (id, owner_id, amount_cents, description, category, tx_date, tx_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, s.ownerID, t.Amount.Cents, t.Description, t.Category, t.Date.Time, string(t.Type))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) InsertTransactions(ctx context.Context, txns []core.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Reverse order: the head of the batch must end up with the highest
	// seq so reloads return it first among same-date rows.
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions (id, owner_id, amount_cents, description, category, tx_date, tx_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, s.ownerID, t.Amount.Cents, t.Description, t.Category, t.Date.Time, string(t.Type))
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	// Idempotent: deleting an absent row is not an error.
	_, err := s.db.Exec(ctx, `
		DELETE FROM transactions WHERE id = $1 AND owner_id = $2`, id, s.ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *Store) SetBudgeted(ctx context.Context, category string, amount core.Money) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO budgets (owner_id, category, budgeted_cents, spent_cents)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (owner_id, category) DO UPDATE SET budgeted_cents = EXCLUDED.budgeted_cents`,
		s.ownerID, category, amount.Cents)
	if err != nil {
		return fmt.Errorf("set budget for %s: %w", category, err)
	}
	return nil
}

func (s *Store) AddSpent(ctx context.Context, category string, deltaCents int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO budgets (owner_id, category, budgeted_cents, spent_cents)
		VALUES ($1, $2, 0, GREATEST(0, $3::bigint))
		ON CONFLICT (owner_id, category) DO UPDATE SET spent_cents = GREATEST(0, budgets.spent_cents + $3)`,
		s.ownerID, category, deltaCents)
	if err != nil {
		return fmt.Errorf("adjust spent for %s: %w", category, err)
	}
	return nil
}

func (s *Store) SaveStatement(ctx context.Context, st storage.Statement) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO statements (id, owner_id, filename, file_path, statement_type, size_bytes, processed, transactions_extracted, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		st.ID, s.ownerID, st.Filename, st.FilePath, st.Type, st.SizeBytes, st.Processed, st.Extracted, st.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}
	return nil
}

func (s *Store) GetStatement(ctx context.Context, id string) (storage.Statement, error) {
	var st storage.Statement
	err := s.db.QueryRow(ctx, `
		SELECT id, filename, file_path, statement_type, size_bytes, processed, transactions_extracted, uploaded_at
		FROM statements WHERE id = $1 AND owner_id = $2`, id, s.ownerID).
		Scan(&st.ID, &st.Filename, &st.FilePath, &st.Type, &st.SizeBytes, &st.Processed, &st.Extracted, &st.UploadedAt)
	if err == pgx.ErrNoRows {
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
		FROM statements WHERE owner_id = $1 ORDER BY uploaded_at DESC`, s.ownerID)
}

func (s *Store) ListUnprocessedStatements(ctx context.Context, limit int) ([]storage.Statement, error) {
	return s.queryStatements(ctx, `
		SELECT id, filename, file_path, statement_type, size_bytes, processed, transactions_extracted, uploaded_at
		FROM statements WHERE owner_id = $1 AND NOT processed ORDER BY uploaded_at ASC LIMIT $2`, s.ownerID, limit)
}

func (s *Store) MarkStatementProcessed(ctx context.Context, id string, extracted int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE statements SET processed = TRUE, transactions_extracted = $1
		WHERE id = $2 AND owner_id = $3`, extracted, id, s.ownerID)
	if err != nil {
		return fmt.Errorf("mark statement processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrStatementNotFound
	}
	return nil
}

func (s *Store) queryStatements(ctx context.Context, query string, args ...any) ([]storage.Statement, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	var out []storage.Statement
	for rows.Next() {
		var st storage.Statement
		if err := rows.Scan(&st.ID, &st.Filename, &st.FilePath, &st.Type, &st.SizeBytes, &st.Processed, &st.Extracted, &st.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
