package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Processor turns an uploaded statement into persisted transactions.
// The batch insert is atomic, so a failing statement leaves the log
// untouched and the statement unprocessed for a later retry.
type Processor struct {
	backend   storage.Store
	extractor Extractor
	logger    *slog.Logger
	newID     func() string
}

func NewProcessor(backend storage.Store, extractor Extractor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		backend:   backend,
		extractor: extractor,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Process extracts, parses, categorizes and persists the transactions
// of one statement, then marks it processed. Already processed
// statements are skipped.
func (p *Processor) Process(ctx context.Context, statementID string) (int, error) {
	st, err := p.backend.GetStatement(ctx, statementID)
	if err != nil {
		return 0, fmt.Errorf("load statement %s: %w", statementID, err)
	}
	if st.Processed {
		p.logger.Info("Statement already processed, skipping", "id", st.ID)
		return st.Extracted, nil
	}

	f, err := os.Open(st.FilePath)
	if err != nil {
		return 0, fmt.Errorf("open statement file: %w", err)
	}
	defer f.Close()

	text, err := p.extractor.Extract(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("extract statement text: %w", err)
	}

	lines, err := ParseStatementText(text)
	if err != nil {
		return 0, fmt.Errorf("parse statement text: %w", err)
	}

	txns := make([]core.Transaction, 0, len(lines))
	for _, line := range lines {
		t := core.Transaction{
			ID:          p.newID(),
			Amount:      line.Amount,
			Description: line.Description,
			Category:    Categorize(line.Description),
			Date:        line.Date,
			Type:        line.Type,
		}
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("invalid extracted transaction %q: %w", line.Description, err)
		}
		txns = append(txns, t)
	}

	if err := p.backend.InsertTransactions(ctx, txns); err != nil {
		return 0, fmt.Errorf("persist extracted transactions: %w", err)
	}
	credited := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Type != core.Expense {
			continue
		}
		if err := p.backend.AddSpent(ctx, t.Category, t.Amount.Cents); err != nil {
			p.rollback(ctx, txns, credited)
			return 0, fmt.Errorf("update budget for %s: %w", t.Category, err)
		}
		credited = append(credited, t)
	}

	if err := p.backend.MarkStatementProcessed(ctx, st.ID, len(txns)); err != nil {
		return 0, fmt.Errorf("mark statement processed: %w", err)
	}

	p.logger.Info("Statement processed",
		"id", st.ID,
		"filename", st.Filename,
		"transactions", len(txns))
	return len(txns), nil
}

// rollback undoes a partially applied batch: every inserted row is
// deleted and the spends already credited are debited again, so the
// statement can be retried from a clean slate.
func (p *Processor) rollback(ctx context.Context, txns, credited []core.Transaction) {
	for _, t := range credited {
		if err := p.backend.AddSpent(ctx, t.Category, -t.Amount.Cents); err != nil {
			p.logger.Error("Rollback budget debit failed",
				"category", t.Category, "error", err)
		}
	}
	for _, t := range txns {
		if err := p.backend.DeleteTransaction(ctx, t.ID); err != nil {
			p.logger.Error("Rollback delete failed", "id", t.ID, "error", err)
		}
	}
}
