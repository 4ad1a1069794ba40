// Package worker drives statement processing from AMQP messages and a
// periodic sweep over statements the queue may have missed.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/ingest"
	"fintrack/internal/storage"
)

// StatementWorker processes uploaded statements into transactions.
type StatementWorker struct {
	backend   storage.Store
	processor *ingest.Processor
	batchSize int
	logger    *slog.Logger
}

func NewStatementWorker(backend storage.Store, processor *ingest.Processor, batchSize int, logger *slog.Logger) *StatementWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementWorker{
		backend:   backend,
		processor: processor,
		batchSize: batchSize,
		logger:    logger,
	}
}

// HandleMessage processes a single statement message from AMQP.
func (w *StatementWorker) HandleMessage(ctx context.Context, msg *amqp.StatementProcessMessage) error {
	w.logger.InfoContext(ctx, "Processing statement message", "statement_id", msg.StatementID)

	if _, err := w.processor.Process(ctx, msg.StatementID); err != nil {
		return fmt.Errorf("process statement %s: %w", msg.StatementID, err)
	}
	return nil
}

// SweepUnprocessed processes up to batchSize statements that are still
// unprocessed, oldest first. Used on startup and on a timer to catch
// statements whose queue message was lost. Failures are logged and
// skipped so one bad statement does not block the rest.
func (w *StatementWorker) SweepUnprocessed(ctx context.Context) (int, error) {
	pending, err := w.backend.ListUnprocessedStatements(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed statements: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Sweeping unprocessed statements", "count", len(pending))

	processed := 0
	for _, st := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if _, err := w.processor.Process(ctx, st.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to process statement during sweep",
				"statement_id", st.ID,
				"filename", st.Filename,
				"error", err)
			continue
		}
		processed++
	}

	w.logger.InfoContext(ctx, "Sweep complete", "processed", processed, "pending", len(pending))
	return processed, nil
}
