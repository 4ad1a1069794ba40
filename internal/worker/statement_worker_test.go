package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/ingest"
	"fintrack/internal/storage"
	"fintrack/internal/storage/kvstore"
)

func newTestWorker(t *testing.T) (*StatementWorker, storage.Store) {
	t.Helper()
	backend, err := kvstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("kvstore.New() error = %v", err)
	}
	processor := ingest.NewProcessor(backend, ingest.FixedTextExtractor{}, nil)
	return NewStatementWorker(backend, processor, 10, nil), backend
}

func saveStatement(t *testing.T, backend storage.Store, id string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("write statement file: %v", err)
	}
	err := backend.SaveStatement(context.Background(), storage.Statement{
		ID:         id,
		Filename:   id + ".pdf",
		FilePath:   path,
		Type:       storage.StatementBank,
		SizeBytes:  13,
		UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveStatement() error = %v", err)
	}
}

func TestHandleMessage(t *testing.T) {
	w, backend := newTestWorker(t)
	saveStatement(t, backend, "st-1")

	msg := amqp.NewStatementProcessMessage("st-1")
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	st, err := backend.GetStatement(context.Background(), "st-1")
	if err != nil {
		t.Fatalf("GetStatement() error = %v", err)
	}
	if !st.Processed {
		t.Error("statement not marked processed after HandleMessage()")
	}
}

func TestHandleMessageUnknownStatement(t *testing.T) {
	w, _ := newTestWorker(t)

	msg := amqp.NewStatementProcessMessage("missing")
	if err := w.HandleMessage(context.Background(), msg); err == nil {
		t.Error("HandleMessage() error = nil for unknown statement, want error")
	}
}

func TestSweepUnprocessed(t *testing.T) {
	w, backend := newTestWorker(t)
	saveStatement(t, backend, "st-1")
	saveStatement(t, backend, "st-2")

	n, err := w.SweepUnprocessed(context.Background())
	if err != nil {
		t.Fatalf("SweepUnprocessed() error = %v", err)
	}
	if n != 2 {
		t.Errorf("SweepUnprocessed() = %d, want 2", n)
	}

	pending, err := backend.ListUnprocessedStatements(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListUnprocessedStatements() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("still %d unprocessed statements after sweep", len(pending))
	}
}

func TestSweepUnprocessedEmpty(t *testing.T) {
	w, _ := newTestWorker(t)

	n, err := w.SweepUnprocessed(context.Background())
	if err != nil {
		t.Fatalf("SweepUnprocessed() error = %v", err)
	}
	if n != 0 {
		t.Errorf("SweepUnprocessed() = %d, want 0", n)
	}
}

func TestSweepSkipsFailingStatement(t *testing.T) {
	w, backend := newTestWorker(t)

	// A statement whose file is gone fails extraction but must not
	// block the rest of the sweep.
	err := backend.SaveStatement(context.Background(), storage.Statement{
		ID:         "st-broken",
		Filename:   "gone.pdf",
		FilePath:   "/nonexistent/gone.pdf",
		Type:       storage.StatementBank,
		SizeBytes:  1,
		UploadedAt: time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("SaveStatement() error = %v", err)
	}
	saveStatement(t, backend, "st-ok")

	n, err := w.SweepUnprocessed(context.Background())
	if err != nil {
		t.Fatalf("SweepUnprocessed() error = %v", err)
	}
	if n != 1 {
		t.Errorf("SweepUnprocessed() = %d, want 1", n)
	}

	st, _ := backend.GetStatement(context.Background(), "st-ok")
	if !st.Processed {
		t.Error("healthy statement not processed when another failed")
	}
}
