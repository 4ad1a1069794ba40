// Package ingest turns uploaded statement documents into categorized
// transactions.
package ingest

import (
	"context"
	"fmt"
	"io"
)

// Extractor pulls the textual transaction listing out of a statement
// document.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// MaxStatementSize is the upload cap for statement documents.
const MaxStatementSize = 10 << 20

// FixedTextExtractor stands in for a real PDF text extraction service.
// It drains the document and returns a canned listing, which keeps the
// rest of the pipeline exercisable without an OCR dependency.
type FixedTextExtractor struct{}

var _ Extractor = FixedTextExtractor{}

const fixedStatementText = `2024-01-15 SALARY DEPOSIT +3500.00
2024-01-16 GROCERY STORE -45.67
2024-01-17 GAS STATION -32.50
2024-01-18 NETFLIX SUBSCRIPTION -15.99
2024-01-19 AMAZON PURCHASE -89.99
2024-01-20 ELECTRIC BILL -125.00`

func (FixedTextExtractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", fmt.Errorf("read statement: %w", err)
	}
	return fixedStatementText, nil
}
