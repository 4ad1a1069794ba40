package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"fintrack/internal/core"
)

// ParsedLine is one statement row before categorization.
type ParsedLine struct {
	Date        core.Date
	Description string
	Amount      core.Money
	Type        core.TransactionType
}

var lineRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s+(.+?)\s+([-+]?\d+\.\d{2})`)

// ParseStatementText scans extracted statement text for transaction
// rows. A leading plus or no sign marks income, a minus marks an
// expense. Lines that do not match the row shape are skipped.
func ParseStatementText(text string) ([]ParsedLine, error) {
	var out []ParsedLine
	for _, line := range strings.Split(text, "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, err := core.ParseDate(m[1])
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}

		raw := m[3]
		txType := core.Income
		if strings.HasPrefix(raw, "-") {
			txType = core.Expense
		}
		raw = strings.TrimLeft(raw, "+-")

		cents, err := core.ParseDecimalToCents(raw)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}

		out = append(out, ParsedLine{
			Date:        date,
			Description: strings.TrimSpace(m[2]),
			Amount:      core.Money{Cents: cents},
			Type:        txType,
		})
	}
	return out, nil
}
