package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	// Date is a calendar date with no time-of-day semantics.
	// It always normalizes to midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single dated income or expense record. Amount is
	// always a non-negative magnitude; direction is carried by Type.
	Transaction struct {
		ID          string
		Amount      Money
		Description string
		Category    string
		Date        Date
		Type        TransactionType
	}

	// BudgetItem is the per-category (budgeted, spent) aggregate. Spent is
	// derived from the expense transactions currently in the log.
	BudgetItem struct {
		Category string
		Budgeted Money
		Spent    Money
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrUnknownType      = errors.New("unknown transaction type")
	ErrInvalidDate      = errors.New("invalid date")
)

// Categories is the fixed classification set. Salary, Freelance and
// Investment are income-oriented and are excluded from budget
// initialization.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Travel",
	"Education",
	"Salary",
	"Freelance",
	"Investment",
	"Other",
}

var incomeCategories = map[string]bool{
	"Salary":     true,
	"Freelance":  true,
	"Investment": true,
}

// IsIncomeCategory reports whether cat is one of the income-oriented
// categories that never receive a budget row.
func IsIncomeCategory(cat string) bool {
	return incomeCategories[cat]
}

// ExpenseCategories returns the categories eligible for budgeting, in
// canonical order.
func ExpenseCategories() []string {
	out := make([]string, 0, len(Categories))
	for _, c := range Categories {
		if !IsIncomeCategory(c) {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeCategory matches free text loosely against the fixed set. A
// case-insensitive match returns the canonical spelling; anything else is
// kept verbatim (trimmed) so imported data never loses its label.
func NormalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(c, s) {
			return c
		}
	}
	return s
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SameMonth reports whether the date falls in the given calendar month.
func (d Date) SameMonth(year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// SubClamped subtracts other, flooring the result at zero. The budget
// ledger uses it so spent never goes negative under out-of-order deletes.
func (m Money) SubClamped(other Money) Money {
	c := m.Cents - other.Cents
	if c < 0 {
		c = 0
	}
	return Money{Cents: c}
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Type.Valid() {
		return ErrUnknownType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// Over reports whether spending has exceeded the budgeted target.
func (b BudgetItem) Over() bool {
	return b.Spent.Cents > b.Budgeted.Cents
}

// Remaining returns the unspent budget, floored at zero.
func (b BudgetItem) Remaining() Money {
	return b.Budgeted.SubClamped(b.Spent)
}
