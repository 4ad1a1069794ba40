package http

import (
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

const (
	defaultBreakdownTop = 5
	defaultTrendMonths  = 6
	maxTrendMonths      = 60
)

type summaryResponse struct {
	Income       string `json:"income"`
	IncomeCents  int64  `json:"income_cents"`
	Expense      string `json:"expense"`
	ExpenseCents int64  `json:"expense_cents"`
	Net          string `json:"net"`
	NetCents     int64  `json:"net_cents"`
}

type breakdownEntry struct {
	Category   string `json:"category"`
	Total      string `json:"total"`
	TotalCents int64  `json:"total_cents"`
}

type trendEntry struct {
	Label        string `json:"label"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Income       string `json:"income"`
	IncomeCents  int64  `json:"income_cents"`
	Expense      string `json:"expense"`
	ExpenseCents int64  `json:"expense_cents"`
	Net          string `json:"net"`
	NetCents     int64  `json:"net_cents"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	totals := s.store.Totals()
	net := totals.Income.Cents - totals.Expense.Cents
	writeJSON(w, http.StatusOK, summaryResponse{
		Income:       totals.Income.DecimalString(),
		IncomeCents:  totals.Income.Cents,
		Expense:      totals.Expense.DecimalString(),
		ExpenseCents: totals.Expense.Cents,
		Net:          core.Money{Cents: net}.DecimalString(),
		NetCents:     net,
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	topN := parseIntQuery(r, "top", defaultBreakdownTop)
	if topN < 1 {
		writeError(w, http.StatusUnprocessableEntity, "top must be at least 1")
		return
	}

	entries := s.store.Breakdown(topN)
	out := make([]breakdownEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, breakdownEntry{
			Category:   e.Category,
			Total:      e.Total.DecimalString(),
			TotalCents: e.Total.Cents,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	months := parseIntQuery(r, "months", defaultTrendMonths)
	if months < 1 || months > maxTrendMonths {
		writeError(w, http.StatusUnprocessableEntity, "months must be between 1 and 60")
		return
	}

	writeJSON(w, http.StatusOK, toTrendEntries(s.store.Trend(months)))
}

func toTrendEntries(points []core.MonthPoint) []trendEntry {
	out := make([]trendEntry, 0, len(points))
	for _, p := range points {
		out = append(out, trendEntry{
			Label:        p.Label,
			Year:         p.Year,
			Month:        int(p.Month),
			Income:       p.Income.DecimalString(),
			IncomeCents:  p.Income.Cents,
			Expense:      p.Expense.DecimalString(),
			ExpenseCents: p.Expense.Cents,
			Net:          core.Money{Cents: p.NetCents}.DecimalString(),
			NetCents:     p.NetCents,
		})
	}
	return out
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "sheets export is not configured")
		return
	}

	points := s.store.Trend(defaultTrendMonths)
	if err := s.exporter.ExportTrend(r.Context(), points); err != nil {
		slog.ErrorContext(r.Context(), "Sheets export failed", "error", err)
		writeError(w, http.StatusBadGateway, "export failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"exported_months": len(points)})
}
