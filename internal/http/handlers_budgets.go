package http

import (
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

type budgetResponse struct {
	Category       string `json:"category"`
	Budgeted       string `json:"budgeted"`
	BudgetedCents  int64  `json:"budgeted_cents"`
	Spent          string `json:"spent"`
	SpentCents     int64  `json:"spent_cents"`
	Remaining      string `json:"remaining"`
	RemainingCents int64  `json:"remaining_cents"`
	Over           bool   `json:"over"`
}

type setBudgetRequest struct {
	Category string `json:"category" validate:"required"`
	Budgeted string `json:"budgeted" validate:"required"`
}

func toBudgetResponse(b core.BudgetItem) budgetResponse {
	remaining := b.Remaining()
	return budgetResponse{
		Category:       b.Category,
		Budgeted:       b.Budgeted.DecimalString(),
		BudgetedCents:  b.Budgeted.Cents,
		Spent:          b.Spent.DecimalString(),
		SpentCents:     b.Spent.Cents,
		Remaining:      remaining.DecimalString(),
		RemainingCents: remaining.Cents,
		Over:           b.Over(),
	}
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBudgets(w, r)
	case http.MethodPut:
		s.handleSetBudget(w, r)
	default:
		methodNotAllowed(w, "GET, PUT")
	}
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets := s.store.Budgets()
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req setBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Zero is a valid target, so the usual positive-amount parse does
	// not apply here.
	cents, err := core.ParseNonNegativeDecimalToCents(req.Budgeted)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "budgeted must be a non-negative decimal")
		return
	}

	if err := s.store.SetBudget(r.Context(), req.Category, core.Money{Cents: cents}); err != nil {
		slog.ErrorContext(r.Context(), "Set budget failed", "error", err, "category", req.Category)
		writeDomainError(w, err)
		return
	}

	for _, b := range s.store.Budgets() {
		if b.Category == core.NormalizeCategory(req.Category) {
			writeJSON(w, http.StatusOK, toBudgetResponse(b))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
