package http

import (
	"log/slog"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/finance"
)

type createTransactionRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Date        string `json:"date"`
	Type        string `json:"type" validate:"required,oneof=income expense"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Amount:      t.Amount.DecimalString(),
		AmountCents: t.Amount.Cents,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date.String(),
		Type:        string(t.Type),
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := finance.Filter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Type:     core.TransactionType(strings.TrimSpace(r.URL.Query().Get("type"))),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "type must be income or expense")
		return
	}

	txns := s.store.List(filter)
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "amount must be a positive decimal")
		return
	}

	var date core.Date
	if strings.TrimSpace(req.Date) != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
			return
		}
	}

	t, err := s.store.Add(r.Context(), finance.AddParams{
		Amount:      core.Money{Cents: cents},
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Date:        date,
		Type:        core.TransactionType(req.Type),
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "Create transaction failed", "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, "DELETE")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.store.Remove(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Delete transaction failed", "error", err, "id", id)
		writeDomainError(w, err)
		return
	}

	// Deletes are idempotent, unknown ids get the same response.
	w.WriteHeader(http.StatusNoContent)
}
