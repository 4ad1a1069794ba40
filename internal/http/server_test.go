package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"fintrack/internal/finance"
	"fintrack/internal/storage/kvstore"
)

type recordingPublisher struct {
	published []string
	fail      bool
}

func (p *recordingPublisher) PublishStatementProcess(ctx context.Context, statementID string) error {
	if p.fail {
		return fmt.Errorf("broker unavailable")
	}
	p.published = append(p.published, statementID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *recordingPublisher) {
	t.Helper()
	backend, err := kvstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("kvstore.New() error = %v", err)
	}
	store, err := finance.Open(context.Background(), backend, nil)
	if err != nil {
		t.Fatalf("finance.Open() error = %v", err)
	}
	pub := &recordingPublisher{}
	srv := NewServer(":0", store, backend, Options{
		Publisher:     pub,
		StatementsDir: t.TempDir(),
	})
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, pub
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = strings.NewReader(string(b))
	} else {
		r = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateTransaction(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount":      "45.50",
		"description": "Weekly groceries",
		"category":    "Food & Dining",
		"type":        "expense",
		"date":        "2025-08-10",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	var created transactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.AmountCents != 4550 || created.Amount != "45.50" {
		t.Errorf("created = %+v", created)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var list []transactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{
			name: "invalid amount",
			body: map[string]string{"amount": "abc", "description": "x", "category": "Other", "type": "expense"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "zero amount",
			body: map[string]string{"amount": "0", "description": "x", "category": "Other", "type": "expense"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "negative amount",
			body: map[string]string{"amount": "-5.00", "description": "x", "category": "Other", "type": "expense"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "missing description",
			body: map[string]string{"amount": "5.00", "category": "Other", "type": "expense"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad type",
			body: map[string]string{"amount": "5.00", "description": "x", "category": "Other", "type": "transfer"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad date",
			body: map[string]string{"amount": "5.00", "description": "x", "category": "Other", "type": "expense", "date": "15-01-2025"},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/transactions", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	var list []transactionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Errorf("rejected requests changed the log: %+v", list)
	}
}

func TestDeleteTransactionIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount": "12.00", "description": "Lunch", "category": "Food & Dining", "type": "expense",
	})
	var created transactionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &created)

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	// Second delete of the same id responds identically.
	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("repeat delete status=%d", rr.Code)
	}
}

func TestBudgetsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPut, "/api/budgets", map[string]string{
		"category": "Food & Dining",
		"budgeted": "500.00",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("put budget status=%d body=%s", rr.Code, rr.Body.String())
	}

	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount": "45.50", "description": "Groceries", "category": "Food & Dining", "type": "expense",
	})

	rr = doJSON(t, srv, http.MethodGet, "/api/budgets", nil)
	var budgets []budgetResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &budgets); err != nil {
		t.Fatalf("decode budgets: %v", err)
	}
	for _, b := range budgets {
		if b.Category == "Food & Dining" {
			if b.BudgetedCents != 50000 || b.SpentCents != 4550 {
				t.Errorf("budget = %+v", b)
			}
			if b.RemainingCents != 45450 {
				t.Errorf("remaining = %d, want 45450", b.RemainingCents)
			}
			return
		}
	}
	t.Error("Food & Dining budget missing")
}

func TestBudgetValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPut, "/api/budgets", map[string]string{
		"category": "Food & Dining", "budgeted": "-10.00",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative budget status=%d, want 422", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/budgets", map[string]string{
		"category": "Food & Dining", "budgeted": "0",
	})
	if rr.Code != http.StatusOK {
		t.Errorf("zero budget status=%d, want 200", rr.Code)
	}
}

func TestSummary(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount": "3500.00", "description": "Salary", "category": "Salary", "type": "income",
	})
	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount": "45.50", "description": "Groceries", "category": "Food & Dining", "type": "expense",
	})
	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount": "12.99", "description": "Streaming", "category": "Entertainment", "type": "expense",
	})

	rr := doJSON(t, srv, http.MethodGet, "/api/summary", nil)
	var got summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if got.IncomeCents != 350000 {
		t.Errorf("income = %d, want 350000", got.IncomeCents)
	}
	if got.ExpenseCents != 5849 {
		t.Errorf("expense = %d, want 5849", got.ExpenseCents)
	}
	if got.NetCents != 344151 {
		t.Errorf("net = %d, want 344151", got.NetCents)
	}
}

func TestBreakdownAndTrend(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount": "100.00", "description": "a", "category": "Shopping", "type": "expense",
	})
	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"amount": "25.00", "description": "b", "category": "Travel", "type": "expense",
	})

	rr := doJSON(t, srv, http.MethodGet, "/api/breakdown?top=1", nil)
	var breakdown []breakdownEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &breakdown); err != nil {
		t.Fatalf("decode breakdown: %v", err)
	}
	if len(breakdown) != 1 || breakdown[0].Category != "Shopping" {
		t.Errorf("breakdown = %+v", breakdown)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/trend?months=6", nil)
	var trend []trendEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &trend); err != nil {
		t.Fatalf("decode trend: %v", err)
	}
	if len(trend) != 6 {
		t.Errorf("trend length = %d, want 6", len(trend))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/trend?months=0", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("trend months=0 status=%d, want 422", rr.Code)
	}
}

func uploadStatement(t *testing.T, srv *Server, filename, contentType, fileBody, stType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(fileBody)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.WriteField("type", stType); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/statements", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestUploadStatement(t *testing.T) {
	srv, pub := newTestServer(t)

	rr := uploadStatement(t, srv, "jan.pdf", "application/pdf", "%PDF-1.4 fake", "bank")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}

	var st statementResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode statement: %v", err)
	}
	if st.Filename != "jan.pdf" || st.Type != "bank" || st.Processed {
		t.Errorf("statement = %+v", st)
	}
	if len(pub.published) != 1 || pub.published[0] != st.ID {
		t.Errorf("published = %v, want [%s]", pub.published, st.ID)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/statements", nil)
	var list []statementResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("statements list length = %d, want 1", len(list))
	}
}

func TestUploadStatementRejectsNonPDF(t *testing.T) {
	srv, pub := newTestServer(t)

	rr := uploadStatement(t, srv, "jan.csv", "text/csv", "a,b,c", "bank")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("upload status=%d, want 422", rr.Code)
	}
	if len(pub.published) != 0 {
		t.Error("rejected upload was published")
	}
}

func TestUploadStatementRejectsBadType(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := uploadStatement(t, srv, "jan.pdf", "application/pdf", "%PDF-1.4", "paypal")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("upload status=%d, want 422", rr.Code)
	}
}

func TestUploadStatementSurvivesPublishFailure(t *testing.T) {
	srv, pub := newTestServer(t)
	pub.fail = true

	rr := uploadStatement(t, srv, "jan.pdf", "application/pdf", "%PDF-1.4", "credit_card")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("upload status=%d, want 202 despite publish failure", rr.Code)
	}
}

func TestExportSheetsUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/export/sheets", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("export status=%d, want 503 when not configured", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodDelete, "/api/summary", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status=%d, want 405", rr.Code)
	}
}
