package http

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/ingest"
	"fintrack/internal/storage"
)

type statementResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Type       string    `json:"type"`
	SizeBytes  int64     `json:"size_bytes"`
	Processed  bool      `json:"processed"`
	Extracted  int       `json:"transactions_extracted"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func toStatementResponse(st storage.Statement) statementResponse {
	return statementResponse{
		ID:         st.ID,
		Filename:   st.Filename,
		Type:       st.Type,
		SizeBytes:  st.SizeBytes,
		Processed:  st.Processed,
		Extracted:  st.Extracted,
		UploadedAt: st.UploadedAt,
	}
}

func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListStatements(w, r)
	case http.MethodPost:
		s.handleUploadStatement(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	statements, err := s.backend.ListStatements(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List statements failed", "error", err)
		writeError(w, http.StatusInternalServerError, "persistence failure: "+err.Error())
		return
	}

	out := make([]statementResponse, 0, len(statements))
	for _, st := range statements {
		out = append(out, toStatementResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUploadStatement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxStatementSize+4096)
	if err := r.ParseMultipartForm(ingest.MaxStatementSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "statement exceeds the 10MB limit")
		return
	}

	stType := strings.TrimSpace(r.FormValue("type"))
	if stType != storage.StatementBank && stType != storage.StatementCreditCard {
		writeError(w, http.StatusUnprocessableEntity, "type must be bank or credit_card")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file field is required")
		return
	}
	defer file.Close()

	if err := validateStatementFile(header); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id := uuid.NewString()
	path := filepath.Join(s.statementsDir, id+".pdf")
	size, err := s.saveStatementFile(path, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Save statement file failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store statement")
		return
	}

	st := storage.Statement{
		ID:         id,
		Filename:   filepath.Base(header.Filename),
		FilePath:   path,
		Type:       stType,
		SizeBytes:  size,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.backend.SaveStatement(r.Context(), st); err != nil {
		os.Remove(path)
		slog.ErrorContext(r.Context(), "Save statement failed", "error", err)
		writeError(w, http.StatusInternalServerError, "persistence failure: "+err.Error())
		return
	}

	// Queue delivery is best effort, the worker sweep catches anything
	// that never made it onto the queue.
	if s.publisher != nil {
		if err := s.publisher.PublishStatementProcess(r.Context(), st.ID); err != nil {
			slog.WarnContext(r.Context(), "Failed to publish statement message, sweep will pick it up",
				"statement_id", st.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusAccepted, toStatementResponse(st))
}

func validateStatementFile(header *multipart.FileHeader) error {
	if header.Size > ingest.MaxStatementSize {
		return errStatementTooLarge
	}
	contentType := header.Header.Get("Content-Type")
	isPDFName := strings.EqualFold(filepath.Ext(header.Filename), ".pdf")
	if contentType != "application/pdf" && !isPDFName {
		return errNotPDF
	}
	return nil
}

func (s *Server) saveStatementFile(path string, file multipart.File) (int64, error) {
	if err := os.MkdirAll(s.statementsDir, 0o755); err != nil {
		return 0, err
	}
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, io.LimitReader(file, ingest.MaxStatementSize))
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return size, nil
}
