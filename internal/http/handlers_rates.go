package http

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"conti/internal/core"
	"conti/internal/rates"
	"conti/internal/services"
	"conti/internal/storage"
)

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePage(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var f rates.Filter
	if v := strings.TrimSpace(q.Get("currency")); v != "" {
		if f.Currency, err = core.ParseCurrency(v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	rows, err := s.svc.Rates.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(storage.Slice(rows, page), len(rows), page))
}

// handleCurrentRates returns today's rate to USD per currency, USD included.
func (s *Server) handleCurrentRates(w http.ResponseWriter, r *http.Request) {
	table, err := s.svc.Rates.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleImportRatesJSON(w http.ResponseWriter, r *http.Request) {
	s.importRates(w, r, s.svc.Rates.ImportJSON)
}

func (s *Server) handleImportRatesCSV(w http.ResponseWriter, r *http.Request) {
	s.importRates(w, r, s.svc.Rates.ImportCSV)
}

// importRates reads the batch from a multipart "file" part or, for any
// other content type, from the raw body.
func (s *Server) importRates(w http.ResponseWriter, r *http.Request, load func(context.Context, io.Reader) (int, error)) {
	body, closeBody, err := uploadBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeBody()

	n, err := load(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{
		Imported: n,
		Message:  fmt.Sprintf("Successfully imported %d exchange rates", n),
	})
}

func uploadBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, noop, nil
	}
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return nil, noop, fmt.Errorf("%w: invalid multipart body", errMalformedRequest)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, noop, fieldError("file", "multipart part is required")
	}
	return file, func() { _ = file.Close() }, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Settings.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.Settings.Update(r.Context(), services.SettingsUpdate{DefaultCurrency: req.DefaultCurrency})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
