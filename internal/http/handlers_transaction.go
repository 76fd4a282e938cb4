package http

import (
	"net/http"

	"conti/internal/services"
	"conti/internal/storage"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.svc.Transactions.Create(r.Context(), services.NewTransaction{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Description: sanitizeInput(req.Description),
		Date:        req.Date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePage(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := storage.TransactionFilter{Page: page}
	if f.AccountID, err = queryID(q, "account_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.CategoryID, err = queryID(q, "category_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.From, err = queryDate(q, "start_date"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.To, err = queryDate(q, "end_date"); err != nil {
		writeError(w, r, err)
		return
	}

	items, total, err := s.svc.Transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, page))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u := services.TransactionUpdate{
		Amount:      req.Amount,
		Description: sanitizePtr(req.Description),
		Date:        req.Date,
	}
	if req.CategoryID.Set {
		u.CategoryID = req.CategoryID.Value
		u.ClearCategory = req.CategoryID.Value == nil
	}

	t, err := s.svc.Transactions.Update(r.Context(), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Transactions.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
