package http

import (
	"net/http"

	"conti/internal/core"
	"conti/internal/services"
	"conti/internal/storage"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := s.svc.Budgets.Create(r.Context(), services.NewBudget{
		Year:          req.Year,
		Month:         req.Month,
		CategoryID:    req.CategoryID,
		PlannedAmount: req.PlannedAmount,
		Currency:      req.Currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBudgetResponse(v))
}

// handleListBudgets adds the month summary when both year and month are
// given.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePage(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := storage.BudgetFilter{Page: page}

	ve := &core.ValidationError{}
	if f.Year, err = queryInt(q, "year"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.Has("year") && (f.Year < core.MinBudgetYear || f.Year > core.MaxBudgetYear) {
		ve.Add(0, "year", core.ErrInvalidYear.Error())
	}
	if f.Month, err = queryInt(q, "month"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.Has("month") && (f.Month < 1 || f.Month > 12) {
		ve.Add(0, "month", core.ErrInvalidMonth.Error())
	}
	if f.CategoryID, err = queryID(q, "category_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if err := ve.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.svc.Budgets.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetListResponse{
		pageResponse: newPage(mapSlice(list.Items, newBudgetResponse), list.Total, page),
		Summary:      list.Summary,
	})
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Budgets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetResponse(v))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := s.svc.Budgets.Update(r.Context(), id, services.BudgetUpdate{
		Year:          req.Year,
		Month:         req.Month,
		CategoryID:    req.CategoryID,
		PlannedAmount: req.PlannedAmount,
		Currency:      req.Currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetResponse(v))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Budgets.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
