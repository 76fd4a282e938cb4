package http

import (
	"net/http"

	"conti/internal/category"
	"conti/internal/core"
	"conti/internal/services"
	"conti/internal/storage"
)

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := core.ParseCategoryType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := s.svc.Categories.Create(r.Context(), services.NewCategory{
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		Type:        kind,
		ParentID:    req.ParentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleListCategories filters by type and parent_id. hierarchical=true
// keeps only top-level categories.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePage(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := storage.CategoryFilter{Page: page}

	kind, err := queryCategoryType(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if kind != nil {
		f.Type = *kind
	}
	parentID, err := queryID(q, "parent_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if parentID > 0 {
		f.ParentID = &parentID
	}
	if f.RootsOnly, err = queryBool(q, "hierarchical"); err != nil {
		writeError(w, r, err)
		return
	}

	items, total, err := s.svc.Categories.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, page))
}

func (s *Server) handleCategoryHierarchy(w http.ResponseWriter, r *http.Request) {
	kind, err := queryCategoryType(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	nodes, err := s.svc.Categories.Hierarchy(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []category.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Categories.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u := services.CategoryUpdate{
		Name:        sanitizePtr(req.Name),
		Description: sanitizePtr(req.Description),
	}
	if req.Type != nil {
		kind, err := core.ParseCategoryType(*req.Type)
		if err != nil {
			writeError(w, r, err)
			return
		}
		u.Type = &kind
	}
	if req.ParentID.Set {
		u.ParentID = req.ParentID.Value
		u.ClearParent = req.ParentID.Value == nil
	}

	c, err := s.svc.Categories.Update(r.Context(), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCategory also removes children and their budgets.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Categories.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
