package handler

import (
	"net/http"

	"ideavote/internal/auth"
	"ideavote/internal/comment"

	"github.com/go-chi/chi/v5"
)

type CommentHandler struct {
	Svc *comment.Service
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	var req comment.CreateInput
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad json")
		return
	}

	c, err := h.Svc.Create(r.Context(), caller.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Svc.List(r.Context(), comment.ListQuery{
		IdeaID:   q.Get("idea_id"),
		ParentID: q.Get("parent_id"),
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	var req comment.UpdateInput
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad json")
		return
	}

	c, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), caller.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete is mounted behind auth.RequireModerator.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Comment soft-deleted successfully.")
}
