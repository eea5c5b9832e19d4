package handler

import (
	"net/http"
	"strconv"

	"ideavote/internal/auth"
	"ideavote/internal/comment"

	"github.com/go-chi/chi/v5"
)

type NotificationHandler struct {
	Notifier *comment.Notifier
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())
	unread := unreadOnly(r)

	page, err := h.Notifier.List(r.Context(), caller.ID, queryInt(r, "page"), queryInt(r, "limit"), unread)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}

	note, err := h.Notifier.MarkRead(r.Context(), id, caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// unreadOnly reads the filter flag; the camelCase spelling is what existing
// clients send.
func unreadOnly(r *http.Request) bool {
	q := r.URL.Query()
	v := q.Get("unreadOnly")
	if v == "" {
		v = q.Get("unread_only")
	}
	b, _ := strconv.ParseBool(v)
	return b
}
