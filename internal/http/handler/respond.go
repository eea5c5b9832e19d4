package handler

import (
	"errors"
	"net/http"
	"strconv"

	"ideavote/internal/comment"
	"ideavote/internal/vote"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// writeError maps domain sentinels to status codes. Anything unmapped is a
// 500 and gets logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vote.ErrValidation), errors.Is(err, comment.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, vote.ErrDuplicateRequest):
		writeMessage(w, http.StatusConflict, "Duplicate vote attempt detected.")
	case errors.Is(err, comment.ErrEditWindowClosed):
		writeMessage(w, http.StatusForbidden, "Edit timeframe exceeded (10 minutes).")
	case errors.Is(err, comment.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "Not authorized to modify this comment.")
	case errors.Is(err, comment.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found.")
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "Server error.")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	return dec.Decode(v)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
