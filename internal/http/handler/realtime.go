package handler

import (
	"net/http"
	"strings"

	"ideavote/internal/auth"
	"ideavote/internal/realtime"

	"github.com/rs/zerolog/log"
)

type RealtimeHandler struct {
	Hub *realtime.Hub
}

// Subscribe handles GET /ws. The socket always joins the caller's own
// channel, plus the idea's channel when ?idea= is given.
func (h *RealtimeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFromContext(r.Context())

	rooms := []string{realtime.UserChannel(caller.ID)}
	if idea := strings.TrimSpace(r.URL.Query().Get("idea")); idea != "" {
		rooms = append(rooms, realtime.IdeaChannel(idea))
	}

	if err := h.Hub.Serve(w, r, rooms); err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}
