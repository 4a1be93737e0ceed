package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// handleWebSocket streams one user's alerts to a client. The ?user=<id>
// query parameter is required.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" || strings.ContainsAny(user, ". ") {
		respondError(w, http.StatusBadRequest, USER_REQUIRED)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "api").Msg("websocket upgrade failed")
		return
	}

	log.Info().Str("component", "api").Str("remote", r.RemoteAddr).Str("user", user).Msg("websocket client connected")

	s.hub.Serve(conn, user)

	log.Info().Str("component", "api").Str("remote", r.RemoteAddr).Msg("websocket client disconnected")
}
