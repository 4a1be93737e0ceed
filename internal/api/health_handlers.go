package api

import (
	"net/http"
	"time"

	"dexalert/internal/presets"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	}
	if s.scanner != nil {
		status["scanning"] = s.scanner.Running()
	}
	if s.hub != nil {
		status["websocket_clients"] = s.hub.Clients()
	}
	respondJSON(w, http.StatusOK, status)
}

type presetInfo struct {
	Key         presets.Key `json:"key"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	RequiresAI  bool        `json:"requires_ai"`
}

// handlePresets lists the alert preset catalog
func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	all := presets.All()
	out := make([]presetInfo, 0, len(all))
	for _, p := range all {
		out = append(out, presetInfo{
			Key:         p.Key,
			Name:        p.Name,
			Description: p.Description,
			RequiresAI:  p.Key.IsAI(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
