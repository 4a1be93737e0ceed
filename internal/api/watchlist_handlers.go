package api

import (
	"net/http"
	"strings"

	"dexalert/internal/models"
	"dexalert/internal/presets"
	"dexalert/internal/watchlist"
)

// handleUser returns the whole user record
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	rec, err := s.users.Load(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleWatchlist lists or adds watched tokens
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		tokens, err := s.watchlist.Tokens(r.Context(), id)
		if err != nil {
			respondErr(w, err)
			return
		}
		if tokens == nil {
			tokens = []models.WatchedToken{}
		}
		respondJSON(w, http.StatusOK, tokens)

	case http.MethodPost:
		var req watchlist.AddRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		status, token, err := s.watchlist.Add(r.Context(), id, req)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"ok":     true,
			"status": status,
			"token":  token,
		})

	default:
		respondError(w, http.StatusMethodNotAllowed, METHOD_NOT_ALLOWED)
	}
}

// handleWatchlistImport merges a public DexScreener watchlist
func (s *Server) handleWatchlistImport(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, WATCHLIST_URL_REQUIRED)
		return
	}

	added, err := s.watchlist.Import(r.Context(), id, strings.TrimSpace(req.URL))
	if err != nil {
		respondErr(w, err)
		return
	}
	if added == nil {
		added = []models.WatchedToken{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"added":  len(added),
		"tokens": added,
	})
}

// handleBlacklist reads or replaces the symbol blacklist
func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := s.users.Blacklist(r.Context(), id)
		if err != nil {
			respondErr(w, err)
			return
		}
		if list == nil {
			list = []string{}
		}
		respondJSON(w, http.StatusOK, list)

	case http.MethodPut:
		var req struct {
			Symbols []string `json:"symbols"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		symbols := make([]string, 0, len(req.Symbols))
		for _, sym := range req.Symbols {
			if sym = strings.TrimSpace(sym); sym != "" {
				symbols = append(symbols, sym)
			}
		}
		if err := s.users.SetBlacklist(r.Context(), id, symbols); err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "blacklist": symbols})

	default:
		respondError(w, http.StatusMethodNotAllowed, METHOD_NOT_ALLOWED)
	}
}

// handlePresetToggle flips a preset for the user's whole watchlist
func (s *Server) handlePresetToggle(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	key := presets.Key(strings.ToUpper(r.PathValue("key")))
	if !key.Valid() {
		respondError(w, http.StatusBadRequest, INVALID_PRESET)
		return
	}

	enabled, err := s.users.TogglePreset(r.Context(), id, string(key))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "preset": key, "enabled": enabled})
}

// handleAI switches AI predictions on or off
func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPut, http.MethodPost) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.users.SetAIEnabled(r.Context(), id, req.Enabled); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "enabled": req.Enabled})
}
