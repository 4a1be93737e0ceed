package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"dexalert/internal/alerts"
	"dexalert/internal/db"
	"dexalert/internal/market"
	"dexalert/internal/watchlist"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set(HEADER_CONTENT_TYPE, CONTENT_TYPE_JSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"ok": false, "error": message})
}

// respondErr maps a service error onto a status code
func respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, alerts.ErrInvalidAlert),
		errors.Is(err, watchlist.ErrAddressRequired),
		errors.Is(err, db.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, alerts.ErrTokenNotWatched),
		errors.Is(err, watchlist.ErrChainNotFound),
		errors.Is(err, market.ErrNoData),
		errors.Is(err, market.ErrEmptyWatchlist):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, market.ErrAPIError):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("component", "api").Msg("request failed")
	}
	respondError(w, status, err.Error())
}

// decodeJSON reads the request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, INVALID_JSON)
		return false
	}
	return true
}

// userID returns the {id} path value. IDs are document keys, so dots are rejected.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || strings.ContainsAny(id, ". ") {
		respondError(w, http.StatusBadRequest, INVALID_USER_ID)
		return "", false
	}
	return id, true
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	respondError(w, http.StatusMethodNotAllowed, METHOD_NOT_ALLOWED)
	return false
}
