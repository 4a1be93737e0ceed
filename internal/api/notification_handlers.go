package api

import (
	"net/http"
	"sort"

	"dexalert/internal/models"
)

// handleNotificationChannels lists the registered delivery channels
func (s *Server) handleNotificationChannels(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	channels := s.notifier.Channels()
	sort.Strings(channels)
	respondJSON(w, http.StatusOK, channels)
}

// handleTestNotification sends a test message to one user on every channel
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	errs := s.notifier.Notify(r.Context(), models.Notification{
		UserID:  id,
		Kind:    models.KindSummary,
		Title:   "Test Notification",
		Message: "✅ <b>Test notification</b>\n\nAlerts for this account are delivered here.",
	})

	failed := make([]string, 0, len(errs))
	for _, err := range errs {
		failed = append(failed, err.Error())
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     len(errs) == 0,
		"failed": failed,
	})
}
