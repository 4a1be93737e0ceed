package api

import (
	"net/http"
	"strings"

	"dexalert/internal/models"
)

type alertRequest struct {
	Token    string  `json:"token"`
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
}

// handleAlerts lists or creates a user's price alerts
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		all, err := s.alerts.List(r.Context(), id)
		if err != nil {
			respondErr(w, err)
			return
		}
		if all == nil {
			all = map[string][]models.PriceAlert{}
		}
		respondJSON(w, http.StatusOK, all)

	case http.MethodPost:
		var req alertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Token) == "" {
			respondError(w, http.StatusBadRequest, ADDRESS_REQUIRED)
			return
		}

		alert, err := s.alerts.Add(r.Context(), id, strings.TrimSpace(req.Token), models.PriceAlert{
			Type:     strings.ToLower(req.Type),
			Price:    req.Price,
			MinPrice: req.MinPrice,
			MaxPrice: req.MaxPrice,
		})
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, alert)

	default:
		respondError(w, http.StatusMethodNotAllowed, METHOD_NOT_ALLOWED)
	}
}

// handleAlertsClear removes every triggered alert
func (s *Server) handleAlertsClear(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	removed, err := s.alerts.ClearTriggered(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "removed": removed})
}
