package api

import (
	"context"
	"net/http"
	"time"
)

// handlePair fetches the current snapshot of a trading pair
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	pair, err := s.provider.GetPair(ctx, r.PathValue("chain"), r.PathValue("pair"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// handleDetect lists the chains a token address trades on
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	candidates, err := s.watchlist.Detect(ctx, r.PathValue("address"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, candidates)
}
