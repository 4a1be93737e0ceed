package api

import (
	"errors"
	"net/http"

	"dexalert/internal/scan"
	"dexalert/internal/scheduler"
)

// handleScan runs one scan cycle over every user
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	res, ok := s.runScan(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"processed": res.Processed,
		"failed":    res.Failed,
		"alerts":    res.Alerts,
		"cycle_id":  res.CycleID,
	})
}

// handleCron runs a scan and, during the UTC midnight minute, the daily summary
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	res, ok := s.runScan(w, r)
	if !ok {
		return
	}

	midnight := scan.IsSummaryTime(s.now())
	if midnight {
		if _, err := s.summarizer.DailySummary(r.Context()); err != nil {
			respondErr(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"processed":   res.Processed,
		"midnightUTC": midnight,
	})
}

// handleDailySummary broadcasts the summary message to every user
func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	sent, err := s.summarizer.DailySummary(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "sent": sent})
}

func (s *Server) runScan(w http.ResponseWriter, r *http.Request) (scan.Result, bool) {
	res, err := s.scanner.RunNow(r.Context())
	if errors.Is(err, scheduler.ErrScanInProgress) {
		respondError(w, http.StatusConflict, SCAN_IN_PROGRESS)
		return res, false
	}
	if err != nil {
		respondErr(w, err)
		return res, false
	}
	return res, true
}
