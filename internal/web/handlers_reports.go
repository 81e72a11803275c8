package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleReport returns the run report as JSON.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Report(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleReportCSV downloads the flat list of identifiers that need follow-up.
func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	report, err := s.service.Report(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_followup.csv"`, runID))
	if err := report.WriteCSV(w); err != nil {
		// Headers are already sent; log only.
		s.logRequestError(r, "report csv write failed", err)
	}
}

// handleHistory lists saved reports, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, r, badRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := s.service.History(r.Context(), r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
