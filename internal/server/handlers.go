package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stratdash/meta-insights/pkg/report"
)

// optionsFrom reads the interval selection from query parameters.
func optionsFrom(r *http.Request) report.Options {
	q := r.URL.Query()
	return report.Options{
		Period: q.Get("period"),
		Start:  q.Get("start_date"),
		End:    q.Get("end_date"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAdAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.assembler.AdAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleAccountInsights(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.AccountInsights(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.Campaigns(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAdSets(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.AdSets(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAds(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.Ads(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDemographicBreakdown(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.DemographicBreakdown(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handlePlacementBreakdown(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.PlacementBreakdown(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.assembler.Pages(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handlePageInsights(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.PageInsights(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handlePagePosts(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rep, err := s.assembler.PagePosts(r.Context(), chi.URLParam(r, "id"), limit, optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleInstagramInsights(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.InstagramInsights(r.Context(), chi.URLParam(r, "id"), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleInstagramMedia(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rep, err := s.assembler.InstagramMedia(r.Context(), chi.URLParam(r, "id"), limit, optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	rep, err := s.assembler.Overview(r.Context(), optionsFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}
