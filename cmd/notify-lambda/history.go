package main

import (
	"net/http"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/webutil"
)

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		webutil.MethodNotAllowed(w, r)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		webutil.RespondError(w, r, apierr.Invalid("email query parameter is required"))
		return
	}

	records, err := s.store.GetNotifications(r.Context(), email)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load history", err))
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"email":         email,
		"notifications": records,
		"count":         len(records),
	})
}

type notifyStats struct {
	Total     int            `json:"total"`
	BySpecies map[string]int `json:"bySpecies"`
	ByEmail   map[string]int `json:"byEmail"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		webutil.MethodNotAllowed(w, r)
		return
	}

	records, err := s.store.ScanNotifications(r.Context())
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load history", err))
		return
	}

	stats := notifyStats{
		BySpecies: map[string]int{},
		ByEmail:   map[string]int{},
	}
	for _, rec := range records {
		stats.Total++
		stats.BySpecies[rec.Species]++
		stats.ByEmail[rec.Email]++
	}
	webutil.RespondJSON(w, http.StatusOK, stats)
}
