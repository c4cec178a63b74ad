package main

import (
	"net/http"
	"strings"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/tags"
	"github.com/nlawson/birdtag/internal/webutil"
)

type speciesStats struct {
	Species    string `json:"species"`
	FileCount  int    `json:"fileCount"`
	TotalCount int    `json:"totalCount"`
}

func (s *server) handleSpeciesStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		webutil.MethodNotAllowed(w, r)
		return
	}

	species := strings.ToLower(strings.TrimPrefix(r.URL.Path, "/v1/stats/species/"))
	if species == "" || strings.Contains(species, "/") {
		webutil.RespondError(w, r, apierr.Invalid("species is required"))
		return
	}

	records, err := s.store.ScanMedia(r.Context())
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "stats failed", err))
		return
	}

	stats := speciesStats{Species: species}
	for _, rec := range records {
		if rec.Status != store.StatusCompleted {
			continue
		}
		counts := tags.ParseAll(rec.Tags)
		if n, ok := counts[species]; ok {
			stats.FileCount++
			stats.TotalCount += n
		}
	}
	webutil.RespondJSON(w, http.StatusOK, stats)
}

type systemStats struct {
	TotalFiles    int            `json:"totalFiles"`
	TaggedFiles   int            `json:"taggedFiles"`
	ByType        map[string]int `json:"byType"`
	ByStatus      map[string]int `json:"byStatus"`
	SpeciesCounts map[string]int `json:"speciesCounts"`
	TotalBytes    int64          `json:"totalBytes"`
}

func (s *server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		webutil.MethodNotAllowed(w, r)
		return
	}

	records, err := s.store.ScanMedia(r.Context())
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "stats failed", err))
		return
	}

	stats := systemStats{
		ByType:        map[string]int{},
		ByStatus:      map[string]int{},
		SpeciesCounts: map[string]int{},
	}
	for _, rec := range records {
		stats.TotalFiles++
		stats.ByType[rec.FileType]++
		stats.ByStatus[rec.Status]++
		stats.TotalBytes += rec.SizeBytes
		if len(rec.Tags) > 0 {
			stats.TaggedFiles++
		}
		for species, count := range tags.ParseAll(rec.Tags) {
			stats.SpeciesCounts[species] += count
		}
	}
	webutil.RespondJSON(w, http.StatusOK, stats)
}
