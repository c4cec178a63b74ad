package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/s3util"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/tags"
	"github.com/nlawson/birdtag/internal/webutil"
)

// searchResult is one matched file. URL is a presigned link: the
// thumbnail for images, the file itself otherwise.
type searchResult struct {
	FileKey         string   `json:"fileKey"`
	FileType        string   `json:"fileType"`
	URL             string   `json:"url"`
	Tags            []string `json:"tags"`
	DetectedSpecies []string `json:"detectedSpecies,omitempty"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Count   int            `json:"count"`
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var criteria tags.Criteria
	switch r.Method {
	case http.MethodGet:
		criteria = criteriaFromQuery(r.URL.Query().Get("q"))
	case http.MethodPost:
		if err := webutil.DecodeJSON(r, &criteria); err != nil {
			webutil.RespondError(w, r, err)
			return
		}
	default:
		webutil.MethodNotAllowed(w, r)
		return
	}
	if len(criteria) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("at least one species criterion is required"))
		return
	}

	s.respondMatches(w, r, func(rec *store.MediaRecord) bool {
		return tags.MatchesCriteria(rec.Tags, criteria)
	})
}

func (s *server) handleSearchBySpecies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req struct {
		Species []string `json:"species"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if len(req.Species) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("species list is required"))
		return
	}

	s.respondMatches(w, r, func(rec *store.MediaRecord) bool {
		return tags.HasAnySpecies(rec.Tags, req.Species)
	})
}

func (s *server) handleSearchByFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req struct {
		FileKey string `json:"fileKey"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if req.FileKey == "" {
		webutil.RespondError(w, r, apierr.Invalid("fileKey is required"))
		return
	}

	ref, err := s.store.GetMedia(r.Context(), req.FileKey)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load file", err))
		return
	}
	if ref == nil {
		webutil.RespondError(w, r, apierr.NotFound("file not found"))
		return
	}

	species := tags.FromTags(ref.Tags).Species()
	if len(species) == 0 {
		webutil.RespondJSON(w, http.StatusOK, searchResponse{Results: []searchResult{}})
		return
	}

	s.respondMatches(w, r, func(rec *store.MediaRecord) bool {
		// The reference file itself is not a result.
		return rec.FileKey != ref.FileKey && tags.HasAnySpecies(rec.Tags, species)
	})
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req struct {
		ThumbnailURL string `json:"thumbnailUrl"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if req.ThumbnailURL == "" {
		webutil.RespondError(w, r, apierr.Invalid("thumbnailUrl is required"))
		return
	}

	thumbKey := s3util.KeyFromURL(req.ThumbnailURL)
	if thumbKey == "" {
		webutil.RespondError(w, r, apierr.Invalid("could not parse thumbnail URL"))
		return
	}

	records, err := s.store.ScanMedia(r.Context())
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "search failed", err))
		return
	}
	for _, rec := range records {
		if rec.ThumbnailKey == thumbKey {
			fileURL, err := s.presign(r.Context(), rec.FileKey)
			if err != nil {
				webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to sign file URL", err))
				return
			}
			webutil.RespondJSON(w, http.StatusOK, map[string]string{
				"fileKey": rec.FileKey,
				"url":     fileURL,
			})
			return
		}
	}
	webutil.RespondError(w, r, apierr.NotFound("no file for thumbnail"))
}

// respondMatches scans the table, filters to completed tagged records
// matching the predicate, and responds with presigned URLs.
func (s *server) respondMatches(w http.ResponseWriter, r *http.Request, match func(*store.MediaRecord) bool) {
	records, err := s.store.ScanMedia(r.Context())
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "search failed", err))
		return
	}

	results := []searchResult{}
	for _, rec := range records {
		if rec.Status != store.StatusCompleted || len(rec.Tags) == 0 {
			continue
		}
		if !match(rec) {
			continue
		}

		link, err := s.resultURL(r.Context(), rec)
		if err != nil {
			log.Warn().Err(err).Str("key", rec.FileKey).Msg("Failed to presign result URL")
			continue
		}
		results = append(results, searchResult{
			FileKey:         rec.FileKey,
			FileType:        rec.FileType,
			URL:             link,
			Tags:            rec.Tags,
			DetectedSpecies: rec.DetectedSpecies,
		})
	}

	webutil.RespondJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}

func (s *server) resultURL(ctx context.Context, rec *store.MediaRecord) (string, error) {
	key := rec.FileKey
	if rec.FileType == "image" && rec.ThumbnailKey != "" {
		key = rec.ThumbnailKey
	}
	return s.presign(ctx, key)
}

// criteriaFromQuery folds a free-text query into tag criteria: each
// species token counts once per repetition ("crow crow pigeon" means
// at least two crows and one pigeon).
func criteriaFromQuery(q string) tags.Criteria {
	criteria := tags.Criteria{}
	for _, token := range strings.FieldsFunc(q, func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		species := strings.ToLower(strings.TrimSpace(token))
		if species == "" {
			continue
		}
		criteria[species]++
	}
	return criteria
}
