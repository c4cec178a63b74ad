package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/s3util"
	"github.com/nlawson/birdtag/internal/tags"
	"github.com/nlawson/birdtag/internal/webutil"
)

// Tag operations.
const (
	opRemove = 0
	opAdd    = 1
)

type tagRequest struct {
	URL       []string `json:"url"`
	Operation *int     `json:"operation"`
	Tags      []string `json:"tags"`
}

type tagResponse struct {
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}

func (s *server) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req tagRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if len(req.URL) == 0 || len(req.Tags) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("url and tags are required"))
		return
	}
	if req.Operation == nil || (*req.Operation != opAdd && *req.Operation != opRemove) {
		webutil.RespondError(w, r, apierr.Invalid("operation must be 0 (remove) or 1 (add)"))
		return
	}

	edit := tags.FromTags(req.Tags)
	if len(edit.Species()) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("no valid tags in request"))
		return
	}

	resp := tagResponse{}
	for _, fileURL := range req.URL {
		key := s3util.KeyFromURL(fileURL)
		rec, err := s.store.GetMedia(r.Context(), key)
		if err != nil {
			webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load file", err))
			return
		}
		if rec == nil {
			resp.Skipped = append(resp.Skipped, fileURL)
			continue
		}

		current := tags.FromTags(rec.Tags)
		if *req.Operation == opAdd {
			current.Merge(edit)
		} else {
			current.Remove(edit.Species())
		}
		rec.Tags = current.Tags()
		rec.DetectedSpecies = current.Species()

		if err := s.store.PutMedia(r.Context(), rec); err != nil {
			webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to update tags", err))
			return
		}
		resp.Updated++
	}

	log.Info().Int("updated", resp.Updated).Int("operation", *req.Operation).Msg("Bulk tag edit applied")
	webutil.RespondJSON(w, http.StatusOK, resp)
}

type deleteRequest struct {
	URL []string `json:"url"`
}

type deleteResponse struct {
	Deleted        int      `json:"deleted"`
	ObjectsDeleted int      `json:"objectsDeleted"`
	Skipped        []string `json:"skipped,omitempty"`
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req deleteRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if len(req.URL) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("url list is required"))
		return
	}

	resp := deleteResponse{}
	for _, fileURL := range req.URL {
		key := s3util.KeyFromURL(fileURL)
		rec, err := s.store.GetMedia(r.Context(), key)
		if err != nil {
			webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load file", err))
			return
		}
		if rec == nil {
			resp.Skipped = append(resp.Skipped, fileURL)
			continue
		}

		keys := []string{rec.FileKey}
		for _, derived := range []string{rec.ThumbnailKey, rec.WaveformKey, rec.PreviewKey} {
			if derived != "" {
				keys = append(keys, derived)
			}
		}
		resp.ObjectsDeleted += s.deleteObjects(r.Context(), keys)

		if err := s.store.DeleteMedia(r.Context(), rec.FileKey); err != nil {
			webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to delete record", err))
			return
		}
		resp.Deleted++
	}

	log.Info().Int("deleted", resp.Deleted).Int("objects", resp.ObjectsDeleted).Msg("Files deleted")
	webutil.RespondJSON(w, http.StatusOK, resp)
}
