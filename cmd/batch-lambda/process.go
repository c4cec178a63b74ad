package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/webutil"
)

// maxBatchFiles caps one job's fan-out.
const maxBatchFiles = 500

type processRequest struct {
	Files []string `json:"files"`
	Type  string   `json:"type"`
}

type processResponse struct {
	JobID      string `json:"jobId"`
	TotalFiles int    `json:"totalFiles"`
	Dispatched int    `json:"dispatched"`
}

// detectPayload is the async payload sent to the detection Lambdas.
type detectPayload struct {
	FileKey string `json:"fileKey"`
	JobID   string `json:"jobId"`
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req processRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if len(req.Files) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("files list is required"))
		return
	}
	if len(req.Files) > maxBatchFiles {
		webutil.RespondError(w, r, apierr.Invalid("too many files in one batch"))
		return
	}

	var function string
	switch req.Type {
	case "image":
		function = s.detectImage
	case "audio":
		function = s.detectAudio
	default:
		webutil.RespondError(w, r, apierr.Invalid("type must be image or audio"))
		return
	}

	job := &store.BatchJob{
		ID:         uuid.NewString(),
		Type:       req.Type,
		Status:     store.JobStatusRunning,
		TotalFiles: len(req.Files),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.PutBatchJob(r.Context(), job); err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to create job", err))
		return
	}

	dispatched := 0
	for _, fileKey := range req.Files {
		payload, err := json.Marshal(detectPayload{FileKey: fileKey, JobID: job.ID})
		if err == nil {
			err = s.invoke(r.Context(), function, payload)
		}
		if err != nil {
			log.Warn().Err(err).Str("key", fileKey).Str("jobId", job.ID).Msg("Failed to dispatch file")
			// Count the file as failed so the job can still reach a
			// terminal state.
			if reportErr := s.reporter.Report(r.Context(), job.ID, err); reportErr != nil {
				log.Error().Err(reportErr).Str("jobId", job.ID).Msg("Failed to record dispatch failure")
			}
			continue
		}
		dispatched++
	}

	log.Info().
		Str("jobId", job.ID).
		Str("type", req.Type).
		Int("files", len(req.Files)).
		Int("dispatched", dispatched).
		Msg("Batch job started")
	webutil.RespondJSON(w, http.StatusAccepted, processResponse{
		JobID:      job.ID,
		TotalFiles: len(req.Files),
		Dispatched: dispatched,
	})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		webutil.MethodNotAllowed(w, r)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/v1/batch/status/")
	if jobID == "" || strings.Contains(jobID, "/") {
		webutil.RespondError(w, r, apierr.Invalid("job id is required"))
		return
	}

	job, err := s.store.GetBatchJob(r.Context(), jobID)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load job", err))
		return
	}
	if job == nil {
		webutil.RespondError(w, r, apierr.NotFound("job not found"))
		return
	}
	webutil.RespondJSON(w, http.StatusOK, job)
}
