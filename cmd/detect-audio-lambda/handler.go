package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/metrics"
	"github.com/nlawson/birdtag/internal/notify"
	"github.com/nlawson/birdtag/internal/s3util"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/tags"
)

// detectRequest is the async invocation payload. JobID is set when the
// file is part of a batch job.
type detectRequest struct {
	FileKey string `json:"fileKey"`
	JobID   string `json:"jobId,omitempty"`
}

func handler(ctx context.Context, req detectRequest) error {
	start := time.Now()
	rec := metrics.New()
	defer rec.Flush()

	err := detectFile(ctx, req, rec)
	if reportErr := reporter.Report(ctx, req.JobID, err); reportErr != nil {
		log.Error().Err(reportErr).Str("jobId", req.JobID).Msg("Failed to report batch progress")
	}
	if err != nil {
		rec.Count("DetectFailureCount")
		log.Error().Err(err).Str("key", req.FileKey).Msg("Audio detection failed")
		return err
	}

	rec.Count("DetectSuccessCount")
	rec.DurationMs("DetectLatencyMs", time.Since(start))
	return nil
}

func detectFile(ctx context.Context, req detectRequest, rec *metrics.Recorder) error {
	if req.FileKey == "" {
		return fmt.Errorf("fileKey is required")
	}

	record, err := mediaStore.GetMedia(ctx, req.FileKey)
	if err != nil {
		return fmt.Errorf("load media record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("no media record for %s", req.FileKey)
	}

	segments, cached, err := analyze(ctx, record)
	if err != nil {
		return err
	}
	if cached {
		rec.Count("DetectionCacheHitCount")
	}

	summary := summarizeSegments(segments)
	record.Tags = summary.Tags()
	record.DetectedSpecies = summary.Species()
	record.DetectionSegments = segments
	record.Source = store.SourceBirdNET
	record.DetectionResults = &store.DetectionCache{
		Segments:  segments,
		Timestamp: time.Now().Unix(),
	}

	if top := summary.TopSpecies(); top != "" {
		newKey, err := s3util.MoveToSpeciesFolder(ctx, s3Client, mediaBucket, record.FileKey, top)
		if err != nil {
			return fmt.Errorf("relocate %s: %w", record.FileKey, err)
		}
		if newKey != record.FileKey {
			oldKey := record.FileKey
			record.FileKey = newKey
			record.FileURL = fmt.Sprintf("s3://%s/%s", mediaBucket, newKey)
			if err := mediaStore.DeleteMedia(ctx, oldKey); err != nil {
				log.Warn().Err(err).Str("key", oldKey).Msg("Failed to delete stale media record")
			}
		}
	}

	if err := mediaStore.PutMedia(ctx, record); err != nil {
		return fmt.Errorf("store detection results: %w", err)
	}

	if len(record.DetectedSpecies) > 0 {
		messageID, err := publisher.PublishDetection(ctx, notify.DetectionEvent{
			FileKey: record.FileKey,
			FileURL: record.FileURL,
			Species: record.DetectedSpecies,
			Source:  record.Source,
		})
		if err != nil {
			log.Warn().Err(err).Str("key", record.FileKey).Msg("Failed to publish detection event")
		} else {
			notify.RecordDispatch(ctx, mediaStore, record.DetectedSpecies, record.FileKey, messageID)
		}
	}

	log.Info().
		Str("key", record.FileKey).
		Strs("species", record.DetectedSpecies).
		Int("segments", len(segments)).
		Bool("cached", cached).
		Msg("Audio detection complete")
	return nil
}

// analyze runs BirdNET over the recording, reusing cached segments when
// they are still fresh.
func analyze(ctx context.Context, record *store.MediaRecord) ([]store.DetectionSegment, bool, error) {
	if record.DetectionResults.Fresh(cacheTTL) && len(record.DetectionResults.Segments) > 0 {
		return record.DetectionResults.Segments, true, nil
	}

	wavPath, cleanup, err := s3util.DownloadToTempFile(ctx, s3Client, mediaBucket, record.FileKey)
	if err != nil {
		return nil, false, err
	}
	defer cleanup()

	found, err := model.AnalyzeFile(wavPath, confidenceThreshold)
	if err != nil {
		return nil, false, fmt.Errorf("analyze %s: %w", record.FileKey, err)
	}

	segments := make([]store.DetectionSegment, len(found))
	for i, seg := range found {
		segments[i] = store.DetectionSegment{
			StartSec:   seg.StartSec,
			EndSec:     seg.EndSec,
			Species:    seg.Species,
			Confidence: seg.Confidence,
		}
	}
	return segments, false, nil
}

func summarizeSegments(segments []store.DetectionSegment) tags.Summary {
	flat := make([]tags.Detection, len(segments))
	for i, s := range segments {
		flat[i] = tags.Detection{Species: s.Species, Confidence: s.Confidence}
	}
	return tags.Summarize(flat)
}
