package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
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
		log.Error().Err(err).Str("key", req.FileKey).Msg("Image detection failed")
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

	boxes, cached, err := detections(ctx, record)
	if err != nil {
		return err
	}
	if cached {
		rec.Count("DetectionCacheHitCount")
	}

	summary := summarizeBoxes(boxes)
	record.Tags = summary.Tags()
	record.DetectedSpecies = summary.Species()
	record.DetectionBoxes = boxes
	record.Source = store.SourceYOLO
	record.DetectionResults = &store.DetectionCache{
		Detections: boxes,
		Timestamp:  time.Now().Unix(),
	}

	if err := relocate(ctx, record, summary.TopSpecies()); err != nil {
		return err
	}

	if err := mediaStore.PutMedia(ctx, record); err != nil {
		return fmt.Errorf("store detection results: %w", err)
	}

	publish(ctx, record)

	log.Info().
		Str("key", record.FileKey).
		Strs("species", record.DetectedSpecies).
		Int("boxes", len(boxes)).
		Bool("cached", cached).
		Msg("Image detection complete")
	return nil
}

// detections returns the bounding boxes for the record, reusing cached
// results when they are still fresh. Videos are detected on their
// preview frame.
func detections(ctx context.Context, record *store.MediaRecord) ([]store.DetectionBox, bool, error) {
	if record.DetectionResults.Fresh(cacheTTL) {
		return record.DetectionResults.Detections, true, nil
	}

	sourceKey := record.FileKey
	if record.FileType == "video" {
		if record.PreviewKey == "" {
			return nil, false, fmt.Errorf("video %s has no preview frame", record.FileKey)
		}
		sourceKey = record.PreviewKey
	}

	imageData, err := downloadBytes(ctx, sourceKey)
	if err != nil {
		return nil, false, err
	}

	found, err := detector.Detect(ctx, imageData, confidenceThreshold)
	if err != nil {
		return nil, false, fmt.Errorf("detect %s: %w", sourceKey, err)
	}

	boxes := make([]store.DetectionBox, len(found))
	for i, d := range found {
		boxes[i] = store.DetectionBox{
			Species:    d.Species,
			Confidence: d.Confidence,
			X:          d.Box.X,
			Y:          d.Box.Y,
			Width:      d.Box.Width,
			Height:     d.Box.Height,
		}
	}
	return boxes, false, nil
}

// relocate moves the object into its species folder and rebinds the
// record to the new key. No-op when nothing was detected or the file
// already lives under species/.
func relocate(ctx context.Context, record *store.MediaRecord, topSpecies string) error {
	if topSpecies == "" {
		return nil
	}

	newKey, err := s3util.MoveToSpeciesFolder(ctx, s3Client, mediaBucket, record.FileKey, topSpecies)
	if err != nil {
		return fmt.Errorf("relocate %s: %w", record.FileKey, err)
	}
	if newKey == record.FileKey {
		return nil
	}

	oldKey := record.FileKey
	record.FileKey = newKey
	record.FileURL = fmt.Sprintf("s3://%s/%s", mediaBucket, newKey)
	if err := mediaStore.DeleteMedia(ctx, oldKey); err != nil {
		log.Warn().Err(err).Str("key", oldKey).Msg("Failed to delete stale media record")
	}
	return nil
}

// publish sends the detection event and records dispatch history.
// Publish failures are logged, not returned: the tags are already
// persisted and notification is best-effort.
func publish(ctx context.Context, record *store.MediaRecord) {
	if len(record.DetectedSpecies) == 0 {
		return
	}

	messageID, err := publisher.PublishDetection(ctx, notify.DetectionEvent{
		FileKey: record.FileKey,
		FileURL: record.FileURL,
		Species: record.DetectedSpecies,
		Source:  record.Source,
	})
	if err != nil {
		log.Warn().Err(err).Str("key", record.FileKey).Msg("Failed to publish detection event")
		return
	}
	notify.RecordDispatch(ctx, mediaStore, record.DetectedSpecies, record.FileKey, messageID)
}

func downloadBytes(ctx context.Context, key string) ([]byte, error) {
	result, err := s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &mediaBucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func summarizeBoxes(boxes []store.DetectionBox) tags.Summary {
	flat := make([]tags.Detection, len(boxes))
	for i, b := range boxes {
		flat[i] = tags.Detection{Species: b.Species, Confidence: b.Confidence}
	}
	return tags.Summarize(flat)
}
