package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/mediafile"
	"github.com/nlawson/birdtag/internal/metrics"
	"github.com/nlawson/birdtag/internal/s3util"
	"github.com/nlawson/birdtag/internal/store"
)

// detectRequest is the async payload sent to the detection Lambdas.
type detectRequest struct {
	FileKey string `json:"fileKey"`
}

func processFile(ctx context.Context, key string) error {
	start := time.Now()
	rec := metrics.New().Dimension("FileKind", "unknown")
	defer rec.Flush()

	kind, ok := mediafile.Classify(key)
	if !ok {
		rec.Count("UnsupportedFileCount")
		return fmt.Errorf("unsupported file type: %s", key)
	}
	rec.Dimension("FileKind", string(kind))

	head, err := s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &mediaBucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("S3 HeadObject %s: %w", key, err)
	}

	localPath, cleanup, err := s3util.DownloadToTempFile(ctx, s3Client, mediaBucket, key)
	if err != nil {
		return err
	}
	defer cleanup()

	record := &store.MediaRecord{
		FileKey:     key,
		FileType:    string(kind),
		FileURL:     fmt.Sprintf("s3://%s/%s", mediaBucket, key),
		Status:      store.StatusProcessing,
		SizeBytes:   aws.ToInt64(head.ContentLength),
		ContentType: mediafile.ContentType(key),
	}

	switch kind {
	case mediafile.KindImage:
		err = processImage(ctx, localPath, key, record)
	case mediafile.KindAudio:
		err = processAudio(ctx, localPath, key, record)
	case mediafile.KindVideo:
		err = processVideo(ctx, localPath, key, record)
	}
	if err != nil {
		record.Status = store.StatusFailed
		if putErr := mediaStore.PutMedia(ctx, record); putErr != nil {
			log.Error().Err(putErr).Str("key", key).Msg("Failed to record failure status")
		}
		rec.Count("ProcessFailureCount")
		return err
	}

	record.Status = store.StatusCompleted
	if err := mediaStore.PutMedia(ctx, record); err != nil {
		return fmt.Errorf("store media record: %w", err)
	}

	if err := invokeDetector(ctx, kind, key); err != nil {
		// Detection is best-effort at this stage; the batch Lambda can
		// re-trigger it later.
		log.Warn().Err(err).Str("key", key).Msg("Failed to invoke detection Lambda")
	}

	rec.Count("ProcessSuccessCount")
	rec.DurationMs("ProcessLatencyMs", time.Since(start))
	log.Info().
		Str("key", key).
		Str("kind", string(kind)).
		Int64("sizeBytes", record.SizeBytes).
		Dur("elapsed", time.Since(start)).
		Msg("Processed media file")
	return nil
}

func processImage(ctx context.Context, localPath, key string, record *store.MediaRecord) error {
	thumb, err := mediafile.GenerateThumbnail(localPath, mediafile.DefaultThumbnailMaxDimension)
	if err != nil {
		return fmt.Errorf("generate thumbnail: %w", err)
	}

	thumbKey := mediafile.ThumbnailKey(key)
	if err := s3util.UploadBytes(ctx, s3Client, mediaBucket, thumbKey, thumb, "image/jpeg"); err != nil {
		return err
	}
	record.ThumbnailKey = thumbKey

	if captured, err := mediafile.CaptureTime(localPath); err == nil && !captured.IsZero() {
		record.CapturedAt = captured.UTC().Format(time.RFC3339)
	}
	return nil
}

func processAudio(ctx context.Context, localPath, key string, record *store.MediaRecord) error {
	waveform, err := mediafile.GenerateWaveform(localPath)
	if err != nil {
		return fmt.Errorf("generate waveform: %w", err)
	}

	waveformKey := mediafile.WaveformKey(key)
	if err := s3util.UploadBytes(ctx, s3Client, mediaBucket, waveformKey, waveform, "image/png"); err != nil {
		return err
	}
	record.WaveformKey = waveformKey
	return nil
}

func processVideo(ctx context.Context, localPath, key string, record *store.MediaRecord) error {
	frame, err := mediafile.ExtractVideoFrame(localPath, mediafile.DefaultThumbnailMaxDimension)
	if err != nil {
		return fmt.Errorf("extract video frame: %w", err)
	}

	previewKey := mediafile.PreviewKey(key)
	if err := s3util.UploadBytes(ctx, s3Client, mediaBucket, previewKey, frame, "image/jpeg"); err != nil {
		return err
	}
	record.PreviewKey = previewKey
	return nil
}

// invokeDetector fires the detection Lambda matching the file kind with
// an async (Event) invocation. Waveform-only audio uploads still run
// through the audio detector; videos are detected on the preview frame
// by the image detector.
func invokeDetector(ctx context.Context, kind mediafile.Kind, key string) error {
	var functionName string
	switch kind {
	case mediafile.KindImage, mediafile.KindVideo:
		functionName = detectImage
	case mediafile.KindAudio:
		functionName = detectAudio
	default:
		return nil
	}

	payload, err := json.Marshal(detectRequest{FileKey: key})
	if err != nil {
		return fmt.Errorf("marshal detect request: %w", err)
	}

	_, err = invoker.Invoke(ctx, &awslambda.InvokeInput{
		FunctionName:   &functionName,
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", functionName, err)
	}

	log.Info().Str("function", functionName).Str("key", key).Msg("Dispatched detection")
	return nil
}
