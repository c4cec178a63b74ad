// Package main provides the Lambda entry point for bird detection on
// audio recordings. It runs the BirdNET TFLite model locally inside the
// Lambda container: the model and label files are pulled from the model
// bucket into /tmp once per container at cold start, then reused across
// invocations. Detected species are written back to the media record,
// the file is relocated into its species folder, and a detection event
// is published to SNS.
package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/batchjob"
	"github.com/nlawson/birdtag/internal/birdnet"
	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/notify"
	"github.com/nlawson/birdtag/internal/s3util"
	"github.com/nlawson/birdtag/internal/store"
)

const (
	defaultModelKey  = "models/birdnet.tflite"
	defaultLabelsKey = "models/labels.txt"

	defaultConfidenceThreshold = 0.5
	defaultCacheTTL            = time.Hour
)

var (
	s3Client    *s3.Client
	mediaBucket string
	mediaStore  *store.DynamoStore
	model       *birdnet.Model
	publisher   *notify.Publisher
	reporter    *batchjob.Reporter

	confidenceThreshold float64
	cacheTTL            time.Duration
)

func init() {
	if !lambdaboot.InLambda() {
		return
	}

	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(awsClients.Config, "MEDIA_BUCKET_NAME")
	s3Client = s3s.Client
	mediaBucket = s3s.Bucket
	mediaStore = lambdaboot.InitDynamo(awsClients.Config, "MEDIA_TABLE_NAME")

	snsClient, topicARN := lambdaboot.InitSNS(awsClients.Config, "DETECTION_TOPIC_ARN")
	publisher = notify.NewPublisher(snsClient, topicARN)
	reporter = batchjob.NewReporter(mediaStore, lambdaboot.InitEventBridge(awsClients.Config), os.Getenv("BATCH_EVENT_BUS"))

	confidenceThreshold = envFloat("CONFIDENCE_THRESHOLD", defaultConfidenceThreshold)
	cacheTTL = envDuration("DETECTION_CACHE_TTL_SECONDS", defaultCacheTTL)
	sensitivity := envFloat("BIRDNET_SENSITIVITY", birdnet.DefaultSensitivity)

	modelBucket := logging.EnvOrDefault("MODEL_BUCKET_NAME", mediaBucket)
	modelKey := logging.EnvOrDefault("MODEL_KEY", defaultModelKey)
	labelsKey := logging.EnvOrDefault("LABELS_KEY", defaultLabelsKey)
	model = loadModel(modelBucket, modelKey, labelsKey, sensitivity)

	lambdaboot.StartupLog("detect-audio-lambda", initStart).
		S3Bucket("mediaBucket", mediaBucket).
		S3Bucket("modelBucket", modelBucket).
		DynamoTable("media", logging.EnvOrDefault("MEDIA_TABLE_NAME", "")).
		Config("modelKey", modelKey).
		Config("sensitivity", strconv.FormatFloat(sensitivity, 'f', -1, 64)).
		Config("confidenceThreshold", strconv.FormatFloat(confidenceThreshold, 'f', -1, 64)).
		Log()
}

func main() {
	lambda.Start(handler)
}

// loadModel pulls the model and label files into /tmp and loads the
// TFLite interpreter. Fatals on failure: the Lambda is useless without
// its model.
func loadModel(bucket, modelKey, labelsKey string, sensitivity float64) *birdnet.Model {
	ctx := context.Background()
	modelPath := filepath.Join(os.TempDir(), filepath.Base(modelKey))
	labelPath := filepath.Join(os.TempDir(), filepath.Base(labelsKey))

	dlStart := time.Now()
	if err := s3util.DownloadToFile(ctx, s3Client, bucket, modelKey, modelPath); err != nil {
		log.Fatal().Err(err).Str("key", modelKey).Msg("Failed to download model")
	}
	if err := s3util.DownloadToFile(ctx, s3Client, bucket, labelsKey, labelPath); err != nil {
		log.Fatal().Err(err).Str("key", labelsKey).Msg("Failed to download labels")
	}

	m, err := birdnet.Load(modelPath, labelPath, sensitivity)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load BirdNET model")
	}
	log.Info().
		Int("labels", len(m.Labels())).
		Dur("elapsed", time.Since(dlStart)).
		Msg("BirdNET model loaded")
	return m
}

func envFloat(envVar string, defaultVal float64) float64 {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("envVar", envVar).Str("value", raw).Msg("Invalid float value, using default")
		return defaultVal
	}
	return v
}

func envDuration(envVar string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		log.Warn().Str("envVar", envVar).Str("value", raw).Msg("Invalid seconds value, using default")
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
