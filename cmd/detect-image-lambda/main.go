// Package main provides the Lambda entry point for bird detection on
// images and video preview frames. It is invoked asynchronously by the
// media-process Lambda (and the batch Lambda) with a file key, runs the
// image through the YOLO model hosted on a SageMaker endpoint, writes
// the resulting tags back to the media record, relocates the object
// into its species folder, and publishes a detection event to SNS.
package main

import (
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/batchjob"
	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/notify"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/yolo"
)

const (
	defaultConfidenceThreshold = 0.5
	defaultCacheTTL            = time.Hour
)

var (
	s3Client    *s3.Client
	mediaBucket string
	mediaStore  *store.DynamoStore
	detector    *yolo.Client
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

	endpoint := lambdaboot.LoadSSMParam(awsClients.SSM, "SAGEMAKER_ENDPOINT", "/birdtag/sagemaker/endpoint", false)
	detector = yolo.New(sagemakerruntime.NewFromConfig(awsClients.Config), endpoint)

	snsClient, topicARN := lambdaboot.InitSNS(awsClients.Config, "DETECTION_TOPIC_ARN")
	publisher = notify.NewPublisher(snsClient, topicARN)
	reporter = batchjob.NewReporter(mediaStore, lambdaboot.InitEventBridge(awsClients.Config), os.Getenv("BATCH_EVENT_BUS"))

	confidenceThreshold = envFloat("CONFIDENCE_THRESHOLD", defaultConfidenceThreshold)
	cacheTTL = envDuration("DETECTION_CACHE_TTL_SECONDS", defaultCacheTTL)

	lambdaboot.StartupLog("detect-image-lambda", initStart).
		S3Bucket("mediaBucket", mediaBucket).
		DynamoTable("media", logging.EnvOrDefault("MEDIA_TABLE_NAME", "")).
		Endpoint("sagemaker", endpoint).
		Config("confidenceThreshold", strconv.FormatFloat(confidenceThreshold, 'f', -1, 64)).
		Config("cacheTTL", cacheTTL.String()).
		Log()
}

func main() {
	lambda.Start(handler)
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
