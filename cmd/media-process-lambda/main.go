// Package main provides the Lambda entry point for per-file media
// processing. It is triggered by S3 ObjectCreated events on the media
// bucket's uploads/ prefix. For each file it:
//
//  1. Classifies the file by extension (image, audio, video)
//  2. Reads size and content type from S3
//  3. Generates the derived artifact (thumbnail, waveform, or preview frame)
//  4. Writes the media record
//  5. Asynchronously invokes the matching detection Lambda
//
// Per-file failures are logged and do not abort the rest of the batch.
package main

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/store"
)

var coldStart = true

// AWS clients initialized at cold start.
var (
	s3Client     *s3.Client
	mediaBucket  string
	mediaStore   *store.DynamoStore
	invoker      *awslambda.Client
	detectImage  string
	detectAudio  string
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
	invoker = lambdaboot.InitLambdaInvoker(awsClients.Config)

	detectImage = logging.EnvOrDefault("DETECT_IMAGE_FUNCTION", "birdtag-detect-image")
	detectAudio = logging.EnvOrDefault("DETECT_AUDIO_FUNCTION", "birdtag-detect-audio")

	lambdaboot.StartupLog("media-process-lambda", initStart).
		S3Bucket("mediaBucket", mediaBucket).
		DynamoTable("media", logging.EnvOrDefault("MEDIA_TABLE_NAME", "")).
		LambdaFunc("detectImage", detectImage).
		LambdaFunc("detectAudio", detectAudio).
		Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, s3Event events.S3Event) error {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "media-process-lambda").Msg("Cold start — first invocation")
	}

	for _, record := range s3Event.Records {
		key := record.S3.Object.Key
		// S3 event keys are URL-encoded; spaces arrive as '+'.
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}

		if !strings.HasPrefix(key, "uploads/") {
			log.Debug().Str("key", key).Msg("Skipping key outside uploads/ prefix")
			continue
		}

		if err := processFile(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to process file")
			// Keep going — processing is per-file independent.
		}
	}
	return nil
}
