// Package main provides the scheduled model health monitor. EventBridge
// triggers it periodically; each run pings the SageMaker detection
// endpoint with a tiny probe image, verifies the BirdNET label file in
// the model bucket against its expected SHA-256, and emits EMF metrics
// plus one structured report event.
package main

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
)

const defaultLabelsKey = "models/labels.txt"

var mon *monitor

func init() {
	if !lambdaboot.InLambda() {
		return
	}

	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	endpoint := lambdaboot.LoadSSMParam(awsClients.SSM, "SAGEMAKER_ENDPOINT", "/birdtag/sagemaker/endpoint", false)
	s3s := lambdaboot.InitS3(awsClients.Config, "MODEL_BUCKET_NAME")

	mon = &monitor{
		runtime:        sagemakerruntime.NewFromConfig(awsClients.Config),
		s3:             s3s.Client,
		endpoint:       endpoint,
		modelBucket:    s3s.Bucket,
		labelsKey:      logging.EnvOrDefault("LABELS_KEY", defaultLabelsKey),
		expectedSHA256: os.Getenv("LABELS_SHA256"),
		probe:          probeJPEG(),
	}

	lambdaboot.StartupLog("monitor-lambda", initStart).
		Endpoint("sagemaker", endpoint).
		S3Bucket("modelBucket", s3s.Bucket).
		Config("labelsKey", mon.labelsKey).
		Feature("labelHashCheck", mon.expectedSHA256 != "").
		Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	report := mon.run(ctx)
	report.emit()

	if !report.EndpointHealthy || !report.LabelsOK {
		log.Warn().
			Bool("endpointHealthy", report.EndpointHealthy).
			Bool("labelsOk", report.LabelsOK).
			Msg("Model health check found problems")
	}
	return nil
}

// probeJPEG encodes a 1x1 JPEG used as the endpoint ping payload. The
// detection result is irrelevant; only reachability and latency count.
func probeJPEG() []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode probe image")
	}
	return buf.Bytes()
}

// Client slices, extracted for tests.
type endpointInvoker interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}
