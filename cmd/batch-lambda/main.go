// Package main provides the Lambda entry point for bulk detection jobs
// and media export bundles.
//
// Endpoints:
//
//	POST /v1/batch/process       fan files out to the detection Lambdas,
//	                             returns 202 + jobId
//	GET  /v1/batch/status/{id}   job record with progress counters
//	POST /v1/batch/download      bundle media files into a ZIP, returns
//	                             a presigned download URL
//
// Detection Lambdas report per-file outcomes back through the job
// store; the invocation that completes the job emits an EventBridge
// birdtag.batch event.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/nlawson/birdtag/internal/batchjob"
	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/webutil"
)

var (
	s3Client    *s3.Client
	presigner   *s3.PresignClient
	mediaBucket string
	srv         *server
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
	presigner = s3s.Presigner
	mediaBucket = s3s.Bucket
	mediaStore := lambdaboot.InitDynamo(awsClients.Config, "MEDIA_TABLE_NAME")
	invoker := lambdaboot.InitLambdaInvoker(awsClients.Config)

	detectImage := logging.EnvOrDefault("DETECT_IMAGE_FUNCTION", "birdtag-detect-image")
	detectAudio := logging.EnvOrDefault("DETECT_AUDIO_FUNCTION", "birdtag-detect-audio")

	srv = &server{
		store:       mediaStore,
		reporter:    batchjob.NewReporter(mediaStore, lambdaboot.InitEventBridge(awsClients.Config), os.Getenv("BATCH_EVENT_BUS")),
		detectImage: detectImage,
		detectAudio: detectAudio,
		invoke: func(ctx context.Context, functionName string, payload []byte) error {
			_, err := invoker.Invoke(ctx, &awslambda.InvokeInput{
				FunctionName:   &functionName,
				InvocationType: lambdatypes.InvocationTypeEvent,
				Payload:        payload,
			})
			return err
		},
	}

	lambdaboot.StartupLog("batch-lambda", initStart).
		S3Bucket("mediaBucket", mediaBucket).
		DynamoTable("media", logging.EnvOrDefault("MEDIA_TABLE_NAME", "")).
		LambdaFunc("detectImage", detectImage).
		LambdaFunc("detectAudio", detectAudio).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.HandleFunc("/v1/batch/process", srv.handleProcess)
	mux.HandleFunc("/v1/batch/status/", srv.handleStatus)
	mux.HandleFunc("/v1/batch/download", srv.handleDownload)

	handler := webutil.WithPreflight(webutil.WithMetrics(mux))
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "batch"})
}

// server binds the handlers to their dependencies. invoke is swapped
// in tests.
type server struct {
	store       store.MediaStore
	reporter    *batchjob.Reporter
	detectImage string
	detectAudio string
	invoke      func(ctx context.Context, functionName string, payload []byte) error
}
