// Package main provides the Lambda entry point for manual tag editing
// and file deletion.
//
// Endpoints:
//
//	POST /v1/tags          bulk add (operation 1) or remove (operation 0)
//	POST /v1/files/delete  delete objects, derived artifacts, and records
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/s3util"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/webutil"
)

var srv *server

func init() {
	if !lambdaboot.InLambda() {
		return
	}

	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(awsClients.Config, "MEDIA_BUCKET_NAME")
	mediaStore := lambdaboot.InitDynamo(awsClients.Config, "MEDIA_TABLE_NAME")

	srv = &server{
		store: mediaStore,
		deleteObjects: func(ctx context.Context, keys []string) int {
			return s3util.DeleteObjects(ctx, s3s.Client, s3s.Bucket, keys)
		},
	}

	lambdaboot.StartupLog("tag-lambda", initStart).
		S3Bucket("mediaBucket", s3s.Bucket).
		DynamoTable("media", logging.EnvOrDefault("MEDIA_TABLE_NAME", "")).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.HandleFunc("/v1/tags", srv.handleTags)
	mux.HandleFunc("/v1/files/delete", srv.handleDelete)

	handler := webutil.WithPreflight(webutil.WithMetrics(mux))
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "tag"})
}

// server binds the handlers to their dependencies. deleteObjects is
// swapped in tests.
type server struct {
	store         store.MediaStore
	deleteObjects func(ctx context.Context, keys []string) int
}
