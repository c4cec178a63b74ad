// Package main provides the Lambda entry point for tag-based search.
//
// Endpoints:
//
//	POST /v1/search            tag criteria AND-match, body {"crow": 3, ...}
//	GET  /v1/search?q=...      free-text query, species counted by repetition
//	POST /v1/search-by-species OR-match on a species list
//	POST /v1/search-by-file    OR-match using another file's species
//	POST /v1/resolve           thumbnail URL -> original file URL
//	GET  /v1/stats/species/{species}
//	GET  /v1/stats/system
//
// Search scans the media table and filters in memory. Only completed
// records with tags participate.
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

const presignExpiry = 15 * time.Minute

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
		presign: func(ctx context.Context, key string) (string, error) {
			return s3util.PresignGet(ctx, s3s.Presigner, s3s.Bucket, key, presignExpiry)
		},
	}

	lambdaboot.StartupLog("search-lambda", initStart).
		S3Bucket("mediaBucket", s3s.Bucket).
		DynamoTable("media", logging.EnvOrDefault("MEDIA_TABLE_NAME", "")).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.HandleFunc("/v1/search", srv.handleSearch)
	mux.HandleFunc("/v1/search-by-species", srv.handleSearchBySpecies)
	mux.HandleFunc("/v1/search-by-file", srv.handleSearchByFile)
	mux.HandleFunc("/v1/resolve", srv.handleResolve)
	mux.HandleFunc("/v1/stats/species/", srv.handleSpeciesStats)
	mux.HandleFunc("/v1/stats/system", srv.handleSystemStats)

	handler := webutil.WithPreflight(webutil.WithMetrics(mux))
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "search"})
}

// server binds the handlers to their dependencies. presign is swapped
// in tests.
type server struct {
	store   store.MediaStore
	presign func(ctx context.Context, key string) (string, error)
}
