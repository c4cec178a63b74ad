// Package main provides the Lambda entry point for the upload API.
//
// Browsers never ship media through API Gateway; they request a
// presigned S3 PUT URL (or a presigned multipart upload for large
// videos) and upload directly to the media bucket. The S3 ObjectCreated
// event then drives the processing pipeline.
//
// Endpoints:
//
//	GET  /v1/health                    — health check
//	GET  /v1/upload-url                — presigned S3 PUT URL
//	POST /v1/upload-multipart/init     — create multipart upload + presign part URLs
//	POST /v1/upload-multipart/complete — assemble parts
//	POST /v1/upload-multipart/abort    — abort and clean up
package main

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/mediafile"
	"github.com/nlawson/birdtag/internal/webutil"
)

// uploadPrefix is where fresh uploads land; the processing Lambda only
// reacts to this prefix.
const uploadPrefix = "uploads/"

// Presign expiry bounds for the single-PUT path.
const (
	defaultPresignExpiry = 15 * time.Minute
	maxPresignExpiry     = time.Hour
)

// AWS clients initialized at cold start.
var (
	s3Client    *s3.Client
	presigner   *s3.PresignClient
	mediaBucket string
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

	lambdaboot.StartupLog("upload-lambda", initStart).
		S3Bucket("mediaBucket", mediaBucket).
		Log()
}

func main() {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", handleHealth)
	mux.HandleFunc("/v1/upload-url", handleUploadURL)
	mux.HandleFunc("/v1/upload-multipart/init", handleMultipartInit)
	mux.HandleFunc("/v1/upload-multipart/complete", handleMultipartComplete)
	mux.HandleFunc("/v1/upload-multipart/abort", handleMultipartAbort)

	handler := webutil.WithPreflight(webutil.WithMetrics(mux))

	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}

// --- Health ---

func handleHealth(w http.ResponseWriter, r *http.Request) {
	webutil.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "birdtag-upload",
	})
}

// --- Presigned Upload URL ---

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
	FileID    string `json:"fileId"`
	ExpiresIn int    `json:"expiresIn"`
}

// GET /v1/upload-url?filename=...&expires_in=...
//
// Validates the extension against the media allow-list, generates an
// uploads/<uuid><ext> key, and presigns an S3 PUT. Content-Length is
// not signed: S3 would require the upload to be exactly that size, not
// at most. Oversized objects are rejected by the size check in the
// processing Lambda instead.
func handleUploadURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		webutil.MethodNotAllowed(w, r)
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		webutil.RespondError(w, r, apierr.Invalid("filename is required"))
		return
	}
	filename = filepath.Base(filename)
	if err := validateFilename(filename); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	kind, ok := mediafile.Classify(filename)
	if !ok {
		webutil.RespondError(w, r, apierr.New(apierr.CodeInvalidFileType, http.StatusBadRequest,
			"unsupported file type: "+filepath.Ext(filename)))
		return
	}

	expiry := defaultPresignExpiry
	if raw := r.URL.Query().Get("expires_in"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 1 {
			webutil.RespondError(w, r, apierr.Invalid("expires_in must be a positive integer (seconds)"))
			return
		}
		expiry = time.Duration(seconds) * time.Second
		if expiry > maxPresignExpiry {
			expiry = maxPresignExpiry
		}
	}

	fileID := uuid.NewString()
	key := uploadPrefix + fileID + filepath.Ext(filename)
	contentType := mediafile.ContentType(filename)

	result, err := presigner.PresignPutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      &mediaBucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to generate presigned URL")
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to generate upload URL", err))
		return
	}

	log.Info().
		Str("fileKey", key).
		Str("kind", string(kind)).
		Dur("expiry", expiry).
		Msg("Upload URL issued")

	webutil.RespondJSON(w, http.StatusOK, uploadURLResponse{
		UploadURL: result.URL,
		FileKey:   key,
		FileID:    fileID,
		ExpiresIn: int(expiry.Seconds()),
	})
}
