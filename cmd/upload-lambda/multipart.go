package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/mediafile"
	"github.com/nlawson/birdtag/internal/webutil"
)

// S3 multipart constraints.
const (
	// minPartSize is the minimum S3 multipart part size (5 MB).
	minPartSize int64 = 5 * 1024 * 1024
	// maxPartSize is the maximum allowed chunk size from the client (100 MB).
	maxPartSize int64 = 100 * 1024 * 1024
	// maxParts is the S3 maximum number of parts in a multipart upload.
	maxParts int64 = 10000
	// partPresignExpiry is how long each presigned part URL is valid.
	partPresignExpiry = 60 * time.Minute
)

// --- Init ---

type multipartInitRequest struct {
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	ChunkSize int64  `json:"chunkSize"`
}

type partURL struct {
	PartNumber int32  `json:"partNumber"`
	URL        string `json:"url"`
}

type multipartInitResponse struct {
	UploadID string    `json:"uploadId"`
	FileKey  string    `json:"fileKey"`
	FileID   string    `json:"fileId"`
	PartURLs []partURL `json:"partUrls"`
}

// POST /v1/upload-multipart/init
//
// Creates an S3 multipart upload and batch-presigns all UploadPart
// URLs, eliminating per-part round trips from the browser.
func handleMultipartInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req multipartInitRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	if req.Filename == "" {
		webutil.RespondError(w, r, apierr.Invalid("filename is required"))
		return
	}
	req.Filename = filepath.Base(req.Filename)
	if err := validateFilename(req.Filename); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	kind, ok := mediafile.Classify(req.Filename)
	if !ok {
		webutil.RespondError(w, r, apierr.New(apierr.CodeInvalidFileType, http.StatusBadRequest,
			"unsupported file type: "+filepath.Ext(req.Filename)))
		return
	}

	if req.FileSize <= 0 {
		webutil.RespondError(w, r, apierr.Invalid("fileSize must be positive"))
		return
	}
	if req.FileSize > sizeLimit(kind) {
		webutil.RespondError(w, r, apierr.New(apierr.CodeFileTooLarge, http.StatusBadRequest,
			fmt.Sprintf("file too large: %d bytes (max %d)", req.FileSize, sizeLimit(kind))))
		return
	}
	if req.ChunkSize < minPartSize {
		webutil.RespondError(w, r, apierr.Invalid(fmt.Sprintf("chunkSize must be at least %d bytes (5 MB)", minPartSize)))
		return
	}
	if req.ChunkSize > maxPartSize {
		webutil.RespondError(w, r, apierr.Invalid(fmt.Sprintf("chunkSize must be at most %d bytes (100 MB)", maxPartSize)))
		return
	}

	numParts := int64(math.Ceil(float64(req.FileSize) / float64(req.ChunkSize)))
	if numParts > maxParts {
		webutil.RespondError(w, r, apierr.Invalid(fmt.Sprintf("too many parts: %d (max %d); increase chunkSize", numParts, maxParts)))
		return
	}

	fileID := uuid.NewString()
	key := uploadPrefix + fileID + filepath.Ext(req.Filename)
	contentType := mediafile.ContentType(req.Filename)

	log.Info().
		Str("filename", req.Filename).
		Str("fileKey", key).
		Int64("fileSize", req.FileSize).
		Int64("numParts", numParts).
		Msg("Creating multipart upload")

	createResult, err := s3Client.CreateMultipartUpload(context.Background(), &s3.CreateMultipartUploadInput{
		Bucket:      &mediaBucket,
		Key:         &key,
		ContentType: &contentType,
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to create multipart upload")
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to create multipart upload", err))
		return
	}
	uploadID := *createResult.UploadId

	partURLs := make([]partURL, 0, numParts)
	for i := int32(1); i <= int32(numParts); i++ {
		partNum := i
		presignResult, err := presigner.PresignUploadPart(context.Background(), &s3.UploadPartInput{
			Bucket:     &mediaBucket,
			Key:        &key,
			UploadId:   &uploadID,
			PartNumber: &partNum,
		}, s3.WithPresignExpires(partPresignExpiry))
		if err != nil {
			log.Error().Err(err).Str("key", key).Int32("partNumber", partNum).Msg("Failed to presign upload part")
			// Abort to avoid orphaned multipart state.
			_, _ = s3Client.AbortMultipartUpload(context.Background(), &s3.AbortMultipartUploadInput{
				Bucket:   &mediaBucket,
				Key:      &key,
				UploadId: &uploadID,
			})
			webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to presign upload parts", err))
			return
		}
		partURLs = append(partURLs, partURL{PartNumber: partNum, URL: presignResult.URL})
	}

	webutil.RespondJSON(w, http.StatusOK, multipartInitResponse{
		UploadID: uploadID,
		FileKey:  key,
		FileID:   fileID,
		PartURLs: partURLs,
	})
}

// --- Complete ---

type completePart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

type multipartCompleteRequest struct {
	FileKey  string         `json:"fileKey"`
	UploadID string         `json:"uploadId"`
	Parts    []completePart `json:"parts"`
}

// POST /v1/upload-multipart/complete
func handleMultipartComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req multipartCompleteRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if req.FileKey == "" || req.UploadID == "" || len(req.Parts) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("fileKey, uploadId, and parts are required"))
		return
	}
	if err := validateUploadKey(req.FileKey); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	parts := make([]s3types.CompletedPart, len(req.Parts))
	for i, p := range req.Parts {
		partNum := p.PartNumber
		etag := p.ETag
		parts[i] = s3types.CompletedPart{PartNumber: &partNum, ETag: &etag}
	}

	_, err := s3Client.CompleteMultipartUpload(context.Background(), &s3.CompleteMultipartUploadInput{
		Bucket:   &mediaBucket,
		Key:      &req.FileKey,
		UploadId: &req.UploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("key", req.FileKey).Msg("Failed to complete multipart upload")
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to complete multipart upload", err))
		return
	}

	log.Info().Str("fileKey", req.FileKey).Int("parts", len(parts)).Msg("Multipart upload completed")
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"fileKey": req.FileKey})
}

// --- Abort ---

type multipartAbortRequest struct {
	FileKey  string `json:"fileKey"`
	UploadID string `json:"uploadId"`
}

// POST /v1/upload-multipart/abort
func handleMultipartAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req multipartAbortRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if req.FileKey == "" || req.UploadID == "" {
		webutil.RespondError(w, r, apierr.Invalid("fileKey and uploadId are required"))
		return
	}
	if err := validateUploadKey(req.FileKey); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	_, err := s3Client.AbortMultipartUpload(context.Background(), &s3.AbortMultipartUploadInput{
		Bucket:   &mediaBucket,
		Key:      &req.FileKey,
		UploadId: &req.UploadID,
	})
	if err != nil {
		log.Error().Err(err).Str("key", req.FileKey).Msg("Failed to abort multipart upload")
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to abort multipart upload", err))
		return
	}

	log.Info().Str("fileKey", req.FileKey).Msg("Multipart upload aborted")
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}
