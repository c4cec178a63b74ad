package main

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/webutil"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard
// (APPNOTE 6.3.7).
const zipMethodZstd uint16 = 93

const (
	maxDownloadFiles  = 100
	downloadURLExpiry = time.Hour
)

func init() {
	zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
}

type downloadRequest struct {
	Files []string `json:"files"`
}

type downloadResponse struct {
	Key         string `json:"key"`
	DownloadURL string `json:"downloadUrl"`
	FileCount   int    `json:"fileCount"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// handleDownload bundles the requested media files into one
// zstd-compressed ZIP under exports/ and returns a presigned link.
// Files that cannot be read are skipped, not fatal.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req downloadRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if len(req.Files) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("files list is required"))
		return
	}
	if len(req.Files) > maxDownloadFiles {
		webutil.RespondError(w, r, apierr.Invalid("too many files in one bundle"))
		return
	}

	zipKey := fmt.Sprintf("exports/%s.zip", uuid.NewString())
	zipSize, bundled, err := createZipBundle(r, req.Files, zipKey)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to create bundle", err))
		return
	}
	if bundled == 0 {
		webutil.RespondError(w, r, apierr.NotFound("none of the requested files could be read"))
		return
	}

	result, err := presigner.PresignGetObject(r.Context(), &s3.GetObjectInput{
		Bucket:                     &mediaBucket,
		Key:                        &zipKey,
		ResponseContentDisposition: aws.String(`attachment; filename="birdtag-export.zip"`),
	}, s3.WithPresignExpires(downloadURLExpiry))
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeS3Error, "failed to sign download URL", err))
		return
	}

	log.Info().Str("key", zipKey).Int("files", bundled).Int64("sizeBytes", zipSize).Msg("Export bundle created")
	webutil.RespondJSON(w, http.StatusOK, downloadResponse{
		Key:         zipKey,
		DownloadURL: result.URL,
		FileCount:   bundled,
		SizeBytes:   zipSize,
	})
}

// createZipBundle streams the objects from S3 into a ZIP in /tmp and
// uploads it. Returns the ZIP size and the number of files bundled.
func createZipBundle(r *http.Request, keys []string, zipKey string) (int64, int, error) {
	ctx := r.Context()

	tmpFile, err := os.CreateTemp("", "export-*.zip")
	if err != nil {
		return 0, 0, fmt.Errorf("create temp ZIP: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	zipWriter := zip.NewWriter(tmpFile)
	bundled := 0
	for _, key := range keys {
		result, err := s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: &mediaBucket,
			Key:    &key,
		})
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Skipping unreadable file in bundle")
			continue
		}

		header := &zip.FileHeader{
			Name:     path.Base(key),
			Method:   zipMethodZstd,
			Modified: time.Now(),
		}
		entry, err := zipWriter.CreateHeader(header)
		if err != nil {
			result.Body.Close()
			return 0, 0, fmt.Errorf("create ZIP entry %s: %w", key, err)
		}
		if _, err := io.Copy(entry, result.Body); err != nil {
			result.Body.Close()
			return 0, 0, fmt.Errorf("write ZIP entry %s: %w", key, err)
		}
		result.Body.Close()
		bundled++
	}

	if err := zipWriter.Close(); err != nil {
		tmpFile.Close()
		return 0, 0, fmt.Errorf("close ZIP: %w", err)
	}
	tmpFile.Close()

	info, err := os.Stat(tmpPath)
	if err != nil {
		return 0, 0, fmt.Errorf("stat ZIP: %w", err)
	}

	zipFile, err := os.Open(tmpPath)
	if err != nil {
		return 0, 0, fmt.Errorf("open ZIP for upload: %w", err)
	}
	defer zipFile.Close()

	_, err = s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &mediaBucket,
		Key:         &zipKey,
		Body:        zipFile,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("upload ZIP: %w", err)
	}
	return info.Size(), bundled, nil
}
