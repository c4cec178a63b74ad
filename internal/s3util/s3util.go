// Package s3util provides the S3 helpers shared across the Lambda
// handlers: downloads to /tmp, uploads, presigned URLs, and the
// species-folder relocation performed after detection.
package s3util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// DownloadToFile downloads an S3 object to a specific local path.
func DownloadToFile(ctx context.Context, client *s3.Client, bucket, key, localPath string) error {
	log.Debug().Str("bucket", bucket).Str("key", key).Str("localPath", localPath).Msg("Downloading from S3")

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, result.Body); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

// DownloadToTempFile downloads an S3 object to a new temporary file and
// returns the file path plus a cleanup function that removes it.
func DownloadToTempFile(ctx context.Context, client *s3.Client, bucket, key string) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", "s3dl-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := DownloadToFile(ctx, client, bucket, key, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", nil, err
	}
	return tmpPath, func() { os.Remove(tmpPath) }, nil
}

// UploadBytes writes raw data to an S3 key with the given content type.
func UploadBytes(ctx context.Context, client *s3.Client, bucket, key string, data []byte, contentType string) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	log.Debug().Str("bucket", bucket).Str("key", key).Int("size", len(data)).Msg("Uploaded to S3")
	return nil
}

// PresignGet creates a presigned GET URL for an S3 object.
func PresignGet(ctx context.Context, presigner *s3.PresignClient, bucket, key string, expiry time.Duration) (string, error) {
	result, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}

// KeyFromURL extracts the object key from a presigned or plain S3
// object URL. Handles both virtual-hosted (bucket.s3.region...) and
// path-style (s3.region.../bucket/key) forms. Returns "" when the URL
// cannot be parsed.
func KeyFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	key := strings.TrimPrefix(u.Path, "/")
	// Path-style URLs carry the bucket as the first path segment.
	if u.Host != "" && strings.Contains(u.Host, "amazonaws.com") && !strings.Contains(u.Host, ".s3") {
		if _, rest, ok := strings.Cut(key, "/"); ok {
			key = rest
		}
	}
	return key
}

// SpeciesKey returns the destination key for a detected file:
// species/<species>/<filename>.
func SpeciesKey(species, originalKey string) string {
	return path.Join("species", species, path.Base(originalKey))
}

// MoveToSpeciesFolder relocates an object to species/<species>/<filename>
// via copy-then-delete and returns the new key. The move is idempotent:
// if the source no longer exists (a previous invocation already moved
// it), the existing destination key is returned without error.
func MoveToSpeciesFolder(ctx context.Context, client *s3.Client, bucket, key, species string) (string, error) {
	destKey := SpeciesKey(species, key)
	copySource := bucket + "/" + key

	_, err := client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &bucket,
		Key:        &destKey,
		CopySource: &copySource,
	})
	if err != nil {
		if isNoSuchKey(err) {
			log.Debug().Str("key", key).Str("destKey", destKey).Msg("Source already moved, skipping relocation")
			return destKey, nil
		}
		return "", fmt.Errorf("S3 CopyObject %s -> %s: %w", key, destKey, err)
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return "", fmt.Errorf("S3 DeleteObject %s: %w", key, err)
	}

	log.Info().Str("from", key).Str("to", destKey).Msg("Relocated object to species folder")
	return destKey, nil
}

// DeleteObjects removes a batch of keys, logging and continuing on
// per-key failures. Returns the number of successful deletes.
func DeleteObjects(ctx context.Context, client *s3.Client, bucket string, keys []string) int {
	deleted := 0
	for _, key := range keys {
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &bucket,
			Key:    &key,
		})
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to delete object")
			continue
		}
		deleted++
	}
	return deleted
}

// isNoSuchKey reports whether err is an S3 missing-object error.
// CopyObject's 404 is not deserialized into the modeled NoSuchKey type
// (only GetObject produces it), so the match is by API error code.
func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NoSuchKey" || code == "NotFound"
}
