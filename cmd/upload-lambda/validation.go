package main

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/mediafile"
)

// safeFilenameRegex allows alphanumeric, dots, hyphens, underscores,
// spaces, and parentheses.
var safeFilenameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._ ()-]{0,254}$`)

// uuidRegex matches UUID v4 format: 8-4-4-4-12 lowercase hex with dashes.
var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Upload size limits. Images and audio cap at 50 MB; field video can
// legitimately run to gigabytes.
const (
	maxMediaSize int64 = 50 * 1024 * 1024
	maxVideoSize int64 = 5 * 1024 * 1024 * 1024
)

func sizeLimit(kind mediafile.Kind) int64 {
	if kind == mediafile.KindVideo {
		return maxVideoSize
	}
	return maxMediaSize
}

func validateFilename(name string) error {
	if strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return apierr.Invalid("filename contains invalid characters")
	}
	if !safeFilenameRegex.MatchString(name) {
		return apierr.Invalid("filename contains invalid characters; only alphanumeric, dots, hyphens, underscores, spaces, and parentheses allowed")
	}
	return nil
}

// validateUploadKey checks that a client-supplied key points into the
// upload prefix with a UUID filename, blocking traversal into derived
// artifact folders.
func validateUploadKey(key string) error {
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return apierr.Invalid("invalid key")
	}
	rest, ok := strings.CutPrefix(key, uploadPrefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return apierr.Invalid("invalid key format: expected uploads/<fileId><ext>")
	}
	base := rest
	if idx := strings.LastIndex(rest, "."); idx > 0 {
		base = rest[:idx]
	}
	if !uuidRegex.MatchString(base) {
		return apierr.Invalid("invalid key format: file ID must be a UUID")
	}
	if !mediafile.IsSupported(rest) {
		return apierr.New(apierr.CodeInvalidFileType, http.StatusBadRequest, "unsupported file type")
	}
	return nil
}
