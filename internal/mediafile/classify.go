// Package mediafile classifies uploads by extension and produces the
// derived artifacts: image thumbnails, audio waveform renders, and video
// preview frames.
package mediafile

import (
	"path/filepath"
	"strings"
)

// Kind is the coarse media classification driving the processing path.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// kindByExt maps lowercase extensions to their media kind.
var kindByExt = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,

	".wav":  KindAudio,
	".mp3":  KindAudio,
	".flac": KindAudio,
	".ogg":  KindAudio,
	".m4a":  KindAudio,

	".mp4":  KindVideo,
	".mov":  KindVideo,
	".avi":  KindVideo,
	".webm": KindVideo,
	".mkv":  KindVideo,
}

// contentTypeByExt maps lowercase extensions to MIME types for uploads.
var contentTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// Classify returns the media kind for a filename or key.
// ok is false for unsupported extensions.
func Classify(name string) (Kind, bool) {
	kind, ok := kindByExt[strings.ToLower(filepath.Ext(name))]
	return kind, ok
}

// ContentType returns the MIME type for a filename, or
// application/octet-stream for unknown extensions.
func ContentType(name string) string {
	if ct, ok := contentTypeByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsSupported reports whether the extension is on the upload allow-list.
func IsSupported(name string) bool {
	_, ok := Classify(name)
	return ok
}
