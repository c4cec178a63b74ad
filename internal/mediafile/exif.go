package mediafile

import (
	"fmt"
	"os"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// CaptureTime extracts the EXIF capture timestamp from an image file.
// Falls back through DateTimeOriginal, CreateDate, and ModifyDate.
// Returns the zero time without error when the image carries no usable
// timestamp; record upload time is then the best available ordering key.
func CaptureTime(imagePath string) (time.Time, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return time.Time{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	exifData, err := imagemeta.Decode(f)
	if err != nil {
		// Plenty of valid uploads (screenshots, exports) carry no EXIF.
		log.Debug().Err(err).Str("path", imagePath).Msg("No EXIF metadata")
		return time.Time{}, nil
	}

	switch {
	case !exifData.DateTimeOriginal().IsZero():
		return exifData.DateTimeOriginal(), nil
	case !exifData.CreateDate().IsZero():
		return exifData.CreateDate(), nil
	case !exifData.ModifyDate().IsZero():
		return exifData.ModifyDate(), nil
	}
	return time.Time{}, nil
}
