package mediafile

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultThumbnailMaxDimension is the longest side of generated thumbnails.
const DefaultThumbnailMaxDimension = 200

// thumbnailJPEGQuality balances file size against UI display quality.
const thumbnailJPEGQuality = 75

// GenerateThumbnail creates a fixed-ratio JPEG thumbnail of an image
// file using pure Go (golang.org/x/image/draw). The longest side is
// scaled down to maxDimension; smaller images pass through unscaled but
// are still re-encoded as JPEG so the output format is uniform.
func GenerateThumbnail(imagePath string, maxDimension int) ([]byte, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".png":
		img, err = png.Decode(f)
	case ".gif":
		img, err = gif.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := Resize(img, maxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	log.Debug().
		Str("path", imagePath).
		Int("maxDimension", maxDimension).
		Int("outputSize", buf.Len()).
		Msg("Thumbnail generated")

	return buf.Bytes(), nil
}

// Resize scales an image so its longest side is at most maxDimension,
// preserving aspect ratio. Images already within bounds are returned
// unchanged. CatmullRom gives the best quality for downscaling.
func Resize(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = maxDimension
		newH = h * maxDimension / w
	} else {
		newH = maxDimension
		newW = w * maxDimension / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// ThumbnailKey returns the S3 key for a file's thumbnail:
// thumbnails/<basename>.jpg.
func ThumbnailKey(fileKey string) string {
	base := filepath.Base(fileKey)
	return "thumbnails/" + strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}
