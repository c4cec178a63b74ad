package mediafile

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"
)

// Waveform render dimensions.
const (
	WaveformWidth  = 1280
	WaveformHeight = 720
)

var (
	waveformBackground = color.RGBA{R: 18, G: 18, B: 24, A: 255}
	waveformForeground = color.RGBA{R: 80, G: 200, B: 120, A: 255}
	waveformCenterline = color.RGBA{R: 60, G: 60, B: 70, A: 255}
)

// GenerateWaveform decodes a WAV file and renders its waveform as a
// 1280x720 PNG.
func GenerateWaveform(wavPath string) ([]byte, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %s", wavPath)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("wav file contains no samples: %s", wavPath)
	}

	peak := peakForBitDepth(buf.SourceBitDepth)

	img := RenderWaveform(buf.Data, peak, WaveformWidth, WaveformHeight)

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encode waveform png: %w", err)
	}

	log.Debug().
		Str("path", wavPath).
		Int("samples", len(buf.Data)).
		Int("outputSize", out.Len()).
		Msg("Waveform rendered")

	return out.Bytes(), nil
}

// peakForBitDepth returns the full-scale amplitude for a PCM bit
// depth, normalizing samples to [-1, 1]. A missing or nonsense depth
// falls back to 16-bit.
func peakForBitDepth(bitDepth int) int {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return 1 << (bitDepth - 1)
}

// RenderWaveform draws a min/max column waveform. Each pixel column
// covers a window of samples and is painted from the window's minimum
// to its maximum amplitude, scaled by peak.
func RenderWaveform(samples []int, peak, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, waveformBackground)
		}
	}

	mid := height / 2
	for x := 0; x < width; x++ {
		img.Set(x, mid, waveformCenterline)
	}

	if len(samples) == 0 || peak <= 0 {
		return img
	}

	for x := 0; x < width; x++ {
		start := x * len(samples) / width
		end := (x + 1) * len(samples) / width
		if end <= start {
			end = start + 1
		}
		if end > len(samples) {
			end = len(samples)
		}

		lo, hi := samples[start], samples[start]
		for _, s := range samples[start:end] {
			if s < lo {
				lo = s
			}
			if s > hi {
				hi = s
			}
		}

		// Sample amplitudes map to pixel offsets from the centerline.
		yTop := mid - hi*mid/peak
		yBot := mid - lo*mid/peak
		if yTop < 0 {
			yTop = 0
		}
		if yBot >= height {
			yBot = height - 1
		}
		for y := yTop; y <= yBot; y++ {
			img.Set(x, y, waveformForeground)
		}
	}
	return img
}

// WaveformKey returns the S3 key for a file's waveform render:
// waveforms/<basename>.png.
func WaveformKey(fileKey string) string {
	base := filepath.Base(fileKey)
	return "waveforms/" + strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}
