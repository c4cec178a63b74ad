package mediafile

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantKind Kind
		wantOK   bool
	}{
		{"jpeg", "uploads/bird.jpg", KindImage, true},
		{"uppercase extension", "BIRD.PNG", KindImage, true},
		{"wav", "recording.wav", KindAudio, true},
		{"mp4", "clip.mp4", KindVideo, true},
		{"unsupported", "notes.txt", "", false},
		{"no extension", "README", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := Classify(tt.filename)
			if ok != tt.wantOK || kind != tt.wantKind {
				t.Errorf("Classify(%q) = (%q, %v), want (%q, %v)",
					tt.filename, kind, ok, tt.wantKind, tt.wantOK)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("a.wav"); got != "audio/wav" {
		t.Errorf("ContentType(a.wav) = %q", got)
	}
	if got := ContentType("a.bin"); got != "application/octet-stream" {
		t.Errorf("ContentType(a.bin) = %q", got)
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name           string
		w, h           int
		wantW, wantH   int
	}{
		{"landscape scaled", 800, 400, 200, 100},
		{"portrait scaled", 300, 600, 100, 200},
		{"within bounds untouched", 150, 100, 150, 100},
		{"square", 400, 400, 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := Resize(src, DefaultThumbnailMaxDimension)
			bounds := got.Bounds()
			if bounds.Dx() != tt.wantW || bounds.Dy() != tt.wantH {
				t.Errorf("Resize(%dx%d) = %dx%d, want %dx%d",
					tt.w, tt.h, bounds.Dx(), bounds.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestGenerateThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "bird.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(f, src, nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err := GenerateThumbnail(path, DefaultThumbnailMaxDimension)
	if err != nil {
		t.Fatalf("GenerateThumbnail: %v", err)
	}

	thumb, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid JPEG: %v", err)
	}
	if w := thumb.Bounds().Dx(); w != DefaultThumbnailMaxDimension {
		t.Errorf("thumbnail width = %d, want %d", w, DefaultThumbnailMaxDimension)
	}
	if h := thumb.Bounds().Dy(); h != 150 {
		t.Errorf("thumbnail height = %d, want 150 (aspect preserved)", h)
	}
}

func TestRenderWaveform(t *testing.T) {
	// A full-scale square wave paints every column from top to bottom.
	samples := make([]int, 4800)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 32767
		} else {
			samples[i] = -32768
		}
	}

	img := RenderWaveform(samples, 1<<15, 64, 32)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Fatalf("unexpected dimensions %v", img.Bounds())
	}

	// Foreground must span nearly the full column: the positive peak is
	// one quantization step below full scale, so the top row may stay
	// background, but row 1 and the bottom row must be painted.
	painted := func(x, y int) bool {
		return img.RGBAAt(x, y) == waveformForeground
	}
	if !painted(10, 1) || !painted(10, 31) {
		t.Error("full-scale signal should paint the full column height")
	}

	// PNG encoding of the render must succeed.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
}

func TestRenderWaveformSilence(t *testing.T) {
	img := RenderWaveform(make([]int, 1000), 1<<15, 64, 32)

	// Silence collapses to the centerline; top row stays background.
	if img.RGBAAt(10, 0) == waveformForeground {
		t.Error("silent signal should not paint the top row")
	}
	if img.RGBAAt(10, 16) != waveformForeground {
		t.Error("silent signal should paint the centerline")
	}
}

func TestPeakForBitDepth(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		want     int
	}{
		{"8-bit", 8, 1 << 7},
		{"16-bit", 16, 1 << 15},
		{"24-bit", 24, 1 << 23},
		{"missing falls back to 16-bit", 0, 1 << 15},
		{"negative falls back to 16-bit", -1, 1 << 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := peakForBitDepth(tt.bitDepth); got != tt.want {
				t.Errorf("peakForBitDepth(%d) = %d, want %d", tt.bitDepth, got, tt.want)
			}
		})
	}
}

func TestDerivedKeys(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"thumbnail", ThumbnailKey, "uploads/a1b2.png", "thumbnails/a1b2.jpg"},
		{"waveform", WaveformKey, "uploads/song.wav", "waveforms/song.png"},
		{"preview", PreviewKey, "uploads/clip.mp4", "previews/clip.jpg"},
		{"species folder stripped", ThumbnailKey, "species/crow/a1b2.jpg", "thumbnails/a1b2.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
