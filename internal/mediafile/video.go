package mediafile

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// previewFrameSecond is where the preview frame is taken from. Five
// seconds in skips camera shake and auto-exposure at the start of most
// field recordings; shorter videos fall back to the first frame.
const previewFrameSecond = 5

// ExtractVideoFrame extracts a single JPEG frame from a video using
// ffmpeg, scaled so the longest side is at most maxDimension.
func ExtractVideoFrame(videoPath string, maxDimension int) ([]byte, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: video preview requires ffmpeg")
	}

	tmpFile, err := os.CreateTemp("", "vframe-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	data, err := runFrameExtract(ffmpegPath, videoPath, tmpPath, previewFrameSecond, maxDimension)
	if err != nil {
		// Video may be shorter than the seek point; retry from the start.
		log.Debug().Err(err).Str("path", videoPath).Msg("Frame extract at offset failed, retrying at 0s")
		data, err = runFrameExtract(ffmpegPath, videoPath, tmpPath, 0, maxDimension)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func runFrameExtract(ffmpegPath, videoPath, outPath string, atSecond, maxDimension int) ([]byte, error) {
	// scale filter: downscale only if larger, preserve aspect ratio,
	// ensure even height as some encoders require it.
	vf := fmt.Sprintf("scale='min(%d,iw)':-2", maxDimension)
	cmd := exec.Command(ffmpegPath,
		"-ss", fmt.Sprintf("%d", atSecond),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", vf,
		"-f", "image2",
		"-y", outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame extract: %w (output: %s)", err, truncate(string(output), 400))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read extracted frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced an empty frame for %s", videoPath)
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// PreviewKey returns the S3 key for a video's preview frame:
// previews/<basename>.jpg.
func PreviewKey(fileKey string) string {
	base := filepath.Base(fileKey)
	return "previews/" + strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}
