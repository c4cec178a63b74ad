package birdnet

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/tags"
)

// Segment is one detection window in an audio file.
type Segment struct {
	StartSec   float64 `json:"startSec"`
	EndSec     float64 `json:"endSec"`
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeFile decodes a WAV file, runs the model over successive
// 3-second windows, and returns every detection at or above threshold.
func (m *Model) AnalyzeFile(wavPath string, threshold float64) ([]Segment, error) {
	samples, sampleRate, err := DecodeWAV(wavPath)
	if err != nil {
		return nil, err
	}
	if sampleRate != SampleRate {
		samples = Resample(samples, sampleRate, SampleRate)
	}

	chunks := Chunk(samples)
	log.Debug().
		Str("path", wavPath).
		Int("samples", len(samples)).
		Int("chunks", len(chunks)).
		Msg("Analyzing audio")

	var segments []Segment
	for i, chunk := range chunks {
		results, err := m.Predict(chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		start := float64(i * ChunkSeconds)
		for _, r := range results {
			if r.Confidence < threshold {
				continue
			}
			segments = append(segments, Segment{
				StartSec:   start,
				EndSec:     start + ChunkSeconds,
				Species:    r.Species,
				Confidence: r.Confidence,
			})
		}
	}
	return segments, nil
}

// Detections flattens segments into per-occurrence detections for tag
// summarization: one detection per segment in which the species appears.
func Detections(segments []Segment) []tags.Detection {
	out := make([]tags.Detection, 0, len(segments))
	for _, seg := range segments {
		out = append(out, tags.Detection{Species: seg.Species, Confidence: seg.Confidence})
	}
	return out
}

// DecodeWAV reads a WAV file into normalized float32 samples in [-1, 1]
// and returns the source sample rate. Multi-channel audio is averaged
// down to mono.
func DecodeWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("wav file contains no samples: %s", path)
	}

	peak := float32(peakForBitDepth(buf.SourceBitDepth))

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = float32(sum) / float32(channels) / peak
	}
	return samples, buf.Format.SampleRate, nil
}

// peakForBitDepth returns the full-scale amplitude for a PCM bit
// depth. A missing or nonsense depth falls back to 16-bit.
func peakForBitDepth(bitDepth int) int {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return 1 << (bitDepth - 1)
}

// Resample converts samples between rates by linear interpolation.
// Adequate for speech-band and bird-call content fed to the classifier.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	outLen := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		return nil
	}

	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// Chunk splits samples into ChunkSamples-sized windows. The final
// partial window is zero-padded so every chunk matches the model's
// input shape.
func Chunk(samples []float32) [][]float32 {
	if len(samples) == 0 {
		return nil
	}

	var chunks [][]float32
	for start := 0; start < len(samples); start += ChunkSamples {
		end := start + ChunkSamples
		chunk := make([]float32, ChunkSamples)
		if end > len(samples) {
			end = len(samples)
		}
		copy(chunk, samples[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}

// customSigmoid applies a sigmoid with sensitivity adjustment.
func customSigmoid(x, sensitivity float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sensitivity*x))
}

// applySigmoid converts raw logits to confidence values.
func applySigmoid(predictions []float32, sensitivity float64) []float32 {
	confidence := make([]float32, len(predictions))
	for i, pred := range predictions {
		confidence[i] = float32(customSigmoid(float64(pred), sensitivity))
	}
	return confidence
}

// pairLabelsAndConfidence zips labels with their confidence values.
func pairLabelsAndConfidence(labels []string, confidence []float32) ([]tags.Detection, error) {
	if len(labels) != len(confidence) {
		return nil, fmt.Errorf("mismatched labels and predictions lengths: %d vs %d", len(labels), len(confidence))
	}

	results := make([]tags.Detection, len(labels))
	for i, label := range labels {
		results[i] = tags.Detection{Species: label, Confidence: float64(confidence[i])}
	}
	return results, nil
}

// sortByConfidence sorts detections by confidence in descending order.
func sortByConfidence(results []tags.Detection) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
}

// trimResults caps the result list at max entries.
func trimResults(results []tags.Detection, max int) []tags.Detection {
	if len(results) > max {
		return results[:max]
	}
	return results
}
