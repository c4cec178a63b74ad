// Package birdnet runs BirdNET species classification in-process with a
// TensorFlow Lite interpreter. The model and label file are fetched from
// the model bucket once per container and loaded from /tmp.
package birdnet

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	tflite "github.com/tphakala/go-tflite"

	"github.com/nlawson/birdtag/internal/tags"
)

// Model audio input format: 3-second windows at 48 kHz mono.
const (
	SampleRate   = 48000
	ChunkSeconds = 3
	ChunkSamples = SampleRate * ChunkSeconds
)

// DefaultSensitivity is the sigmoid sensitivity applied to raw logits.
const DefaultSensitivity = 1.0

// maxResultsPerChunk bounds how many labels one chunk can contribute.
const maxResultsPerChunk = 10

// Model wraps a TFLite interpreter plus its label list. The interpreter
// is not safe for concurrent invocation; Predict serializes access.
type Model struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
	labels      []string
	sensitivity float64
	mu          sync.Mutex
}

// Load builds an interpreter from a TFLite model file and its label
// file. One label per line, in output-tensor order.
func Load(modelPath, labelPath string, sensitivity float64) (*Model, error) {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}

	labels, err := loadLabels(labelPath)
	if err != nil {
		return nil, err
	}

	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("load model %s: cannot parse TFLite file", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("create interpreter for %s", modelPath)
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("allocate tensors: %v", status)
	}

	log.Info().
		Str("model", modelPath).
		Int("labels", len(labels)).
		Float64("sensitivity", sensitivity).
		Msg("BirdNET model loaded")

	return &Model{
		model:       model,
		interpreter: interpreter,
		labels:      labels,
		sensitivity: sensitivity,
	}, nil
}

// Close releases the interpreter and model.
func (m *Model) Close() {
	if m.interpreter != nil {
		m.interpreter.Delete()
	}
	if m.model != nil {
		m.model.Delete()
	}
}

// Labels returns the model's label list in output order.
func (m *Model) Labels() []string {
	return m.labels
}

// Predict runs inference on one 3-second chunk and returns per-label
// detections sorted by confidence, trimmed to the top ten.
func (m *Model) Predict(chunk []float32) ([]tags.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inputTensor := m.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(inputTensor.Float32s(), chunk)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	outputTensor := m.interpreter.GetOutputTensor(0)
	predictions := extractPredictions(outputTensor)
	confidence := applySigmoid(predictions, m.sensitivity)

	results, err := pairLabelsAndConfidence(m.labels, confidence)
	if err != nil {
		return nil, err
	}

	sortByConfidence(results)
	return trimResults(results, maxResultsPerChunk), nil
}

// loadLabels reads one label per line from the label file.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels %s: %w", path, err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label file %s is empty", path)
	}
	return labels, nil
}

// extractPredictions copies logits out of the output tensor.
func extractPredictions(tensor *tflite.Tensor) []float32 {
	predSize := tensor.Dim(tensor.NumDims() - 1)
	predictions := make([]float32, predSize)
	copy(predictions, tensor.Float32s())
	return predictions
}
