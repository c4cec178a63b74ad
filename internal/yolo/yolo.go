// Package yolo delegates bird detection on images to a SageMaker
// endpoint running a YOLO model. The Lambda stays a thin client: it
// posts JPEG bytes, parses the detection list, and retries transient
// endpoint failures with exponential backoff.
package yolo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/tags"
)

// Retry policy around the endpoint call. SageMaker endpoints routinely
// throttle or cold-start; a short fixed-count retry absorbs that
// without masking a genuinely broken model.
const (
	DefaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// DefaultConfidenceThreshold filters weak detections.
const DefaultConfidenceThreshold = 0.5

// Box is a detection bounding box in pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one detected bird on an image.
type Detection struct {
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// endpointInvoker is the slice of the SageMaker runtime client we use,
// extracted so tests can fake the endpoint.
type endpointInvoker interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Client calls one SageMaker inference endpoint.
type Client struct {
	runtime     endpointInvoker
	endpoint    string
	maxAttempts int
	baseDelay   time.Duration
}

// New creates a Client for the named endpoint.
func New(runtime *sagemakerruntime.Client, endpoint string) *Client {
	return &Client{
		runtime:     runtime,
		endpoint:    endpoint,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// Detect posts JPEG bytes to the endpoint and returns detections at or
// above threshold. Transient failures are retried with exponential
// backoff up to the attempt limit.
func (c *Client) Detect(ctx context.Context, imageData []byte, threshold float64) ([]Detection, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(c.baseDelay, attempt)
			log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("endpoint", c.endpoint).
				Msg("Retrying endpoint invoke")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		output, err := c.runtime.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
			EndpointName: &c.endpoint,
			ContentType:  aws.String("image/jpeg"),
			Accept:       aws.String("application/json"),
			Body:         imageData,
		})
		if err != nil {
			lastErr = err
			continue
		}

		detections, err := ParseResponse(output.Body)
		if err != nil {
			// A malformed body will not improve on retry.
			return nil, err
		}
		return filterByThreshold(detections, threshold), nil
	}
	return nil, fmt.Errorf("invoke endpoint %s after %d attempts: %w", c.endpoint, c.maxAttempts, lastErr)
}

// endpointResponse accepts both the bare-array and enveloped response
// shapes the model server has produced across versions.
type endpointResponse struct {
	Detections []Detection `json:"detections"`
}

// ParseResponse decodes the endpoint's JSON detection list.
func ParseResponse(body []byte) ([]Detection, error) {
	var bare []Detection
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped endpointResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("parse endpoint response: %w", err)
	}
	return wrapped.Detections, nil
}

// Summarize converts detections into a tag summary.
func Summarize(detections []Detection) tags.Summary {
	flat := make([]tags.Detection, len(detections))
	for i, d := range detections {
		flat[i] = tags.Detection{Species: d.Species, Confidence: d.Confidence}
	}
	return tags.Summarize(flat)
}

func filterByThreshold(detections []Detection, threshold float64) []Detection {
	out := detections[:0:0]
	for _, d := range detections {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// backoffDelay returns the delay before the given attempt:
// baseDelay * 2^(attempt-2), so attempt 2 waits baseDelay.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << uint(attempt-2)
}
