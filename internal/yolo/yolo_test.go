package yolo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{
			name: "bare array",
			body: `[{"species":"crow","confidence":0.91,"box":{"x":10,"y":20,"width":100,"height":80}}]`,
			want: 1,
		},
		{
			name: "enveloped",
			body: `{"detections":[{"species":"crow","confidence":0.9},{"species":"pigeon","confidence":0.6}]}`,
			want: 2,
		},
		{name: "empty array", body: `[]`, want: 0},
		{name: "malformed", body: `{not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("detections = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseResponseBox(t *testing.T) {
	body := `[{"species":"crow","confidence":0.91,"box":{"x":10,"y":20,"width":100,"height":80}}]`
	got, err := ParseResponse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Box.Width != 100 || got[0].Box.Y != 20 {
		t.Errorf("box = %+v", got[0].Box)
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 500 * time.Millisecond
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{2, 500 * time.Millisecond},
		{3, 1 * time.Second},
		{4, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(base, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// fakeEndpoint fails a fixed number of times before succeeding.
type fakeEndpoint struct {
	failures int
	calls    int
	body     string
}

func (f *fakeEndpoint) InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("ModelError: endpoint warming up")
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: []byte(f.body)}, nil
}

func newTestClient(ep *fakeEndpoint) *Client {
	return &Client{
		runtime:     ep,
		endpoint:    "bird-yolo",
		maxAttempts: 3,
		baseDelay:   time.Millisecond,
	}
}

func TestDetectRetriesTransientFailures(t *testing.T) {
	ep := &fakeEndpoint{
		failures: 2,
		body:     `[{"species":"crow","confidence":0.9},{"species":"pigeon","confidence":0.3}]`,
	}

	got, err := newTestClient(ep).Detect(context.Background(), []byte("jpeg"), 0.5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if ep.calls != 3 {
		t.Errorf("calls = %d, want 3", ep.calls)
	}
	if len(got) != 1 || got[0].Species != "crow" {
		t.Errorf("threshold filter failed: %+v", got)
	}
}

func TestDetectExhaustsAttempts(t *testing.T) {
	ep := &fakeEndpoint{failures: 10}

	_, err := newTestClient(ep).Detect(context.Background(), []byte("jpeg"), 0.5)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if ep.calls != 3 {
		t.Errorf("calls = %d, want exactly maxAttempts", ep.calls)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Detection{
		{Species: "crow", Confidence: 0.9},
		{Species: "crow", Confidence: 0.8},
	})
	if got := s.Count("crow"); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
	if got := s.TopSpecies(); got != "crow" {
		t.Errorf("top = %q", got)
	}
}
