package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

type fakeRuntime struct {
	err   error
	calls int
}

func (f *fakeRuntime) InvokeEndpoint(_ context.Context, _ *sagemakerruntime.InvokeEndpointInput, _ ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: []byte(`[]`)}, nil
}

type fakeGetter struct {
	body string
	err  error
}

func (f *fakeGetter) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestRunAllHealthy(t *testing.T) {
	labels := "Corvus corax_Common Raven\n"
	m := &monitor{
		runtime:        &fakeRuntime{},
		s3:             &fakeGetter{body: labels},
		endpoint:       "birdtag-yolo",
		modelBucket:    "models",
		labelsKey:      "models/labels.txt",
		expectedSHA256: sha256Hex(labels),
		probe:          []byte{0xff, 0xd8},
	}

	report := m.run(context.Background())
	if !report.EndpointHealthy {
		t.Error("endpoint should be healthy")
	}
	if !report.LabelsOK {
		t.Errorf("labels should match, got hash %s", report.LabelsSHA256)
	}
	if len(report.Errors) != 0 {
		t.Errorf("errors = %v", report.Errors)
	}
}

func TestRunEndpointDown(t *testing.T) {
	m := &monitor{
		runtime: &fakeRuntime{err: errors.New("connection refused")},
		s3:      &fakeGetter{body: "x"},
		probe:   []byte{0xff, 0xd8},
	}

	report := m.run(context.Background())
	if report.EndpointHealthy {
		t.Error("endpoint should be unhealthy")
	}
	// Labels check without an expected hash still passes.
	if !report.LabelsOK {
		t.Error("labels check should pass when no expected hash is set")
	}
	if len(report.Errors) != 1 {
		t.Errorf("errors = %v", report.Errors)
	}
}

func TestRunLabelHashMismatch(t *testing.T) {
	m := &monitor{
		runtime:        &fakeRuntime{},
		s3:             &fakeGetter{body: "tampered"},
		expectedSHA256: sha256Hex("original"),
		probe:          []byte{0xff, 0xd8},
	}

	report := m.run(context.Background())
	if report.LabelsOK {
		t.Error("label check should fail on hash mismatch")
	}
}

func TestRunLabelFileMissing(t *testing.T) {
	m := &monitor{
		runtime: &fakeRuntime{},
		s3:      &fakeGetter{err: errors.New("NoSuchKey")},
		probe:   []byte{0xff, 0xd8},
	}

	report := m.run(context.Background())
	if report.LabelsOK {
		t.Error("label check should fail when the file is unreadable")
	}
	if report.LabelsSHA256 != "" {
		t.Errorf("hash = %q, want empty", report.LabelsSHA256)
	}
}

func TestProbeJPEGIsValid(t *testing.T) {
	probe := probeJPEG()
	if len(probe) == 0 {
		t.Fatal("probe image is empty")
	}
	// JPEG SOI marker.
	if probe[0] != 0xff || probe[1] != 0xd8 {
		t.Errorf("probe does not start with JPEG magic: % x", probe[:2])
	}
}
