package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/metrics"
)

type monitor struct {
	runtime        endpointInvoker
	s3             objectGetter
	endpoint       string
	modelBucket    string
	labelsKey      string
	expectedSHA256 string
	probe          []byte
}

// healthReport is the outcome of one monitoring run.
type healthReport struct {
	EndpointHealthy bool
	EndpointLatency time.Duration
	LabelsOK        bool
	LabelsSHA256    string
	Errors          []string
}

func (m *monitor) run(ctx context.Context) healthReport {
	report := healthReport{}

	pingStart := time.Now()
	if err := m.pingEndpoint(ctx); err != nil {
		report.Errors = append(report.Errors, "endpoint: "+err.Error())
	} else {
		report.EndpointHealthy = true
	}
	report.EndpointLatency = time.Since(pingStart)

	hash, err := m.labelHash(ctx)
	if err != nil {
		report.Errors = append(report.Errors, "labels: "+err.Error())
	} else {
		report.LabelsSHA256 = hash
		report.LabelsOK = m.expectedSHA256 == "" || hash == m.expectedSHA256
		if !report.LabelsOK {
			report.Errors = append(report.Errors, "labels: hash mismatch")
		}
	}
	return report
}

// pingEndpoint sends the probe image to the detection endpoint. Any
// well-formed response counts as healthy; the model's verdict on a 1x1
// image does not matter.
func (m *monitor) pingEndpoint(ctx context.Context) error {
	_, err := m.runtime.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: &m.endpoint,
		ContentType:  aws.String("image/jpeg"),
		Accept:       aws.String("application/json"),
		Body:         m.probe,
	})
	return err
}

// labelHash downloads the BirdNET label file and returns its SHA-256.
func (m *monitor) labelHash(ctx context.Context) (string, error) {
	result, err := m.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &m.modelBucket,
		Key:    &m.labelsKey,
	})
	if err != nil {
		return "", err
	}
	defer result.Body.Close()

	h := sha256.New()
	if _, err := io.Copy(h, result.Body); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// emit publishes the report as EMF metrics and one structured event.
func (r healthReport) emit() {
	rec := metrics.New()
	rec.Metric("EndpointHealthy", boolMetric(r.EndpointHealthy), metrics.UnitNone)
	rec.Metric("LabelFileOK", boolMetric(r.LabelsOK), metrics.UnitNone)
	rec.DurationMs("EndpointPingLatencyMs", r.EndpointLatency)
	rec.Property("labelsSha256", r.LabelsSHA256)
	rec.Flush()

	log.Info().
		Bool("endpointHealthy", r.EndpointHealthy).
		Dur("endpointLatency", r.EndpointLatency).
		Bool("labelsOk", r.LabelsOK).
		Str("labelsSha256", r.LabelsSHA256).
		Strs("errors", r.Errors).
		Msg("Model health report")
}

func boolMetric(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
