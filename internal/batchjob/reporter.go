// Package batchjob tracks per-file progress of bulk detection jobs.
//
// The batch Lambda fans files out to the detection Lambdas with the job
// ID in the payload; each detection Lambda reports back through a
// Reporter. The job's counters live in DynamoDB and are incremented
// atomically, so the invocation that pushes the combined count to the
// job's total is the one that marks the job terminal and emits the
// completion event.
package batchjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/store"
)

// EventSource is the EventBridge source for batch lifecycle events.
const EventSource = "birdtag.batch"

// DetailTypeCompleted is the detail-type of the job completion event.
const DetailTypeCompleted = "BatchJobCompleted"

// eventPutter is the slice of the EventBridge client we use.
type eventPutter interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Reporter records per-file outcomes against a batch job.
type Reporter struct {
	store   store.MediaStore
	events  eventPutter
	busName string
}

// NewReporter creates a Reporter. events may be nil to skip completion
// events; busName may be empty to use the account's default event bus.
func NewReporter(s store.MediaStore, events *eventbridge.Client, busName string) *Reporter {
	r := &Reporter{store: s, busName: busName}
	if events != nil {
		r.events = events
	}
	return r
}

// completionDetail is the JSON detail of the completion event.
type completionDetail struct {
	JobID       string `json:"jobId"`
	TotalFiles  int    `json:"totalFiles"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	CompletedAt string `json:"completedAt"`
}

// Report records one file outcome for the job. When the combined count
// reaches the job's total, the job is marked terminal and a completion
// event is emitted. jobID may be empty (file was not part of a batch).
func (r *Reporter) Report(ctx context.Context, jobID string, fileErr error) error {
	if jobID == "" {
		return nil
	}

	processed, failed := 1, 0
	if fileErr != nil {
		processed, failed = 0, 1
	}

	processedTotal, failedTotal, err := r.store.IncrementBatchCounters(ctx, jobID, processed, failed)
	if err != nil {
		return fmt.Errorf("increment batch counters: %w", err)
	}

	job, err := r.store.GetBatchJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load batch job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("batch job %s not found", jobID)
	}

	if processedTotal+failedTotal < job.TotalFiles {
		return nil
	}

	status := store.JobStatusCompleted
	if processedTotal == 0 {
		status = store.JobStatusFailed
	}
	if err := r.store.UpdateBatchJobStatus(ctx, jobID, status); err != nil {
		return fmt.Errorf("mark batch job %s: %w", status, err)
	}

	log.Info().
		Str("jobId", jobID).
		Int("processed", processedTotal).
		Int("failed", failedTotal).
		Str("status", status).
		Msg("Batch job finished")
	return r.emitCompletion(ctx, jobID, job.TotalFiles, processedTotal, failedTotal)
}

func (r *Reporter) emitCompletion(ctx context.Context, jobID string, total, processed, failed int) error {
	if r.events == nil {
		return nil
	}

	detail, err := json.Marshal(completionDetail{
		JobID:       jobID,
		TotalFiles:  total,
		Processed:   processed,
		Failed:      failed,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal completion detail: %w", err)
	}

	entry := ebtypes.PutEventsRequestEntry{
		Source:     aws.String(EventSource),
		DetailType: aws.String(DetailTypeCompleted),
		Detail:     aws.String(string(detail)),
	}
	if r.busName != "" {
		entry.EventBusName = &r.busName
	}

	output, err := r.events.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("EventBridge PutEvents: %w", err)
	}
	if output.FailedEntryCount > 0 {
		return fmt.Errorf("EventBridge rejected completion event for job %s", jobID)
	}
	return nil
}
