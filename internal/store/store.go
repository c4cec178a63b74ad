// Package store provides persistent state for the tagging platform. It
// uses a single-table DynamoDB design: media records, batch jobs, email
// subscriptions, and notification history all live in one table,
// distinguished by partition key prefix (FILE#, JOB#, SUB#, NOTIFY#).
//
// Media records have no TTL; notification history carries a 30-day TTL
// attribute (expiresAt). Concurrent writers race and the last put wins.
package store

import (
	"context"
	"time"
)

// NotificationTTL is the retention period for notification history records.
const NotificationTTL = 30 * 24 * time.Hour

// Media record lifecycle states.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Detection source labels.
const (
	SourceYOLO    = "YOLO"
	SourceBirdNET = "BirdNET"
)

// MediaStore defines the persistence interface shared by all Lambdas.
// Each method is safe for concurrent use. All Get methods return
// (nil, nil) when the requested record does not exist. All Put methods
// perform full-item replacement (upsert semantics).
type MediaStore interface {
	// --- Media records ---

	// PutMedia creates or replaces a media record.
	PutMedia(ctx context.Context, rec *MediaRecord) error

	// GetMedia retrieves a media record by file key. Returns nil, nil if not found.
	GetMedia(ctx context.Context, fileKey string) (*MediaRecord, error)

	// DeleteMedia removes a media record.
	DeleteMedia(ctx context.Context, fileKey string) error

	// UpdateMediaStatus updates only the status field of a media record.
	UpdateMediaStatus(ctx context.Context, fileKey, status string) error

	// ScanMedia returns all media records. Search filters in memory;
	// the table stays small enough that a paginated scan is acceptable.
	ScanMedia(ctx context.Context) ([]*MediaRecord, error)

	// --- Batch jobs ---

	// PutBatchJob creates or replaces a batch job record.
	PutBatchJob(ctx context.Context, job *BatchJob) error

	// GetBatchJob retrieves a batch job. Returns nil, nil if not found.
	GetBatchJob(ctx context.Context, jobID string) (*BatchJob, error)

	// IncrementBatchCounters atomically adds the deltas to the job's
	// processed and failed counters and returns the updated totals.
	IncrementBatchCounters(ctx context.Context, jobID string, processed, failed int) (processedTotal, failedTotal int, err error)

	// UpdateBatchJobStatus updates only the status field of a batch job.
	UpdateBatchJobStatus(ctx context.Context, jobID, status string) error

	// --- Email subscriptions ---

	// PutSubscription records a species subscription for an email address.
	PutSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscriptions lists all species subscriptions for an email address.
	GetSubscriptions(ctx context.Context, email string) ([]*Subscription, error)

	// DeleteSubscription removes one species subscription.
	DeleteSubscription(ctx context.Context, email, species string) error

	// ScanSubscriptions returns all subscriptions across all emails,
	// for matching detections to subscribers at publish time.
	ScanSubscriptions(ctx context.Context) ([]*Subscription, error)

	// --- Notification history ---

	// PutNotification appends a dispatch history record (30-day TTL).
	PutNotification(ctx context.Context, rec *NotificationRecord) error

	// GetNotifications lists dispatch history for an email address,
	// newest first.
	GetNotifications(ctx context.Context, email string) ([]*NotificationRecord, error)

	// ScanNotifications returns all dispatch history records, for
	// aggregate stats.
	ScanNotifications(ctx context.Context) ([]*NotificationRecord, error)
}

// --- Domain types ---
//
// Each type maps to a DynamoDB record. Fields derived from PK/SK use
// dynamodbav:"-" and are filled in on read.

// DetectionBox is one YOLO bounding box on an image.
type DetectionBox struct {
	Species    string  `json:"species" dynamodbav:"species"`
	Confidence float64 `json:"confidence" dynamodbav:"confidence"`
	X          float64 `json:"x" dynamodbav:"x"`
	Y          float64 `json:"y" dynamodbav:"y"`
	Width      float64 `json:"width" dynamodbav:"width"`
	Height     float64 `json:"height" dynamodbav:"height"`
}

// DetectionSegment is one BirdNET detection window in an audio file.
type DetectionSegment struct {
	StartSec   float64 `json:"startSec" dynamodbav:"startSec"`
	EndSec     float64 `json:"endSec" dynamodbav:"endSec"`
	Species    string  `json:"species" dynamodbav:"species"`
	Confidence float64 `json:"confidence" dynamodbav:"confidence"`
}

// DetectionCache holds the last full detection output with its
// timestamp, so repeat requests inside the cache window skip inference.
type DetectionCache struct {
	Detections []DetectionBox `json:"detections,omitempty" dynamodbav:"detections,omitempty"`
	Segments   []DetectionSegment `json:"segments,omitempty" dynamodbav:"segments,omitempty"`
	Timestamp  int64          `json:"timestamp" dynamodbav:"timestamp"`
}

// Fresh reports whether the cached results are younger than ttl.
func (c *DetectionCache) Fresh(ttl time.Duration) bool {
	if c == nil || c.Timestamp == 0 {
		return false
	}
	return time.Since(time.Unix(c.Timestamp, 0)) < ttl
}

// MediaRecord is the per-file record (PK = FILE#{fileKey}).
type MediaRecord struct {
	FileKey           string             `json:"fileKey" dynamodbav:"-"`
	FileType          string             `json:"fileType" dynamodbav:"fileType"`
	FileURL           string             `json:"fileUrl,omitempty" dynamodbav:"fileUrl,omitempty"`
	ThumbnailKey      string             `json:"thumbnailKey,omitempty" dynamodbav:"thumbnailKey,omitempty"`
	WaveformKey       string             `json:"waveformKey,omitempty" dynamodbav:"waveformKey,omitempty"`
	PreviewKey        string             `json:"previewKey,omitempty" dynamodbav:"previewKey,omitempty"`
	Tags              []string           `json:"tags,omitempty" dynamodbav:"tags,omitempty"`
	DetectedSpecies   []string           `json:"detectedSpecies,omitempty" dynamodbav:"detectedSpecies,omitempty"`
	DetectionBoxes    []DetectionBox     `json:"detectionBoxes,omitempty" dynamodbav:"detectionBoxes,omitempty"`
	DetectionSegments []DetectionSegment `json:"detectionSegments,omitempty" dynamodbav:"detectionSegments,omitempty"`
	DetectionResults  *DetectionCache    `json:"detectionResults,omitempty" dynamodbav:"detectionResults,omitempty"`
	Status            string             `json:"status" dynamodbav:"status"`
	Source            string             `json:"source,omitempty" dynamodbav:"source,omitempty"`
	UploadTime        string             `json:"uploadTime,omitempty" dynamodbav:"uploadTime,omitempty"`
	CapturedAt        string             `json:"capturedAt,omitempty" dynamodbav:"capturedAt,omitempty"`
	SizeBytes         int64              `json:"sizeBytes,omitempty" dynamodbav:"sizeBytes,omitempty"`
	ContentType       string             `json:"contentType,omitempty" dynamodbav:"contentType,omitempty"`
}

// Batch job states.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// BatchResult is the per-file outcome inside a batch job.
type BatchResult struct {
	FileKey string `json:"fileKey" dynamodbav:"fileKey"`
	Success bool   `json:"success" dynamodbav:"success"`
	Error   string `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// BatchJob is a bulk detection job record (PK = JOB#{jobId}).
type BatchJob struct {
	ID             string        `json:"jobId" dynamodbav:"-"`
	Type           string        `json:"type" dynamodbav:"type"`
	Status         string        `json:"status" dynamodbav:"status"`
	TotalFiles     int           `json:"totalFiles" dynamodbav:"totalFiles"`
	ProcessedCount int           `json:"processedCount" dynamodbav:"processedCount"`
	FailedCount    int           `json:"failedCount" dynamodbav:"failedCount"`
	Results        []BatchResult `json:"results,omitempty" dynamodbav:"results,omitempty"`
	CreatedAt      string        `json:"createdAt" dynamodbav:"createdAt"`
	CompletedAt    string        `json:"completedAt,omitempty" dynamodbav:"completedAt,omitempty"`
}

// Subscription is one email-to-species subscription
// (PK = SUB#{email}, SK = species).
type Subscription struct {
	Email           string `json:"email" dynamodbav:"-"`
	Species         string `json:"species" dynamodbav:"-"`
	SubscriptionARN string `json:"subscriptionArn,omitempty" dynamodbav:"subscriptionArn,omitempty"`
	CreatedAt       string `json:"createdAt" dynamodbav:"createdAt"`
}

// NotificationRecord is one dispatched detection notification
// (PK = NOTIFY#{email}, SK = {sentAt}#{id}).
type NotificationRecord struct {
	Email     string `json:"email" dynamodbav:"-"`
	ID        string `json:"id" dynamodbav:"id"`
	Species   string `json:"species" dynamodbav:"species"`
	FileKey   string `json:"fileKey" dynamodbav:"fileKey"`
	MessageID string `json:"messageId,omitempty" dynamodbav:"messageId,omitempty"`
	SentAt    string `json:"sentAt" dynamodbav:"sentAt"`
}
