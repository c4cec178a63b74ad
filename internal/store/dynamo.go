package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkFile   = "FILE#"
	pkJob    = "JOB#"
	pkSub    = "SUB#"
	pkNotify = "NOTIFY#"
	skMeta   = "META"
)

// DynamoStore implements MediaStore using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ MediaStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// Client exposes the underlying DynamoDB client for callers that need
// to share it with other stores.
func (s *DynamoStore) Client() *dynamodb.Client {
	return s.client
}

// --- Internal helpers ---

// putItem marshals a domain object and writes it to DynamoDB with PK and SK.
// The domain object should use dynamodbav:"-" for fields derived from PK/SK.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	if ttl > 0 {
		expires := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
		item["expiresAt"] = &types.AttributeValueMemberN{Value: expires}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item from DynamoDB and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// deleteItem removes a single item from DynamoDB by PK/SK.
func (s *DynamoStore) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// scanByPKPrefix returns all items whose PK begins with the given prefix.
// Handles pagination — DynamoDB returns up to 1MB per Scan call.
func (s *DynamoStore) scanByPKPrefix(ctx context.Context, prefix string) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("begins_with(PK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
	}

	var allItems []map[string]types.AttributeValue
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Scan prefix=%s: %w", prefix, err)
		}
		allItems = append(allItems, result.Items...)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return allItems, nil
}

// queryByPK returns all items under one partition key, handling pagination.
func (s *DynamoStore) queryByPK(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	}

	var allItems []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s: %w", pk, err)
		}
		allItems = append(allItems, result.Items...)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return allItems, nil
}

// stringAttr extracts a string attribute value from a raw item.
func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// --- Media records ---

func (s *DynamoStore) PutMedia(ctx context.Context, rec *MediaRecord) error {
	if rec.UploadTime == "" {
		rec.UploadTime = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.putItem(ctx, pkFile+rec.FileKey, skMeta, rec, 0); err != nil {
		return fmt.Errorf("put media %s: %w", rec.FileKey, err)
	}

	log.Debug().
		Str("fileKey", rec.FileKey).
		Str("status", rec.Status).
		Int("tags", len(rec.Tags)).
		Msg("Media record persisted")
	return nil
}

func (s *DynamoStore) GetMedia(ctx context.Context, fileKey string) (*MediaRecord, error) {
	var rec MediaRecord
	found, err := s.getItem(ctx, pkFile+fileKey, skMeta, &rec)
	if err != nil {
		return nil, fmt.Errorf("get media %s: %w", fileKey, err)
	}
	if !found {
		return nil, nil
	}

	rec.FileKey = fileKey
	return &rec, nil
}

func (s *DynamoStore) DeleteMedia(ctx context.Context, fileKey string) error {
	if err := s.deleteItem(ctx, pkFile+fileKey, skMeta); err != nil {
		return fmt.Errorf("delete media %s: %w", fileKey, err)
	}
	log.Debug().Str("fileKey", fileKey).Msg("Media record deleted")
	return nil
}

func (s *DynamoStore) UpdateMediaStatus(ctx context.Context, fileKey, status string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkFile + fileKey},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression: aws.String("SET #s = :s"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status", // "status" is a DynamoDB reserved word
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: status},
		},
	})
	if err != nil {
		return fmt.Errorf("update media status %s -> %s: %w", fileKey, status, err)
	}

	log.Debug().Str("fileKey", fileKey).Str("status", status).Msg("Media status updated")
	return nil
}

func (s *DynamoStore) ScanMedia(ctx context.Context) ([]*MediaRecord, error) {
	items, err := s.scanByPKPrefix(ctx, pkFile)
	if err != nil {
		return nil, fmt.Errorf("scan media: %w", err)
	}

	records := make([]*MediaRecord, 0, len(items))
	for _, item := range items {
		var rec MediaRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			log.Warn().Err(err).Str("pk", stringAttr(item, "PK")).Msg("Skipping unreadable media record")
			continue
		}
		rec.FileKey = strings.TrimPrefix(stringAttr(item, "PK"), pkFile)
		records = append(records, &rec)
	}
	return records, nil
}

// --- Batch jobs ---

func (s *DynamoStore) PutBatchJob(ctx context.Context, job *BatchJob) error {
	if job.CreatedAt == "" {
		job.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.putItem(ctx, pkJob+job.ID, skMeta, job, 0); err != nil {
		return fmt.Errorf("put batch job %s: %w", job.ID, err)
	}

	log.Debug().
		Str("jobId", job.ID).
		Str("status", job.Status).
		Int("totalFiles", job.TotalFiles).
		Msg("Batch job persisted")
	return nil
}

func (s *DynamoStore) GetBatchJob(ctx context.Context, jobID string) (*BatchJob, error) {
	var job BatchJob
	found, err := s.getItem(ctx, pkJob+jobID, skMeta, &job)
	if err != nil {
		return nil, fmt.Errorf("get batch job %s: %w", jobID, err)
	}
	if !found {
		return nil, nil
	}

	job.ID = jobID
	return &job, nil
}

func (s *DynamoStore) IncrementBatchCounters(ctx context.Context, jobID string, processed, failed int) (int, int, error) {
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkJob + jobID},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression: aws.String("ADD processedCount :p, failedCount :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberN{Value: strconv.Itoa(processed)},
			":f": &types.AttributeValueMemberN{Value: strconv.Itoa(failed)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("increment batch counters %s: %w", jobID, err)
	}

	var job BatchJob
	if err := attributevalue.UnmarshalMap(result.Attributes, &job); err != nil {
		return 0, 0, fmt.Errorf("unmarshal batch counters %s: %w", jobID, err)
	}
	return job.ProcessedCount, job.FailedCount, nil
}

func (s *DynamoStore) UpdateBatchJobStatus(ctx context.Context, jobID, status string) error {
	update := "SET #s = :s"
	values := map[string]types.AttributeValue{
		":s": &types.AttributeValueMemberS{Value: status},
	}
	if status == JobStatusCompleted || status == JobStatusFailed {
		update += ", completedAt = :c"
		values[":c"] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkJob + jobID},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression: aws.String(update),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update batch job status %s -> %s: %w", jobID, status, err)
	}

	log.Debug().Str("jobId", jobID).Str("status", status).Msg("Batch job status updated")
	return nil
}
