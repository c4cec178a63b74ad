// Package notify publishes detection events to SNS and manages
// species-filtered email subscriptions. Each email subscription carries
// an SNS FilterPolicy on the species message attribute, so subscribers
// only receive mail for the birds they asked about.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rs/zerolog/log"
)

// snsAPI is the slice of the SNS client we use, extracted for tests.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

// Publisher sends detection events and manages subscriptions on one
// SNS topic.
type Publisher struct {
	client   snsAPI
	topicARN string
}

// NewPublisher creates a Publisher for the given topic.
func NewPublisher(client *sns.Client, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

// DetectionEvent is the JSON message body published per detection.
type DetectionEvent struct {
	FileKey    string   `json:"fileKey"`
	FileURL    string   `json:"fileUrl,omitempty"`
	Species    []string `json:"species"`
	DetectedAt string   `json:"detectedAt"`
	Source     string   `json:"source,omitempty"`
}

// PublishDetection publishes a detection event with a species message
// attribute (String.Array) so per-species filter policies match.
// Returns the SNS message ID.
func (p *Publisher) PublishDetection(ctx context.Context, event DetectionEvent) (string, error) {
	if event.DetectedAt == "" {
		event.DetectedAt = time.Now().UTC().Format(time.RFC3339)
	}
	for i, sp := range event.Species {
		event.Species[i] = strings.ToLower(strings.TrimSpace(sp))
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal detection event: %w", err)
	}
	speciesAttr, err := json.Marshal(event.Species)
	if err != nil {
		return "", fmt.Errorf("marshal species attribute: %w", err)
	}

	subject := "BirdTag: " + strings.Join(event.Species, ", ") + " detected"
	output, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &p.topicARN,
		Subject:  &subject,
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"species": {
				DataType:    aws.String("String.Array"),
				StringValue: aws.String(string(speciesAttr)),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("SNS Publish: %w", err)
	}

	messageID := aws.ToString(output.MessageId)
	log.Info().
		Str("fileKey", event.FileKey).
		Strs("species", event.Species).
		Str("messageId", messageID).
		Msg("Detection event published")
	return messageID, nil
}

// Subscribe creates an email subscription filtered to the given species
// set and returns the subscription ARN. Until the recipient confirms,
// SNS reports the ARN as "pending confirmation".
func (p *Publisher) Subscribe(ctx context.Context, email string, species []string) (string, error) {
	normalized := make([]string, len(species))
	for i, sp := range species {
		normalized[i] = strings.ToLower(strings.TrimSpace(sp))
	}

	policy, err := json.Marshal(map[string][]string{"species": normalized})
	if err != nil {
		return "", fmt.Errorf("marshal filter policy: %w", err)
	}

	output, err := p.client.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              &p.topicARN,
		Protocol:              aws.String("email"),
		Endpoint:              &email,
		ReturnSubscriptionArn: true,
		Attributes: map[string]string{
			"FilterPolicy": string(policy),
		},
	})
	if err != nil {
		return "", fmt.Errorf("SNS Subscribe %s: %w", email, err)
	}

	arn := aws.ToString(output.SubscriptionArn)
	log.Info().Str("email", email).Strs("species", normalized).Str("arn", arn).Msg("Email subscription created")
	return arn, nil
}

// Unsubscribe removes a subscription by ARN. Pending subscriptions have
// no real ARN yet and are skipped; they expire on their own.
func (p *Publisher) Unsubscribe(ctx context.Context, subscriptionARN string) error {
	if subscriptionARN == "" || strings.Contains(subscriptionARN, "pending") {
		log.Debug().Str("arn", subscriptionARN).Msg("Skipping unsubscribe of unconfirmed subscription")
		return nil
	}

	_, err := p.client.Unsubscribe(ctx, &sns.UnsubscribeInput{
		SubscriptionArn: &subscriptionARN,
	})
	if err != nil {
		return fmt.Errorf("SNS Unsubscribe %s: %w", subscriptionARN, err)
	}
	return nil
}
