package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakeSNS struct {
	publishInput   *sns.PublishInput
	subscribeInput *sns.SubscribeInput
	unsubscribeARN string
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.publishInput = params
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func (f *fakeSNS) Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	f.subscribeInput = params
	return &sns.SubscribeOutput{SubscriptionArn: aws.String("arn:aws:sns:sub-1")}, nil
}

func (f *fakeSNS) Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error) {
	f.unsubscribeARN = aws.ToString(params.SubscriptionArn)
	return &sns.UnsubscribeOutput{}, nil
}

func TestPublishDetection(t *testing.T) {
	fake := &fakeSNS{}
	p := &Publisher{client: fake, topicARN: "arn:aws:sns:topic"}

	id, err := p.PublishDetection(context.Background(), DetectionEvent{
		FileKey: "species/crow/a1.jpg",
		Species: []string{"Crow", "pigeon"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "msg-123" {
		t.Errorf("messageID = %q", id)
	}

	attr := fake.publishInput.MessageAttributes["species"]
	if aws.ToString(attr.DataType) != "String.Array" {
		t.Errorf("species attribute type = %q", aws.ToString(attr.DataType))
	}

	var speciesList []string
	if err := json.Unmarshal([]byte(aws.ToString(attr.StringValue)), &speciesList); err != nil {
		t.Fatalf("species attribute is not a JSON array: %v", err)
	}
	if speciesList[0] != "crow" {
		t.Errorf("species should be lowercased, got %v", speciesList)
	}

	var event DetectionEvent
	if err := json.Unmarshal([]byte(aws.ToString(fake.publishInput.Message)), &event); err != nil {
		t.Fatalf("message body is not valid JSON: %v", err)
	}
	if event.FileKey != "species/crow/a1.jpg" || event.DetectedAt == "" {
		t.Errorf("event = %+v", event)
	}
}

func TestSubscribeFilterPolicy(t *testing.T) {
	fake := &fakeSNS{}
	p := &Publisher{client: fake, topicARN: "arn:aws:sns:topic"}

	arn, err := p.Subscribe(context.Background(), "bird@example.com", []string{"Crow"})
	if err != nil {
		t.Fatal(err)
	}
	if arn != "arn:aws:sns:sub-1" {
		t.Errorf("arn = %q", arn)
	}

	if got := aws.ToString(fake.subscribeInput.Protocol); got != "email" {
		t.Errorf("protocol = %q", got)
	}

	var policy map[string][]string
	if err := json.Unmarshal([]byte(fake.subscribeInput.Attributes["FilterPolicy"]), &policy); err != nil {
		t.Fatalf("filter policy is not valid JSON: %v", err)
	}
	if len(policy["species"]) != 1 || policy["species"][0] != "crow" {
		t.Errorf("filter policy = %v", policy)
	}
}

func TestUnsubscribeSkipsPending(t *testing.T) {
	fake := &fakeSNS{}
	p := &Publisher{client: fake, topicARN: "arn:aws:sns:topic"}

	if err := p.Unsubscribe(context.Background(), "pending confirmation"); err != nil {
		t.Fatal(err)
	}
	if fake.unsubscribeARN != "" {
		t.Error("pending subscription should not call SNS Unsubscribe")
	}

	if err := p.Unsubscribe(context.Background(), "arn:aws:sns:sub-1"); err != nil {
		t.Fatal(err)
	}
	if fake.unsubscribeARN != "arn:aws:sns:sub-1" {
		t.Errorf("unsubscribed arn = %q", fake.unsubscribeARN)
	}
}
