package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/gdevlabs/triage-agent/internal/triage"
)

// SQSAPI is the slice of the SQS client the publisher needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher publishes pending-approval messages to a queue consumed by the
// external review UI.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher returns a publisher bound to a queue URL.
func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// NewSQSClient loads AWS config and returns a concrete SQS client.
func NewSQSClient(ctx context.Context) (SQSAPI, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

// pendingMessage is the queue payload. The draft is included so the reviewer
// sees what would be sent; the action payload itself stays in the store.
type pendingMessage struct {
	PendingID string    `json:"pending_id"`
	Reason    string    `json:"reason"`
	Category  string    `json:"category"`
	Urgency   string    `json:"urgency"`
	Draft     string    `json:"draft"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NotifyPending sends one message per pending decision.
func (p *SQSPublisher) NotifyPending(ctx context.Context, decision triage.PendingDecision, classification triage.ClassificationResult) error {
	body, err := json.Marshal(pendingMessage{
		PendingID: decision.PendingID,
		Reason:    decision.Reason,
		Category:  string(classification.Category),
		Urgency:   string(classification.Urgency),
		Draft:     decision.DraftResponse,
		ExpiresAt: decision.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal pending message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: sdkaws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"pending_id": {
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(decision.PendingID),
			},
			"urgency": {
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(string(classification.Urgency)),
			},
		},
	}
	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
