package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// Analytics sink names accepted in ANALYTICS_SINK.
const (
	SinkLog      = "log"
	SinkSQS      = "sqs"
	SinkDynamoDB = "dynamodb"
)

// SQSAPI is the subset of the SQS client the sink uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink publishes each outbox payload to the analytics queue.
type SQSSink struct {
	client   SQSAPI
	queueURL string
}

func NewSQSSink(client SQSAPI, queueURL string) *SQSSink {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSSink{client: client, queueURL: queueURL}
}

func (s *SQSSink) Handle(ctx context.Context, entry OutboxEntry) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
			"eventId":   {DataType: aws.String("String"), StringValue: aws.String(entry.ID.String())},
		},
	}
	if strings.HasSuffix(s.queueURL, ".fifo") {
		group := entry.Aggregate
		if group == "" {
			group = entry.Type
		}
		input.MessageGroupId = aws.String(group)
		input.MessageDeduplicationId = aws.String(entry.ID.String())
	}
	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

// DynamoAPI is the subset of the DynamoDB client the sink uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// conversionItem is the row written to the conversions table.
type conversionItem struct {
	EventID         string         `dynamodbav:"eventId"`
	SessionID       string         `dynamodbav:"sessionId"`
	VisitorID       string         `dynamodbav:"visitorId,omitempty"`
	EventType       string         `dynamodbav:"eventType"`
	FormID          string         `dynamodbav:"formId"`
	FormName        string         `dynamodbav:"formName,omitempty"`
	PageURL         string         `dynamodbav:"pageUrl,omitempty"`
	Timestamp       string         `dynamodbav:"timestamp"`
	LeadData        map[string]any `dynamodbav:"leadData,omitempty"`
	ConversionValue float64        `dynamodbav:"conversionValue"`
	CampaignSource  string         `dynamodbav:"campaignSource,omitempty"`
	CampaignMedium  string         `dynamodbav:"campaignMedium,omitempty"`
	CampaignName    string         `dynamodbav:"campaignName,omitempty"`
	StoredAt        string         `dynamodbav:"storedAt"`
}

// DynamoSink stores conversions in a DynamoDB table keyed by eventId.
type DynamoSink struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

func NewDynamoSink(client DynamoAPI, tableName string) *DynamoSink {
	if client == nil {
		panic("events: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("events: table name cannot be empty")
	}
	return &DynamoSink{client: client, tableName: tableName, now: time.Now}
}

func (s *DynamoSink) Handle(ctx context.Context, entry OutboxEntry) error {
	if entry.Type != OutboxTypeConversion {
		return fmt.Errorf("events: dynamodb sink cannot store %q", entry.Type)
	}
	var event ConversionEvent
	if err := json.Unmarshal(entry.Payload, &event); err != nil {
		return fmt.Errorf("events: decode conversion: %w", err)
	}
	item, err := attributevalue.MarshalMap(conversionItem{
		EventID:         entry.ID.String(),
		SessionID:       event.SessionID,
		VisitorID:       event.VisitorID,
		EventType:       event.EventType,
		FormID:          event.FormID,
		FormName:        event.FormName,
		PageURL:         event.PageURL,
		Timestamp:       event.Timestamp.UTC().Format(time.RFC3339Nano),
		LeadData:        event.LeadData,
		ConversionValue: event.ConversionValue,
		CampaignSource:  event.CampaignSource,
		CampaignMedium:  event.CampaignMedium,
		CampaignName:    event.CampaignName,
		StoredAt:        s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("events: marshal conversion item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(eventId)"),
	})
	var conditional *dynamotypes.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		// written by an earlier attempt whose MarkDelivered failed
		return nil
	}
	if err != nil {
		return fmt.Errorf("events: put conversion: %w", err)
	}
	return nil
}

// LogSink writes each entry to the structured log. It is the development default.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Handle(_ context.Context, entry OutboxEntry) error {
	s.logger.Info("analytics event", "event_id", entry.ID, "type", entry.Type, "aggregate", entry.Aggregate, "payload", string(entry.Payload))
	return nil
}
