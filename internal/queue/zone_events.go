// Package queue provides SQS-based message producers for zone change events.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"growgent/internal/types"
	"growgent/internal/zones"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ZonePublisher sends every zone event as one SQS message to a single queue.
// The event type is duplicated into the event_type message attribute so
// subscribers can filter without decoding the body.
type ZonePublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

var _ zones.EventPublisher = (*ZonePublisher)(nil)

// NewZonePublisher creates a publisher for the given queue.
func NewZonePublisher(client SQSSender, queueURL string, logger *slog.Logger) *ZonePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZonePublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Publish serializes ev and sends it to the zone events queue.
func (p *ZonePublisher) Publish(ctx context.Context, ev types.ZoneEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ZoneEvent: %w", err)
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"event_type": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(ev.Type)),
		},
		"zone_id": {
			DataType:    aws.String("String"),
			StringValue: aws.String(ev.ZoneID),
		},
	}
	if ev.RequestID != "" {
		attrs["request_id"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(ev.RequestID),
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send ZoneEvent to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "zone event sent",
		"queue_url", p.queueURL,
		"event_id", ev.EventID,
		"event_type", string(ev.Type),
		"zone_id", ev.ZoneID,
	)
	return nil
}
