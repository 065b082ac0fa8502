// Package queue provides the SQS producer for pending credits: payments
// that passed signature verification but whose ledger write failed.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"mealtrack/internal/config"
	"mealtrack/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// PendingCreditProducer serializes PendingCreditMessages and sends them to
// the pending-credit queue, where the credit worker re-applies them.
type PendingCreditProducer struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewPendingCreditProducer creates a producer for the queue named in the
// AWS configuration.
func NewPendingCreditProducer(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *PendingCreditProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingCreditProducer{
		client:   client,
		queueURL: awsCfg.PendingCreditQueue,
		logger:   logger,
	}
}

// EnqueuePendingCredit sends one pending credit to the queue. The message
// carries everything the worker needs to re-run the crediting transaction;
// redelivery is safe because crediting is keyed by payment id.
func (p *PendingCreditProducer) EnqueuePendingCredit(ctx context.Context, msg types.PendingCreditMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal PendingCreditMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String("ledger_write_failed"),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send PendingCreditMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "pending credit enqueued",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"trace_id", msg.TraceID,
		"payment_id", msg.PaymentID,
		"user_id", msg.UserID,
	)

	return nil
}
