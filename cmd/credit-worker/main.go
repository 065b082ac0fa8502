// Package main is the entrypoint for the Credit Worker Lambda function.
//
// The Credit Worker drains the pending-credit SQS queue: payments that passed
// signature verification but whose ledger write failed are parked there by the
// API, and this worker re-applies them. The ledger transaction is keyed by
// payment ID, so replaying a message that was already credited is a no-op.
//
// Cold start wires the logger, the PostgreSQL pool, and the plan catalog, then
// registers the SQS batch handler with the Lambda runtime. Partial batch
// responses are used so that SQS retries only the records that failed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"mealtrack/internal/billing"
	"mealtrack/internal/config"
	"mealtrack/internal/db"
	"mealtrack/internal/types"
)

// creditApplier is the slice of the ledger the worker needs.
type creditApplier interface {
	Credit(ctx context.Context, receipt types.PaymentReceipt) (applied bool, balanceAfter int, err error)
}

// Handler holds the dependencies for the credit worker Lambda handler.
type Handler struct {
	catalog billing.Catalog
	ledger  creditApplier
	logger  *slog.Logger
}

// Handle processes an SQS event containing parked credit messages. Records
// that fail with a transient error are reported as batch item failures so
// SQS redrives them; malformed or permanently unprocessable records are
// acknowledged to keep them from poisoning the queue.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to apply pending credit",
				"sqs_message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processRecord applies a single parked credit. A nil return acknowledges
// the record.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var msg types.PendingCreditMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// Parse failures are permanent; retrying cannot fix the payload.
		h.logger.Error("discarding malformed pending-credit message",
			"sqs_message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := h.logger.With(
		"message_id", msg.MessageID,
		"trace_id", msg.TraceID,
		"payment_id", msg.PaymentID,
		"user_id", msg.UserID,
	)

	plan, err := h.catalog.Lookup(msg.PlanID)
	if err != nil {
		// The plan was valid when the API verified the payment. An unknown
		// plan here means a catalog regression; park nothing, alert instead.
		logger.Error("discarding pending credit with unknown plan", "plan_id", msg.PlanID)
		return nil
	}

	applied, balance, err := h.ledger.Credit(ctx, types.PaymentReceipt{
		PaymentID:   msg.PaymentID,
		OrderID:     msg.OrderID,
		UserID:      msg.UserID,
		PlanID:      plan.ID,
		Credits:     plan.Credits,
		AmountMinor: plan.Amount,
		Currency:    plan.Currency,
		Status:      types.PaymentCompleted,
	})
	if err != nil {
		return fmt.Errorf("crediting ledger: %w", err)
	}

	if !applied {
		logger.Info("pending credit already applied", "balance_after", balance)
		return nil
	}

	logger.Info("pending credit applied",
		"credits_added", plan.Credits,
		"balance_after", balance,
		"queued_at", msg.QueuedAt.Format(time.RFC3339),
	)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("credit worker initializing (cold start)")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Lambda containers handle one event at a time; a small pool is enough.
	pool, err := db.NewPool(ctx, config.DatabaseConfig{
		URL:               types.SecretString(databaseURL),
		MaxConns:          2,
		MinConns:          1,
		MaxConnLifetime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	})
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		catalog: billing.NewStaticCatalog(),
		ledger:  db.NewCreditLedgerRepo(pool, logger),
		logger:  logger,
	}

	lambda.Start(handler.Handle)
}
