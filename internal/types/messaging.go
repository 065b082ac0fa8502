package types

import "time"

// PendingCreditMessage is the payload enqueued when a payment passed
// signature verification but the ledger write failed. The credit worker
// consumes these messages and re-applies the credit; the payment id keyed
// receipt makes redelivery safe.
type PendingCreditMessage struct {
	MessageID string    `json:"message_id"`
	TraceID   string    `json:"trace_id"`
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	PlanID    PlanID    `json:"plan_id"`
	QueuedAt  time.Time `json:"queued_at"`
}
