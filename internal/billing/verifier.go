package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mealtrack/internal/config"
	"mealtrack/internal/types"
)

// CreditLedger is the slice of the ledger repository the verifier needs.
type CreditLedger interface {
	// Credit applies a receipt atomically. applied is false when the
	// payment had already been credited; balanceAfter is then the balance
	// recorded at that first application.
	Credit(ctx context.Context, receipt types.PaymentReceipt) (applied bool, balanceAfter int, err error)
}

// PendingCreditEnqueuer hands storage-failed credits to the retry queue.
type PendingCreditEnqueuer interface {
	EnqueuePendingCredit(ctx context.Context, msg types.PendingCreditMessage) error
}

// PaymentVerifier checks checkout callback signatures and credits verified
// payments. Verification is pure computation over the callback parameters
// and the key secret; no gateway API call is involved.
type PaymentVerifier struct {
	catalog   Catalog
	ledger    CreditLedger
	keySecret string
	queue     PendingCreditEnqueuer // nil when no retry queue is configured
	logger    *slog.Logger
}

// NewPaymentVerifier builds a PaymentVerifier. queue may be nil; storage
// failures are then returned to the caller instead of being parked for
// retry.
func NewPaymentVerifier(catalog Catalog, ledger CreditLedger, cfg config.RazorpayConfig, queue PendingCreditEnqueuer, logger *slog.Logger) *PaymentVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentVerifier{
		catalog:   catalog,
		ledger:    ledger,
		keySecret: cfg.KeySecret.Unmask(),
		queue:     queue,
		logger:    logger,
	}
}

// VerifyAndCredit validates the callback signature and, on success, credits
// the plan's grant to the user exactly once.
//
// Ordering is load-bearing: the signature check precedes every read or
// write, so an attacker without the key secret cannot cause any state
// change, and a payment_signature_invalid response carries no information
// about whether the payment exists.
//
// When the ledger write fails after a valid signature, the user has paid
// but holds no credits. The receipt is parked on the retry queue and the
// caller gets payment_credit_pending; the worker applies it later through
// the same idempotent path.
func (v *PaymentVerifier) VerifyAndCredit(ctx context.Context, in types.VerifyPaymentInput) (*types.VerifyPaymentResult, error) {
	if !signatureMatches(v.keySecret, in.OrderID, in.PaymentID, in.Signature) {
		// Forged or corrupted callback. Logged loudly since repeated
		// mismatches for one user are a fraud signal.
		v.logger.WarnContext(ctx, "payment signature mismatch",
			"order_id", in.OrderID,
			"payment_id", in.PaymentID,
			"user_id", in.UserID,
		)
		return nil, types.NewAppError(
			types.ErrCodePaymentSignatureInvalid,
			"payment verification failed",
			nil,
		)
	}

	plan, err := v.catalog.Lookup(in.PlanID)
	if err != nil {
		return nil, err
	}

	receipt := types.PaymentReceipt{
		PaymentID:   in.PaymentID,
		OrderID:     in.OrderID,
		UserID:      in.UserID,
		PlanID:      plan.ID,
		Credits:     plan.Credits,
		AmountMinor: plan.Amount,
		Currency:    plan.Currency,
		Status:      types.PaymentCompleted,
	}

	applied, balance, err := v.ledger.Credit(ctx, receipt)
	if err != nil {
		return nil, v.handleCreditFailure(ctx, in, err)
	}

	result := &types.VerifyPaymentResult{
		NewBalance:      balance,
		AlreadyCredited: !applied,
	}
	if applied {
		result.CreditsAdded = plan.Credits
	}
	return result, nil
}

// handleCreditFailure parks a verified-but-uncredited payment on the retry
// queue. Without a queue, or when enqueueing also fails, the storage error
// goes back to the caller so the client can retry verification; the
// payment-keyed receipt keeps the retry safe.
func (v *PaymentVerifier) handleCreditFailure(ctx context.Context, in types.VerifyPaymentInput, creditErr error) error {
	v.logger.ErrorContext(ctx, "ledger write failed for verified payment",
		"payment_id", in.PaymentID,
		"order_id", in.OrderID,
		"user_id", in.UserID,
		"error", creditErr,
	)

	if v.queue == nil {
		return creditErr
	}

	msg := types.PendingCreditMessage{
		MessageID: uuid.NewString(),
		TraceID:   types.GetRequestID(ctx),
		PaymentID: in.PaymentID,
		OrderID:   in.OrderID,
		UserID:    in.UserID,
		PlanID:    in.PlanID,
		QueuedAt:  time.Now().UTC(),
	}
	if err := v.queue.EnqueuePendingCredit(ctx, msg); err != nil {
		v.logger.ErrorContext(ctx, "failed to enqueue pending credit",
			"payment_id", in.PaymentID,
			"error", err,
		)
		return creditErr
	}

	return types.NewAppError(
		types.ErrCodePaymentCreditPending,
		"payment verified; credits will be applied shortly",
		creditErr,
	)
}
