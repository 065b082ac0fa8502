package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"mealtrack/internal/types"
)

// CreditLedgerRepo manages the per-user credit balance and the append-only
// payment receipt table.
//
// Key invariants:
//   - Crediting is keyed by payment_id (primary key on payments); applying
//     the same payment twice is a no-op that reports the originally
//     recorded balance.
//   - The receipt insert and the balance increment happen in one
//     transaction; they commit or roll back together.
//   - remaining_credits never goes below zero: the decrement is guarded by
//     "remaining_credits > 0" and checked via rows affected.
type CreditLedgerRepo struct {
	db     TxBeginner
	logger *slog.Logger
}

// NewCreditLedgerRepo creates a CreditLedgerRepo backed by the given pool.
func NewCreditLedgerRepo(db TxBeginner, logger *slog.Logger) *CreditLedgerRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditLedgerRepo{db: db, logger: logger}
}

// GetBalance returns the user's current credit balance. A user without a
// subscription row has a balance of zero; rows are created lazily by the
// first credit.
func (r *CreditLedgerRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.db.QueryRow(ctx,
		`SELECT remaining_credits FROM subscriptions WHERE user_id = $1`,
		userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read credit balance", err)
	}
	return balance, nil
}

// GetReceipt looks up a payment receipt by payment id. Returns (nil, nil)
// when no receipt exists; the verifier uses this for its idempotency check.
func (r *CreditLedgerRepo) GetReceipt(ctx context.Context, paymentID string) (*types.PaymentReceipt, error) {
	var receipt types.PaymentReceipt
	err := r.db.QueryRow(ctx,
		`SELECT payment_id, order_id, user_id, plan_id, credits, amount_minor,
		        currency, status, balance_after, created_at
		 FROM payments WHERE payment_id = $1`,
		paymentID,
	).Scan(
		&receipt.PaymentID,
		&receipt.OrderID,
		&receipt.UserID,
		&receipt.PlanID,
		&receipt.Credits,
		&receipt.AmountMinor,
		&receipt.Currency,
		&receipt.Status,
		&receipt.BalanceAfter,
		&receipt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read payment receipt", err)
	}
	return &receipt, nil
}

// Credit applies a verified payment atomically: it records the receipt and
// increments the user's balance in a single transaction.
//
// The receipt insert uses ON CONFLICT DO NOTHING on the payment_id primary
// key. Zero rows affected means a concurrent (or earlier) call already
// applied this payment; the stored balance_after is returned with
// applied=false and the balance is NOT incremented again.
func (r *CreditLedgerRepo) Credit(ctx context.Context, receipt types.PaymentReceipt) (applied bool, balanceAfter int, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to begin credit transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO payments
		   (payment_id, order_id, user_id, plan_id, credits, amount_minor,
		    currency, status, balance_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NOW())
		 ON CONFLICT (payment_id) DO NOTHING`,
		receipt.PaymentID,
		receipt.OrderID,
		receipt.UserID,
		receipt.PlanID,
		receipt.Credits,
		receipt.AmountMinor,
		receipt.Currency,
		receipt.Status,
	)
	if err != nil {
		return false, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to insert payment receipt", err)
	}

	if tag.RowsAffected() == 0 {
		// Payment already credited. Report the balance recorded at the
		// time it was first applied.
		var stored int
		err = tx.QueryRow(ctx,
			`SELECT balance_after FROM payments WHERE payment_id = $1`,
			receipt.PaymentID,
		).Scan(&stored)
		if err != nil {
			return false, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read existing receipt", err)
		}
		r.logger.InfoContext(ctx, "duplicate payment ignored",
			slog.String("payment_id", receipt.PaymentID),
			slog.String("user_id", receipt.UserID),
		)
		return false, stored, nil
	}

	var newBalance int
	err = tx.QueryRow(ctx,
		`INSERT INTO subscriptions (user_id, remaining_credits, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		   SET remaining_credits = subscriptions.remaining_credits + EXCLUDED.remaining_credits,
		       updated_at = NOW()
		 RETURNING remaining_credits`,
		receipt.UserID,
		receipt.Credits,
	).Scan(&newBalance)
	if err != nil {
		return false, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to increment credit balance", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE payments SET balance_after = $1 WHERE payment_id = $2`,
		newBalance,
		receipt.PaymentID,
	)
	if err != nil {
		return false, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to record balance on receipt", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to commit credit transaction", err)
	}

	r.logger.InfoContext(ctx, "payment credited",
		slog.String("payment_id", receipt.PaymentID),
		slog.String("user_id", receipt.UserID),
		slog.Int("credits", receipt.Credits),
		slog.Int("new_balance", newBalance),
	)

	return true, newBalance, nil
}

// ConsumeCredit decrements the user's balance by one if and only if the
// balance is positive. The guard and the decrement are a single UPDATE, so
// concurrent consumers can never drive the balance negative: with N credits
// remaining, at most N concurrent calls succeed.
//
// Returns the remaining balance after the decrement, or an AppError with
// code credits_exhausted when no credit was available.
func (r *CreditLedgerRepo) ConsumeCredit(ctx context.Context, userID string) (int, error) {
	var remaining int
	err := r.db.QueryRow(ctx,
		`UPDATE subscriptions
		 SET remaining_credits = remaining_credits - 1,
		     updated_at = NOW()
		 WHERE user_id = $1
		   AND remaining_credits > 0
		 RETURNING remaining_credits`,
		userID,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, types.NewAppError(
			types.ErrCodeCreditsExhausted,
			"no analysis credits remaining",
			nil,
		)
	}
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to consume credit", err)
	}
	return remaining, nil
}
