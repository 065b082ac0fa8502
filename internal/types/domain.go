// Package types defines the shared domain model for the MealTrack backend:
// plans, subscriptions, payment receipts, meals, and the error taxonomy.
// It has no dependencies on other internal packages so that every layer
// (handlers, services, repositories, workers) can import it freely.
package types

import "time"

// PlanID identifies a purchasable credit plan.
type PlanID string

const (
	PlanBasic    PlanID = "BASIC"
	PlanStandard PlanID = "STANDARD"
	PlanPremium  PlanID = "PREMIUM"
)

// Plan describes a purchasable credit package. Amount is in the currency's
// minor unit (paise for INR). Credits is the number of meal analyses the
// purchase grants.
type Plan struct {
	ID       PlanID `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Credits  int    `json:"credits"`
}

// Subscription is the per-user credit balance. RemainingCredits is never
// negative; the ledger repository enforces this at the SQL level.
type Subscription struct {
	UserID           string    `json:"user_id"`
	RemainingCredits int       `json:"remaining_credits"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PaymentStatus is the lifecycle state of a payment receipt.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
)

// PaymentReceipt is the append-only record of a credited payment.
// PaymentID is the primary key; its uniqueness is what makes crediting
// idempotent. BalanceAfter stores the subscription balance immediately
// after this payment was applied so that duplicate verification calls can
// report the same resulting balance.
type PaymentReceipt struct {
	PaymentID    string        `json:"payment_id"`
	OrderID      string        `json:"order_id"`
	UserID       string        `json:"user_id"`
	PlanID       PlanID        `json:"plan_id"`
	Credits      int           `json:"credits"`
	AmountMinor  int64         `json:"amount"`
	Currency     string        `json:"currency"`
	Status       PaymentStatus `json:"status"`
	BalanceAfter int           `json:"balance_after"`
	CreatedAt    time.Time     `json:"created_at"`
}

// PaymentOrder is the provider-side order returned to the client so it can
// open the checkout flow. KeyID is the provider's publishable key.
type PaymentOrder struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	PlanID   PlanID `json:"plan_id"`
	KeyID    string `json:"key_id"`
}

// VerifyPaymentInput carries the callback parameters the payment provider
// hands to the client after checkout completes.
type VerifyPaymentInput struct {
	OrderID   string
	PaymentID string
	Signature string
	UserID    string
	PlanID    PlanID
}

// VerifyPaymentResult reports the outcome of a successful verification.
// AlreadyCredited is true when the payment had been applied by an earlier
// call; NewBalance is then the balance recorded at that first application.
type VerifyPaymentResult struct {
	NewBalance      int  `json:"new_balance"`
	CreditsAdded    int  `json:"credits_added"`
	AlreadyCredited bool `json:"already_credited"`
}

// MealAnalysis is the structured result of a vision-model analysis of a
// meal photo.
type MealAnalysis struct {
	Name        string `json:"name"`
	Calories    int    `json:"calories"`
	Protein     int    `json:"protein"`
	Description string `json:"description"`
}

// Meal is a persisted meal record belonging to a user.
type Meal struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Calories  int       `json:"calories"`
	Protein   int       `json:"protein"`
	ImageURL  string    `json:"image_url,omitempty"`
	EatenAt   time.Time `json:"eaten_at"`
	CreatedAt time.Time `json:"created_at"`
}

// MealUpdate carries the mutable meal fields for a partial update. Nil
// pointers mean "leave unchanged".
type MealUpdate struct {
	Name     *string
	Calories *int
	Protein  *int
	EatenAt  *time.Time
}

// DailyGoals holds a user's calorie and protein targets.
type DailyGoals struct {
	UserID      string    `json:"user_id"`
	CalorieGoal int       `json:"calorie_goal"`
	ProteinGoal int       `json:"protein_goal"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DailyTotals aggregates the meals logged on a single day.
type DailyTotals struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Meals    int `json:"meals"`
}

// DailySummary joins a day's totals with the user's goals.
type DailySummary struct {
	Date   string      `json:"date"`
	Totals DailyTotals `json:"totals"`
	Goals  *DailyGoals `json:"goals,omitempty"`
}
