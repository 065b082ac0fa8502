package external

import (
	stripe "github.com/stripe/stripe-go/v82"
)

// Stripe webhook event types the credit flow consumes.
const (
	EventStripeCheckoutCompleted = "checkout.session.completed"
)

// StripeEventVerifier validates a webhook payload against its signature
// header and signing secret.
type StripeEventVerifier interface {
	Verify(payload []byte, header, secret string) error
}

// StripeVerifier implements StripeEventVerifier with stripe-go's payload
// validation, which checks the HMAC signature and the timestamp tolerance.
type StripeVerifier struct{}

func (v *StripeVerifier) Verify(payload []byte, header, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}

// Compile-time interface compliance check.
var _ StripeEventVerifier = (*StripeVerifier)(nil)
