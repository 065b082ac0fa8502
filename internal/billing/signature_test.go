package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignature_KnownVector(t *testing.T) {
	// HMAC-SHA256("order_1|pay_1", "secret"), hex-encoded.
	sig := computeSignature("secret", "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, computeSignature("secret", "order_1", "pay_1"))
}

func TestSignatureMatches(t *testing.T) {
	secret := "rzp_test_secret"
	valid := computeSignature(secret, "order_1", "pay_1")

	assert.True(t, signatureMatches(secret, "order_1", "pay_1", valid))

	// Any single differing input invalidates the signature.
	assert.False(t, signatureMatches(secret, "order_2", "pay_1", valid))
	assert.False(t, signatureMatches(secret, "order_1", "pay_2", valid))
	assert.False(t, signatureMatches("other_secret", "order_1", "pay_1", valid))
	assert.False(t, signatureMatches(secret, "order_1", "pay_1", valid[:63]+"0"))
	assert.False(t, signatureMatches(secret, "order_1", "pay_1", ""))
}

func TestSignatureMatches_SwappedIDs(t *testing.T) {
	// The delimiter fixes field boundaries; swapping order and payment IDs
	// must not produce the same signature.
	secret := "rzp_test_secret"
	sig := computeSignature(secret, "abc", "def")
	assert.False(t, signatureMatches(secret, "def", "abc", sig))
}
