package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// computeSignature returns the hex HMAC-SHA256 of "orderID|paymentID" under
// the gateway key secret. This is the signature scheme Razorpay uses for
// checkout callbacks.
func computeSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// signatureMatches compares an expected signature against the client-supplied
// one in constant time. Both sides are compared as hex strings.
func signatureMatches(secret, orderID, paymentID, provided string) bool {
	expected := computeSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(provided))
}
