package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	n := Notification{OrderID: "ADM-2024-000001-1", StatusCode: "200", GrossAmount: "150000.00"}
	n.SignatureKey = Sign(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")

	assert.True(t, VerifySignature(n, "server-key"))
	assert.False(t, VerifySignature(n, "other-key"))

	n.SignatureKey = ""
	assert.False(t, VerifySignature(n, "server-key"))
}

func TestClassify(t *testing.T) {
	cases := map[string]Outcome{
		"settlement": OutcomePaid,
		"capture":    OutcomePaid,
		"deny":       OutcomeFailed,
		"expire":     OutcomeFailed,
		"cancel":     OutcomeFailed,
		"pending":    OutcomePending,
		"refund":     OutcomeIgnored,
	}
	for status, want := range cases {
		assert.Equal(t, want, Classify(Notification{TransactionStatus: status}), status)
	}
	assert.Equal(t, OutcomePending, Classify(Notification{TransactionStatus: "capture", FraudStatus: "challenge"}))
}
