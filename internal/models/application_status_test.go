package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to FormStatus }{
		{FormStatusDraft, FormStatusPaymentDue},
		{FormStatusDraft, FormStatusPaymentSuccess},
		{FormStatusPaymentDue, FormStatusPaymentSuccess},
		{FormStatusPaymentDue, FormStatusPaymentFailed},
		{FormStatusPaymentFailed, FormStatusPaymentDue},
		{FormStatusPaymentSuccess, FormStatusSubmitted},
		{FormStatusSubmitted, FormStatusApproved},
		{FormStatusSubmitted, FormStatusRejected},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to FormStatus }{
		{FormStatusRejected, FormStatusApproved},
		{FormStatusApproved, FormStatusRejected},
		{FormStatusDraft, FormStatusApproved},
		{FormStatusDraft, FormStatusSubmitted},
		{FormStatusPaymentSuccess, FormStatusPaymentDue},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}

	assert.True(t, FormStatusApproved.Terminal())
	assert.True(t, FormStatusRejected.Terminal())
	assert.False(t, FormStatusSubmitted.Terminal())
}

func TestFormStatusTone(t *testing.T) {
	tones := map[FormStatus]StatusTone{
		FormStatusSubmitted:      ToneSuccess,
		FormStatusApproved:       ToneSuccess,
		FormStatusPaymentSuccess: ToneSuccess,
		FormStatusRejected:       ToneFailure,
		FormStatusPaymentFailed:  ToneFailure,
		FormStatusDraft:          TonePending,
		FormStatusPaymentDue:     TonePending,
	}
	for status, tone := range tones {
		assert.Equal(t, tone, status.Tone(), string(status))
	}
}
