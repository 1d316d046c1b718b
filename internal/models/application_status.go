package models

// FormStatus is the lifecycle state of an application.
type FormStatus string

const (
	FormStatusDraft          FormStatus = "DRAFT"
	FormStatusPaymentDue     FormStatus = "PAYMENT_DUE"
	FormStatusPaymentSuccess FormStatus = "PAYMENT_SUCCESS"
	FormStatusPaymentFailed  FormStatus = "PAYMENT_FAILED"
	FormStatusSubmitted      FormStatus = "SUBMITTED"
	FormStatusApproved       FormStatus = "APPROVED"
	FormStatusRejected       FormStatus = "REJECTED"
)

// StatusTone is the display treatment for a status.
type StatusTone string

const (
	ToneSuccess StatusTone = "success"
	ToneFailure StatusTone = "failure"
	TonePending StatusTone = "pending"
)

var formTransitions = map[FormStatus][]FormStatus{
	FormStatusDraft:          {FormStatusPaymentDue, FormStatusPaymentSuccess},
	FormStatusPaymentDue:     {FormStatusPaymentSuccess, FormStatusPaymentFailed},
	FormStatusPaymentFailed:  {FormStatusPaymentDue, FormStatusPaymentSuccess},
	FormStatusPaymentSuccess: {FormStatusSubmitted},
	FormStatusSubmitted:      {FormStatusApproved, FormStatusRejected},
	FormStatusApproved:       nil,
	FormStatusRejected:       nil,
}

// FormStatuses lists every status in lifecycle order.
func FormStatuses() []FormStatus {
	return []FormStatus{
		FormStatusDraft,
		FormStatusPaymentDue,
		FormStatusPaymentFailed,
		FormStatusPaymentSuccess,
		FormStatusSubmitted,
		FormStatusApproved,
		FormStatusRejected,
	}
}

// Valid reports whether s is a known status.
func (s FormStatus) Valid() bool {
	_, ok := formTransitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is allowed.
func (s FormStatus) CanTransition(next FormStatus) bool {
	for _, allowed := range formTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s FormStatus) Terminal() bool {
	return s.Valid() && len(formTransitions[s]) == 0
}

// Submitted reports whether the student has submitted the form. Identity
// fields are frozen from this point on.
func (s FormStatus) Submitted() bool {
	switch s {
	case FormStatusSubmitted, FormStatusApproved, FormStatusRejected:
		return true
	}
	return false
}

// Paid reports whether the application fee has been settled.
func (s FormStatus) Paid() bool {
	return s == FormStatusPaymentSuccess || s.Submitted()
}

// Tone returns the display treatment.
func (s FormStatus) Tone() StatusTone {
	switch s {
	case FormStatusSubmitted, FormStatusApproved, FormStatusPaymentSuccess:
		return ToneSuccess
	case FormStatusRejected, FormStatusPaymentFailed:
		return ToneFailure
	default:
		return TonePending
	}
}
