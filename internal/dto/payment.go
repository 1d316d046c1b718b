package dto

import "github.com/noah-isme/admission-portal-api/internal/models"

// PaymentCheckout is returned when the applicant starts paying the fee.
// Checkout is nil for intakes without an application fee.
type PaymentCheckout struct {
	ApplicationID string            `json:"applicationId"`
	FormStatus    models.FormStatus `json:"formStatus"`
	Tone          models.StatusTone `json:"tone"`
	Amount        int64             `json:"amount"`
	OrderID       string            `json:"orderId,omitempty"`
	Token         string            `json:"token,omitempty"`
	RedirectURL   string            `json:"redirectUrl,omitempty"`
}
