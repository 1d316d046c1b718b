package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/payment"
	"github.com/noah-isme/admission-portal-api/pkg/response"
)

type paymentService interface {
	Initiate(ctx context.Context, session *models.Session, id string) (*dto.PaymentCheckout, error)
	HandleNotification(ctx context.Context, n payment.Notification) error
}

// PaymentHandler serves the application fee checkout.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Initiate godoc
// @Summary Start the fee payment
// @Description Creates a hosted checkout and moves the application to PAYMENT_DUE
// @Tags Payments
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /applications/{id}/payment [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	checkout, err := h.service.Initiate(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, checkout, nil)
}

// Notification godoc
// @Summary Midtrans payment notification
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body payment.Notification true "Notification"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/midtrans/notification [post]
func (h *PaymentHandler) Notification(c *gin.Context) {
	var n payment.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notification payload"))
		return
	}
	if err := h.service.HandleNotification(c.Request.Context(), n); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"received": true}, nil)
}
