package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/response"
)

type otpService interface {
	Send(ctx context.Context, session *models.Session, applicationID string, channel models.OTPChannel) (*models.OTPStatus, error)
	Verify(ctx context.Context, session *models.Session, applicationID string, channel models.OTPChannel, req dto.VerifyOTPRequest) (*dto.OTPVerification, error)
	Status(ctx context.Context, session *models.Session, applicationID string, channel models.OTPChannel) (*models.OTPStatus, error)
}

// OTPHandler serves contact verification.
type OTPHandler struct {
	service otpService
}

// NewOTPHandler constructs the handler.
func NewOTPHandler(service otpService) *OTPHandler {
	return &OTPHandler{service: service}
}

func channelParam(c *gin.Context) (models.OTPChannel, bool) {
	channel, ok := models.ParseOTPChannel(c.Param("channel"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "channel must be mobile or email"))
	}
	return channel, ok
}

// Send godoc
// @Summary Send a verification code
// @Tags OTP
// @Produce json
// @Param id path string true "Application ID"
// @Param channel path string true "Channel" Enums(mobile, email)
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /applications/{id}/otp/{channel}/send [post]
func (h *OTPHandler) Send(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}
	status, err := h.service.Send(c.Request.Context(), sessionFromContext(c), c.Param("id"), channel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Verify godoc
// @Summary Verify a code
// @Tags OTP
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param channel path string true "Channel" Enums(mobile, email)
// @Param payload body dto.VerifyOTPRequest true "Code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /applications/{id}/otp/{channel}/verify [post]
func (h *OTPHandler) Verify(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "code is required"))
		return
	}
	result, err := h.service.Verify(c.Request.Context(), sessionFromContext(c), c.Param("id"), channel, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Status godoc
// @Summary Verification status
// @Tags OTP
// @Produce json
// @Param id path string true "Application ID"
// @Param channel path string true "Channel" Enums(mobile, email)
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/otp/{channel} [get]
func (h *OTPHandler) Status(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}
	status, err := h.service.Status(c.Request.Context(), sessionFromContext(c), c.Param("id"), channel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
