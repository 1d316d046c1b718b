package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/pkg/response"
)

type acknowledgementService interface {
	Slip(ctx context.Context, session *models.Session, applicationID string) ([]byte, string, error)
	Verify(ctx context.Context, token string) (*dto.AcknowledgementView, error)
}

// AcknowledgementHandler serves the submission slip and its public check.
type AcknowledgementHandler struct {
	service acknowledgementService
}

// NewAcknowledgementHandler constructs the handler.
func NewAcknowledgementHandler(service acknowledgementService) *AcknowledgementHandler {
	return &AcknowledgementHandler{service: service}
}

// Slip godoc
// @Summary Download the acknowledgement slip
// @Tags Acknowledgements
// @Produce application/pdf
// @Param id path string true "Application ID"
// @Success 200 {file} file
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/acknowledgement [get]
func (h *AcknowledgementHandler) Slip(c *gin.Context) {
	payload, filename, err := h.service.Slip(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", payload)
}

// Verify godoc
// @Summary Verify an acknowledgement
// @Description Resolves the signed token printed as a QR code on the slip
// @Tags Acknowledgements
// @Produce json
// @Param token path string true "Signed token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /public/acknowledgements/{token} [get]
func (h *AcknowledgementHandler) Verify(c *gin.Context) {
	view, err := h.service.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
