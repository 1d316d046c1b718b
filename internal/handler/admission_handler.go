package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/middleware"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/response"
)

type admissionService interface {
	Overview(ctx context.Context, year int, query dto.AdmissionQuery) (*dto.AdmissionOverview, error)
	BulkAction(ctx context.Context, session *models.Session, year int, req dto.BulkActionRequest) (*models.BulkResult, error)
	ExportCSV(ctx context.Context, year int, query dto.AdmissionQuery) ([]byte, string, error)
}

// AdmissionHandler serves the admin admissions page.
type AdmissionHandler struct {
	service admissionService
}

// NewAdmissionHandler constructs the handler.
func NewAdmissionHandler(service admissionService) *AdmissionHandler {
	return &AdmissionHandler{service: service}
}

func bindAdmissionQuery(c *gin.Context) (int, dto.AdmissionQuery, bool) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, err)
		return 0, dto.AdmissionQuery{}, false
	}
	var query dto.AdmissionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return 0, dto.AdmissionQuery{}, false
	}
	return year, query, true
}

// Overview godoc
// @Summary Admission overview
// @Description Admission details, status counters and the filtered applicant list
// @Tags Admissions
// @Produce json
// @Param year path int true "Admission year"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Param search query string false "Name, form id, mobile or email"
// @Param category query string false "Category ID"
// @Param religion query string false "Religion ID"
// @Param annualIncome query string false "Annual income ID"
// @Param gender query string false "Gender"
// @Param isGujarati query string false "true or false"
// @Param formStatus query string false "Form status"
// @Param course query string false "Course ID"
// @Param boardUniversity query string false "Board or university"
// @Success 200 {object} response.Envelope
// @Router /admissions/{year} [get]
func (h *AdmissionHandler) Overview(c *gin.Context) {
	year, query, ok := bindAdmissionQuery(c)
	if !ok {
		return
	}
	overview, err := h.service.Overview(c.Request.Context(), year, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := models.NormalizePage(query.Page, query.Size)
	response.JSON(c, http.StatusOK, overview, models.NewPagination(page, size, overview.TotalItems), middleware.ExtractMeta(c))
}

// BulkAction godoc
// @Summary Apply an action to selected applications
// @Description APPROVE, REJECT or DELETE. The whole selection fails when any id is unknown or not eligible.
// @Tags Admissions
// @Accept json
// @Produce json
// @Param year path int true "Admission year"
// @Param payload body dto.BulkActionRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{year}/bulk-action [post]
func (h *AdmissionHandler) BulkAction(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk action payload"))
		return
	}
	result, err := h.service.BulkAction(c.Request.Context(), sessionFromContext(c), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export applications as CSV
// @Tags Admissions
// @Produce text/csv
// @Param year path int true "Admission year"
// @Success 200 {file} file
// @Router /admissions/{year}/export [get]
func (h *AdmissionHandler) Export(c *gin.Context) {
	year, query, ok := bindAdmissionQuery(c)
	if !ok {
		return
	}
	payload, filename, err := h.service.ExportCSV(c.Request.Context(), year, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "text/csv; charset=utf-8", payload)
}
