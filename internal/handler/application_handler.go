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

type applicationService interface {
	Create(ctx context.Context, year int, req dto.CreateApplicationRequest, meta *models.Session) (*models.Application, error)
	Get(ctx context.Context, session *models.Session, id string) (*models.Application, error)
	UpdateStep(ctx context.Context, session *models.Session, id string, update dto.StepUpdate) (*dto.StepResult, error)
	Submit(ctx context.Context, session *models.Session, id string) (*models.Application, error)
	OpenSubjectMarks(ctx context.Context, session *models.Session, id string) (*models.SubjectMarksDraft, error)
	AddSubjectRow(ctx context.Context, session *models.Session, id string) (*models.SubjectMarksDraft, error)
	UpdateSubjectRow(ctx context.Context, session *models.Session, id string, rowID int, input dto.SubjectMarkInput) (*models.SubjectMarksDraft, error)
	RemoveSubjectRow(ctx context.Context, session *models.Session, id string, rowID int) (*models.SubjectMarksDraft, error)
	CommitSubjectMarks(ctx context.Context, session *models.Session, id string) (*models.Application, error)
	OpenInstitution(ctx context.Context, session *models.Session, id string) (*models.InstitutionDraft, error)
	UpdateInstitution(ctx context.Context, session *models.Session, id string, input dto.InstitutionInput) (*models.InstitutionDraft, error)
	CommitInstitution(ctx context.Context, session *models.Session, id string) (*models.Application, error)
	CancelDraft(ctx context.Context, session *models.Session, id string, kind models.DraftKind) error
}

// ApplicationHandler serves the applicant form wizard.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Create godoc
// @Summary Start an application
// @Description Opens a draft application and the student account behind it
// @Tags Applications
// @Accept json
// @Produce json
// @Param year path int true "Admission year"
// @Param payload body dto.CreateApplicationRequest true "Applicant"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{year}/applications [post]
func (h *ApplicationHandler) Create(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	meta := &models.Session{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	app, err := h.service.Create(c.Request.Context(), year, req, meta)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Get godoc
// @Summary Get application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// UpdateStep godoc
// @Summary Save a form step
// @Description Merges the step's fields, validates them and advances the wizard when valid
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param step path string true "Step" Enums(general-info, academic-info, course-application, additional-info, payment)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/steps/{step} [patch]
func (h *ApplicationHandler) UpdateStep(c *gin.Context) {
	step, ok := models.ParseFormStep(c.Param("step"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown form step"))
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid step payload"))
		return
	}
	update, err := dto.DecodeStepUpdate(step, raw)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid step payload"))
		return
	}
	result, err := h.service.UpdateStep(c.Request.Context(), sessionFromContext(c), c.Param("id"), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/submit [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	app, err := h.service.Submit(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// OpenSubjectMarks godoc
// @Summary Open the subject marks draft
// @Tags Drafts
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/subject-marks [get]
func (h *ApplicationHandler) OpenSubjectMarks(c *gin.Context) {
	draft, err := h.service.OpenSubjectMarks(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// AddSubjectRow godoc
// @Summary Append a blank subject row
// @Tags Drafts
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/subject-marks/rows [post]
func (h *ApplicationHandler) AddSubjectRow(c *gin.Context) {
	draft, err := h.service.AddSubjectRow(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// UpdateSubjectRow godoc
// @Summary Edit a subject row
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param rowId path int true "Row ID"
// @Param payload body dto.SubjectMarkInput true "Row"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/subject-marks/rows/{rowId} [put]
func (h *ApplicationHandler) UpdateSubjectRow(c *gin.Context) {
	rowID, err := intParam(c, "rowId")
	if err != nil {
		response.Error(c, err)
		return
	}
	var input dto.SubjectMarkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject row"))
		return
	}
	draft, err := h.service.UpdateSubjectRow(c.Request.Context(), sessionFromContext(c), c.Param("id"), rowID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// RemoveSubjectRow godoc
// @Summary Remove a subject row
// @Description Removing the only remaining row leaves the draft unchanged
// @Tags Drafts
// @Produce json
// @Param id path string true "Application ID"
// @Param rowId path int true "Row ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/subject-marks/rows/{rowId} [delete]
func (h *ApplicationHandler) RemoveSubjectRow(c *gin.Context) {
	rowID, err := intParam(c, "rowId")
	if err != nil {
		response.Error(c, err)
		return
	}
	draft, err := h.service.RemoveSubjectRow(c.Request.Context(), sessionFromContext(c), c.Param("id"), rowID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// CommitSubjectMarks godoc
// @Summary Commit the subject marks draft
// @Tags Drafts
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/subject-marks/commit [post]
func (h *ApplicationHandler) CommitSubjectMarks(c *gin.Context) {
	app, err := h.service.CommitSubjectMarks(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// CancelSubjectMarks godoc
// @Summary Discard the subject marks draft
// @Tags Drafts
// @Param id path string true "Application ID"
// @Success 204
// @Router /applications/{id}/drafts/subject-marks [delete]
func (h *ApplicationHandler) CancelSubjectMarks(c *gin.Context) {
	h.cancelDraft(c, models.DraftSubjectMarks)
}

// OpenInstitution godoc
// @Summary Open the institution draft
// @Tags Drafts
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/institution [get]
func (h *ApplicationHandler) OpenInstitution(c *gin.Context) {
	draft, err := h.service.OpenInstitution(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// UpdateInstitution godoc
// @Summary Replace the institution draft
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.InstitutionInput true "Institution"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/institution [put]
func (h *ApplicationHandler) UpdateInstitution(c *gin.Context) {
	var input dto.InstitutionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid institution payload"))
		return
	}
	draft, err := h.service.UpdateInstitution(c.Request.Context(), sessionFromContext(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// CommitInstitution godoc
// @Summary Commit the institution draft
// @Tags Drafts
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/drafts/institution/commit [post]
func (h *ApplicationHandler) CommitInstitution(c *gin.Context) {
	app, err := h.service.CommitInstitution(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// CancelInstitution godoc
// @Summary Discard the institution draft
// @Tags Drafts
// @Param id path string true "Application ID"
// @Success 204
// @Router /applications/{id}/drafts/institution [delete]
func (h *ApplicationHandler) CancelInstitution(c *gin.Context) {
	h.cancelDraft(c, models.DraftInstitution)
}

func (h *ApplicationHandler) cancelDraft(c *gin.Context, kind models.DraftKind) {
	if err := h.service.CancelDraft(c.Request.Context(), sessionFromContext(c), c.Param("id"), kind); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
