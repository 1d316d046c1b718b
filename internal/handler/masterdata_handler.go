package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/middleware"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/response"
)

type masterDataService interface {
	List(ctx context.Context, kind string, query dto.MasterDataQuery) ([]models.MasterDataRecord, *models.Pagination, error)
	Lookups(ctx context.Context, kind string) ([]models.LookupOption, error)
	Create(ctx context.Context, session *models.Session, kind string, req dto.MasterDataRequest) (*models.MasterDataRecord, error)
	Update(ctx context.Context, session *models.Session, kind, id string, req dto.MasterDataRequest) (*models.MasterDataRecord, error)
	SetStatus(ctx context.Context, session *models.Session, kind, id string, req dto.MasterDataStatusRequest) (*models.MasterDataRecord, error)
	Import(ctx context.Context, session *models.Session, kind string, r io.Reader) (*dto.ImportResult, error)
	Export(ctx context.Context, kind string) ([]byte, string, error)
	ContentType() string
}

// MasterDataHandler serves lookup tables to admins and the public form.
type MasterDataHandler struct {
	service   masterDataService
	maxUpload int64
}

// NewMasterDataHandler constructs the handler. maxUpload bounds spreadsheet uploads in bytes.
func NewMasterDataHandler(service masterDataService, maxUpload int64) *MasterDataHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &MasterDataHandler{service: service, maxUpload: maxUpload}
}

func recordID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id query parameter is required"))
		return "", false
	}
	return id, true
}

// List godoc
// @Summary List master data
// @Tags Master Data
// @Produce json
// @Param kind path string true "Kind"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Param search query string false "Label search"
// @Param status query string false "ACTIVE, DISABLED or ARCHIVED"
// @Success 200 {object} response.Envelope
// @Router /{kind} [get]
func (h *MasterDataHandler) List(c *gin.Context) {
	var query dto.MasterDataQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), c.Param("kind"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Create godoc
// @Summary Create master data record
// @Tags Master Data
// @Accept json
// @Produce json
// @Param kind path string true "Kind"
// @Param payload body dto.MasterDataRequest true "Record"
// @Success 201 {object} response.Envelope
// @Router /{kind} [post]
func (h *MasterDataHandler) Create(c *gin.Context) {
	var req dto.MasterDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Create(c.Request.Context(), sessionFromContext(c), c.Param("kind"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update master data record
// @Tags Master Data
// @Accept json
// @Produce json
// @Param kind path string true "Kind"
// @Param id query string true "Record ID"
// @Param payload body dto.MasterDataRequest true "Record"
// @Success 200 {object} response.Envelope
// @Router /{kind} [put]
func (h *MasterDataHandler) Update(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var req dto.MasterDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Update(c.Request.Context(), sessionFromContext(c), c.Param("kind"), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// SetStatus godoc
// @Summary Toggle or set record status
// @Description An empty body flips between ACTIVE and DISABLED
// @Tags Master Data
// @Accept json
// @Produce json
// @Param kind path string true "Kind"
// @Param id query string true "Record ID"
// @Param payload body dto.MasterDataStatusRequest false "Status"
// @Success 200 {object} response.Envelope
// @Router /{kind} [patch]
func (h *MasterDataHandler) SetStatus(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var req dto.MasterDataStatusRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	record, err := h.service.SetStatus(c.Request.Context(), sessionFromContext(c), c.Param("kind"), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Upload godoc
// @Summary Import records from a spreadsheet
// @Tags Master Data
// @Accept multipart/form-data
// @Produce json
// @Param kind path string true "Kind"
// @Param file formData file true "xlsx workbook"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /{kind}/upload [post]
func (h *MasterDataHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}
	defer file.Close()

	result, err := h.service.Import(c.Request.Context(), sessionFromContext(c), c.Param("kind"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Export active records as a spreadsheet
// @Tags Master Data
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param kind path string true "Kind"
// @Success 200 {file} file
// @Router /{kind}/download [get]
func (h *MasterDataHandler) Download(c *gin.Context) {
	payload, filename, err := h.service.Export(c.Request.Context(), c.Param("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, h.service.ContentType(), payload)
}

// Lookups godoc
// @Summary Active options of a kind
// @Tags Master Data
// @Produce json
// @Param kind path string true "Kind"
// @Success 200 {object} response.Envelope
// @Router /lookups/{kind} [get]
func (h *MasterDataHandler) Lookups(c *gin.Context) {
	h.respondLookups(c, c.Param("kind"))
}

// Public serves one kind at a fixed public path such as /nationalities.
// Administrators get the paginated management listing instead.
func (h *MasterDataHandler) Public(kind models.MasterDataKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := middleware.Claims(c); claims != nil && claims.Role == models.RoleAdmin {
			h.List(c)
			return
		}
		h.respondLookups(c, string(kind))
	}
}

// withKindParam exposes a fixed kind route as the :kind path parameter.
func withKindParam(kind models.MasterDataKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Param("kind") == "" {
			c.Params = append(c.Params, gin.Param{Key: "kind", Value: string(kind)})
		}
		c.Next()
	}
}

func (h *MasterDataHandler) respondLookups(c *gin.Context, kind string) {
	options, err := h.service.Lookups(c.Request.Context(), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}
