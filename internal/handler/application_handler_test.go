package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/middleware"
	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/internal/service"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
)

type fakeApplicationSrv struct {
	applicationService
	update     dto.StepUpdate
	createMeta *models.Session
	cancelled  models.DraftKind
}

func (f *fakeApplicationSrv) Create(_ context.Context, year int, req dto.CreateApplicationRequest, meta *models.Session) (*models.Application, error) {
	f.createMeta = meta
	return &models.Application{ID: "app-1", Year: year, ApplicationFormID: models.FormIDFor(year, 1), FirstName: req.FirstName}, nil
}

func (f *fakeApplicationSrv) UpdateStep(_ context.Context, session *models.Session, id string, update dto.StepUpdate) (*dto.StepResult, error) {
	f.update = update
	return &dto.StepResult{Step: update.Step, NextStep: models.StepAcademicInfo, Application: &models.Application{ID: id}}, nil
}

func (f *fakeApplicationSrv) CancelDraft(_ context.Context, _ *models.Session, _ string, kind models.DraftKind) error {
	f.cancelled = kind
	return nil
}

func studentContext(rec *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})
	return c
}

func TestApplicationHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeApplicationSrv{}
	handler := NewApplicationHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "year", Value: "2025"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/admissions/2025/applications", bytes.NewBufferString(`{"firstName":"Asha","lastName":"Patel","mobileNumber":"9876543210"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("User-Agent", "form-test")

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, srv.createMeta)
	assert.Equal(t, "form-test", srv.createMeta.UserAgent)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "2025-000001", envelope.Data["applicationFormId"])
}

func TestApplicationHandlerUpdateStepDecodesVariant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeApplicationSrv{}
	handler := NewApplicationHandler(srv)

	rec := httptest.NewRecorder()
	c := studentContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "step", Value: "general-info"}}
	c.Request = httptest.NewRequest(http.MethodPatch, "/applications/app-1/steps/general-info", bytes.NewBufferString(`{"mobileNumber":"9876543210","whatsappSameAsMobile":true}`))

	handler.UpdateStep(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StepGeneralInfo, srv.update.Step)
	require.NotNil(t, srv.update.General)
	require.NotNil(t, srv.update.General.MobileNumber)
	assert.Equal(t, "9876543210", *srv.update.General.MobileNumber)
	assert.Nil(t, srv.update.Academic)
}

func TestApplicationHandlerUpdateStepRejectsUnknownStep(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeApplicationSrv{}
	handler := NewApplicationHandler(srv)

	rec := httptest.NewRecorder()
	c := studentContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "step", Value: "hobbies"}}
	c.Request = httptest.NewRequest(http.MethodPatch, "/applications/app-1/steps/hobbies", bytes.NewBufferString(`{}`))

	handler.UpdateStep(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.update.Step)
}

func TestApplicationHandlerCancelDraft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeApplicationSrv{}
	handler := NewApplicationHandler(srv)

	rec := httptest.NewRecorder()
	c := studentContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Request = httptest.NewRequest(http.MethodDelete, "/applications/app-1/drafts/institution", nil)

	handler.CancelInstitution(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, models.DraftInstitution, srv.cancelled)
}

func TestOTPHandlerRejectsUnknownChannel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewOTPHandler(nil)

	rec := httptest.NewRecorder()
	c := studentContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "channel", Value: "fax"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/applications/app-1/otp/fax/send", nil)

	handler.Send(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeDocumentSrv struct {
	upload service.DocumentUpload
}

func (f *fakeDocumentSrv) MaxSize() int64 { return 1024 }

func (f *fakeDocumentSrv) Upload(_ context.Context, _ *models.Session, applicationID string, upload service.DocumentUpload) (*models.Document, error) {
	f.upload = upload
	return &models.Document{ID: "doc-1", ApplicationID: applicationID, Kind: upload.Kind}, nil
}

func (f *fakeDocumentSrv) List(context.Context, *models.Session, string) ([]models.Document, error) {
	return nil, appErrors.ErrNotFound
}

func (f *fakeDocumentSrv) Delete(context.Context, *models.Session, string, string) error {
	return nil
}

func TestDocumentHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDocumentSrv{}
	handler := NewDocumentHandler(srv)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("kind", "photo"))
	part, err := writer.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	c := studentContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/applications/app-1/documents", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.DocumentPhoto, srv.upload.Kind)
	assert.Equal(t, "me.png", srv.upload.FileName)
	assert.Len(t, srv.upload.Data, 8)
}

func TestDocumentHandlerUploadTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDocumentSrv{}
	handler := NewDocumentHandler(srv)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("kind", "PHOTO"))
	part, err := writer.CreateFormFile("file", "big.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("a"), 2048))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	c := studentContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/applications/app-1/documents", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.upload.FileName)
}
