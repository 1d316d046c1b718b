package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
)

type fakeMasterDataSrv struct {
	lookups    []models.LookupOption
	lookupKind string
	listKind   string
	statusID   string
	statusReq  dto.MasterDataStatusRequest
	imported   []byte
}

func (f *fakeMasterDataSrv) List(_ context.Context, kind string, query dto.MasterDataQuery) ([]models.MasterDataRecord, *models.Pagination, error) {
	f.listKind = kind
	return []models.MasterDataRecord{{ID: "rec-1", Label: "Science"}}, models.NewPagination(query.Page, query.Size, 1), nil
}

func (f *fakeMasterDataSrv) Lookups(_ context.Context, kind string) ([]models.LookupOption, error) {
	f.lookupKind = kind
	return f.lookups, nil
}

func (f *fakeMasterDataSrv) Create(_ context.Context, _ *models.Session, kind string, req dto.MasterDataRequest) (*models.MasterDataRecord, error) {
	return &models.MasterDataRecord{ID: "rec-2", Label: req.ResolvedLabel(), Status: models.RecordStatusActive}, nil
}

func (f *fakeMasterDataSrv) Update(_ context.Context, _ *models.Session, kind, id string, req dto.MasterDataRequest) (*models.MasterDataRecord, error) {
	return &models.MasterDataRecord{ID: id, Label: req.ResolvedLabel()}, nil
}

func (f *fakeMasterDataSrv) SetStatus(_ context.Context, _ *models.Session, kind, id string, req dto.MasterDataStatusRequest) (*models.MasterDataRecord, error) {
	f.statusID = id
	f.statusReq = req
	return &models.MasterDataRecord{ID: id, Status: models.RecordStatusDisabled}, nil
}

func (f *fakeMasterDataSrv) Import(_ context.Context, _ *models.Session, kind string, r io.Reader) (*dto.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.imported = data
	return &dto.ImportResult{Kind: models.MasterDataKind(kind), Imported: 3}, nil
}

func (f *fakeMasterDataSrv) Export(_ context.Context, kind string) ([]byte, string, error) {
	return []byte("xlsx"), kind + ".xlsx", nil
}

func (f *fakeMasterDataSrv) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func TestMasterDataHandlerToggleWithEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeMasterDataSrv{}
	handler := NewMasterDataHandler(srv, 0)

	rec := httptest.NewRecorder()
	c := adminContext(rec)
	c.Params = gin.Params{{Key: "kind", Value: "religions"}}
	c.Request = httptest.NewRequest(http.MethodPatch, "/religions?id=rec-9", nil)

	handler.SetStatus(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rec-9", srv.statusID)
	assert.Nil(t, srv.statusReq.Status)
	assert.Nil(t, srv.statusReq.Disabled)
}

func TestMasterDataHandlerRequiresID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMasterDataHandler(&fakeMasterDataSrv{}, 0)

	rec := httptest.NewRecorder()
	c := adminContext(rec)
	c.Params = gin.Params{{Key: "kind", Value: "religions"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/religions", bytes.NewBufferString(`{"name":"Jain"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Update(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMasterDataHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeMasterDataSrv{}
	handler := NewMasterDataHandler(srv, 0)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "religions.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("workbook-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	c := adminContext(rec)
	c.Params = gin.Params{{Key: "kind", Value: "religions"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/religions/upload", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "workbook-bytes", string(srv.imported))
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(3), envelope.Data["imported"])
}

func TestMasterDataHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMasterDataHandler(&fakeMasterDataSrv{}, 0)

	rec := httptest.NewRecorder()
	c := adminContext(rec)
	c.Params = gin.Params{{Key: "kind", Value: "courses"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/courses/download", nil)

	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "courses.xlsx")
	assert.Equal(t, "xlsx", rec.Body.String())
}
