package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/storage"
)

type memoryObjects struct {
	objects map[string][]byte
	deleted []string
}

func (m *memoryObjects) Put(ctx context.Context, key string, data []byte, contentType string) (*storage.StoredObject, error) {
	m.objects[key] = data
	return &storage.StoredObject{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memoryObjects) PresignedURL(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	return "https://objects.example/" + key, nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type memoryDocuments struct {
	docs []models.Document
}

func (m *memoryDocuments) Create(ctx context.Context, doc *models.Document) error {
	doc.ID = fmt.Sprintf("doc-%d", len(m.docs)+1)
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *memoryDocuments) ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range m.docs {
		if d.ApplicationID == applicationID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryDocuments) GetByID(ctx context.Context, applicationID, id string) (*models.Document, error) {
	for _, d := range m.docs {
		if d.ID == id && d.ApplicationID == applicationID {
			doc := d
			return &doc, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryDocuments) Delete(ctx context.Context, id string) error {
	for i, d := range m.docs {
		if d.ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryDocuments) ObjectKeysForApplications(ctx context.Context, ids []string) ([]string, error) {
	var keys []string
	for _, d := range m.docs {
		for _, id := range ids {
			if d.ApplicationID == id {
				keys = append(keys, d.ObjectKey)
			}
		}
	}
	return keys, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newDocumentFixture() (*DocumentService, *memoryApplications, *memoryDocuments, *memoryObjects) {
	apps := newMemoryApplications(completeApplication())
	docs := &memoryDocuments{}
	objects := &memoryObjects{objects: map[string][]byte{}}
	return NewDocumentService(docs, apps, objects, nil, 64, nil), apps, docs, objects
}

func TestDocumentServiceUploadAndDelete(t *testing.T) {
	svc, _, docs, objects := newDocumentFixture()
	ctx := context.Background()

	doc, err := svc.Upload(ctx, studentSession, "app-1", DocumentUpload{Kind: "photo", FileName: "../me.png", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentPhoto, doc.Kind)
	assert.Equal(t, "image/png", doc.ContentType)
	assert.Equal(t, "me.png", doc.FileName)
	assert.Contains(t, doc.ObjectKey, "applications/app-1/photo/")
	assert.Contains(t, doc.URL, doc.ObjectKey)
	assert.Len(t, objects.objects, 1)

	listed, err := svc.List(ctx, studentSession, "app-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	keys, err := svc.ObjectKeys(ctx, []string{"app-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ObjectKey}, keys)

	require.NoError(t, svc.Delete(ctx, studentSession, "app-1", doc.ID))
	assert.Empty(t, docs.docs)
	assert.Empty(t, objects.objects)

	err = svc.Delete(ctx, studentSession, "app-1", doc.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestDocumentServiceRejectsInvalidUploads(t *testing.T) {
	svc, apps, _, objects := newDocumentFixture()
	ctx := context.Background()

	_, err := svc.Upload(ctx, studentSession, "app-1", DocumentUpload{Kind: "SELFIE", Data: pngHeader})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Upload(ctx, studentSession, "app-1", DocumentUpload{Kind: models.DocumentMarksheet, Data: []byte("plain text notes")})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	large := append(append([]byte{}, pngHeader...), make([]byte, 100)...)
	_, err = svc.Upload(ctx, studentSession, "app-1", DocumentUpload{Kind: models.DocumentPhoto, Data: large})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	apps.apps["app-1"].FormStatus = models.FormStatusSubmitted
	_, err = svc.Upload(ctx, studentSession, "app-1", DocumentUpload{Kind: models.DocumentPhoto, Data: pngHeader})
	assert.True(t, errors.Is(err, appErrors.ErrFieldLocked))
	assert.Empty(t, objects.objects)
}
