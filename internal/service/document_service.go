package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/storage"
)

const defaultMaxDocumentSize = 5 << 20

var documentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*storage.StoredObject, error)
	PresignedURL(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error)
	GetByID(ctx context.Context, applicationID, id string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	ObjectKeysForApplications(ctx context.Context, applicationIDs []string) ([]string, error)
}

// DocumentUpload is a file received from the applicant.
type DocumentUpload struct {
	Kind     models.DocumentKind
	FileName string
	Data     []byte
}

// DocumentService stores applicant uploads in object storage.
type DocumentService struct {
	docs    documentStore
	apps    applicationGetter
	objects objectStore
	audit   auditWriter
	maxSize int64
	linkTTL time.Duration
	logger  *zap.Logger
}

// NewDocumentService constructs the service. A nil store disables uploads.
func NewDocumentService(docs documentStore, apps applicationGetter, objects objectStore, audit auditWriter, maxSize int64, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = defaultMaxDocumentSize
	}
	return &DocumentService{
		docs:    docs,
		apps:    apps,
		objects: objects,
		audit:   audit,
		maxSize: maxSize,
		linkTTL: 15 * time.Minute,
		logger:  logger,
	}
}

// MaxSize is the largest accepted upload in bytes.
func (s *DocumentService) MaxSize() int64 {
	return s.maxSize
}

// Upload validates and stores a document for an unsubmitted application.
func (s *DocumentService) Upload(ctx context.Context, session *models.Session, applicationID string, upload DocumentUpload) (*models.Document, error) {
	if s.objects == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "document storage is not configured")
	}
	app, err := loadOwnedApplication(ctx, s.apps, session, applicationID)
	if err != nil {
		return nil, err
	}
	if app.FormStatus.Submitted() {
		return nil, appErrors.Clone(appErrors.ErrFieldLocked, "documents cannot be changed after submission")
	}

	kind := models.DocumentKind(strings.ToUpper(strings.TrimSpace(string(upload.Kind))))
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be PHOTO, SIGNATURE, MARKSHEET or ID_PROOF")
	}
	if len(upload.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if int64(len(upload.Data)) > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.maxSize))
	}
	contentType := http.DetectContentType(upload.Data)
	ext, ok := documentTypes[contentType]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only jpeg, png and pdf files are accepted")
	}

	key := storage.ObjectKey(fmt.Sprintf("applications/%s/%s", app.ID, strings.ToLower(string(kind))), ext)
	stored, err := s.objects.Put(ctx, key, upload.Data, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	doc := &models.Document{
		ApplicationID: app.ID,
		Kind:          kind,
		ObjectKey:     stored.Key,
		FileName:      cleanFileName(upload.FileName, ext),
		ContentType:   contentType,
		SizeBytes:     stored.Size,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.removeObject(ctx, stored.Key)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document")
	}
	s.record(ctx, session, models.AuditActionDocumentUpload, doc)
	s.presign(ctx, doc)
	return doc, nil
}

// List returns the application's documents with temporary download links.
func (s *DocumentService) List(ctx context.Context, session *models.Session, applicationID string) ([]models.Document, error) {
	app, err := loadOwnedApplication(ctx, s.apps, session, applicationID)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	for i := range docs {
		s.presign(ctx, &docs[i])
	}
	return docs, nil
}

// Delete removes a document before submission.
func (s *DocumentService) Delete(ctx context.Context, session *models.Session, applicationID, documentID string) error {
	app, err := loadOwnedApplication(ctx, s.apps, session, applicationID)
	if err != nil {
		return err
	}
	if app.FormStatus.Submitted() {
		return appErrors.Clone(appErrors.ErrFieldLocked, "documents cannot be changed after submission")
	}
	doc, err := s.docs.GetByID(ctx, app.ID, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	s.removeObject(ctx, doc.ObjectKey)
	s.record(ctx, session, models.AuditActionDocumentDelete, doc)
	return nil
}

// ObjectKeys lists the stored objects of the given applications.
func (s *DocumentService) ObjectKeys(ctx context.Context, applicationIDs []string) ([]string, error) {
	if len(applicationIDs) == 0 {
		return nil, nil
	}
	return s.docs.ObjectKeysForApplications(ctx, applicationIDs)
}

// RemoveObjects deletes objects, logging failures.
func (s *DocumentService) RemoveObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		s.removeObject(ctx, key)
	}
}

func (s *DocumentService) removeObject(ctx context.Context, key string) {
	if s.objects == nil {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove object", zap.String("key", key), zap.Error(err))
	}
}

func (s *DocumentService) presign(ctx context.Context, doc *models.Document) {
	if s.objects == nil {
		return
	}
	link, err := s.objects.PresignedURL(ctx, doc.ObjectKey, doc.FileName, s.linkTTL)
	if err != nil {
		s.logger.Warn("failed to presign document", zap.String("document_id", doc.ID), zap.Error(err))
		return
	}
	doc.URL = link
}

func (s *DocumentService) record(ctx context.Context, session *models.Session, action string, doc *models.Document) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"applicationId": doc.ApplicationID, "kind": doc.Kind, "fileName": doc.FileName})
	entry := &models.AuditLog{
		UserID:     session.ActorID(),
		Action:     action,
		Resource:   "document",
		ResourceID: &doc.ID,
		NewValues:  payload,
		IPAddress:  sessionIP(session),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func cleanFileName(name, ext string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "document" + ext
	}
	return name
}
