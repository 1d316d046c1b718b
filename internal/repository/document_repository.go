package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

const documentColumns = `id, application_id, kind, object_key, file_name, content_type, size_bytes, created_at`

// DocumentRepository stores metadata of applicant uploads.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts document metadata.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO application_documents (id, application_id, kind, object_key, file_name, content_type, size_bytes, created_at)
	VALUES (:id, :application_id, :kind, :object_key, :file_name, :content_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// ListByApplication returns the uploads of an application, newest first.
func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM application_documents WHERE application_id = $1 ORDER BY created_at DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// GetByID fetches document metadata scoped to its application.
func (r *DocumentRepository) GetByID(ctx context.Context, applicationID, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM application_documents WHERE id = $1 AND application_id = $2`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Delete removes document metadata.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM application_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ObjectKeysForApplications lists stored objects of the given applications.
func (r *DocumentRepository) ObjectKeysForApplications(ctx context.Context, applicationIDs []string) ([]string, error) {
	query, args, err := sqlx.In(`SELECT object_key FROM application_documents WHERE application_id IN (?)`, applicationIDs)
	if err != nil {
		return nil, fmt.Errorf("build document key query: %w", err)
	}
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list document keys: %w", err)
	}
	return keys, nil
}
