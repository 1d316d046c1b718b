package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

func TestDocumentRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("INSERT INTO application_documents").WillReturnResult(sqlmock.NewResult(1, 1))
	doc := &models.Document{ApplicationID: "app-1", Kind: models.DocumentPhoto, ObjectKey: "photo/abc.jpg", FileName: "me.jpg", ContentType: "image/jpeg", SizeBytes: 2048}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.NotEmpty(t, doc.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM application_documents WHERE application_id = $1 ORDER BY created_at DESC")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "kind", "object_key", "file_name", "content_type", "size_bytes", "created_at"}).
			AddRow(doc.ID, "app-1", "PHOTO", "photo/abc.jpg", "me.jpg", "image/jpeg", 2048, time.Now()))

	docs, err := repo.ListByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "photo/abc.jpg", docs[0].ObjectKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM application_documents WHERE id = $1")).
		WithArgs("doc-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "doc-x"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
