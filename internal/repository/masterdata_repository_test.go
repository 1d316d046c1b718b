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

var recordRowColumns = []string{"id", "label", "sequence", "status", "created_at", "updated_at"}

func mustKind(t *testing.T, kind models.MasterDataKind) models.KindSpec {
	t.Helper()
	kindSpec, ok := models.LookupKind(string(kind))
	require.True(t, ok)
	return kindSpec
}

func TestMasterDataRepositoryListQuotesLabelColumn(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMasterDataRepository(db)
	kindSpec := mustKind(t, models.KindBloodGroups)

	now := time.Now()
	status := models.RecordStatusActive
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, "type" AS label, NULL::INTEGER AS sequence, status, created_at, updated_at FROM blood_groups WHERE status = $1 AND LOWER("type") LIKE $2 ORDER BY "type" LIMIT 20 OFFSET 0`)).
		WithArgs(models.RecordStatusActive, "%o+%").
		WillReturnRows(sqlmock.NewRows(recordRowColumns).AddRow("bg-1", "O+", nil, "ACTIVE", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM blood_groups WHERE status = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), kindSpec, models.MasterDataFilter{Status: &status, Search: "O+"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.KindBloodGroups, records[0].Kind)
	assert.Equal(t, "O+", records[0].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMasterDataRepositoryListActiveOrdersBySequence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMasterDataRepository(db)
	kindSpec := mustKind(t, models.KindCourses)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, "name" AS label FROM courses WHERE status = $1 ORDER BY sequence NULLS LAST, "name"`)).
		WithArgs(models.RecordStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).AddRow("c1", "B.Sc").AddRow("c2", "B.Com"))

	options, err := repo.ListActive(context.Background(), kindSpec)
	require.NoError(t, err)
	assert.Equal(t, []models.LookupOption{{ID: "c1", Name: "B.Sc"}, {ID: "c2", Name: "B.Com"}}, options)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMasterDataRepositorySetStatusNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMasterDataRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE religions SET status = $2")).
		WithArgs("missing", models.RecordStatusDisabled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), mustKind(t, models.KindReligions), "missing", models.RecordStatusDisabled)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMasterDataRepositoryBulkInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMasterDataRepository(db)
	kindSpec := mustKind(t, models.KindDegrees)

	seq := 1
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO degrees (id, "name", sequence, status, created_at, updated_at)`)).
		WithArgs(sqlmock.AnyArg(), "B.A.", 1, models.RecordStatusActive, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO degrees`)).
		WithArgs(sqlmock.AnyArg(), "M.A.", nil, models.RecordStatusActive, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	records := []models.MasterDataRecord{{Label: "B.A.", Sequence: &seq}, {Label: "M.A."}}
	require.NoError(t, repo.BulkInsert(context.Background(), kindSpec, records))
	assert.NotEmpty(t, records[0].ID)
	assert.Equal(t, models.KindDegrees, records[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMasterDataRepositoryBulkInsertRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMasterDataRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO colleges").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO colleges").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.BulkInsert(context.Background(), mustKind(t, models.KindColleges), []models.MasterDataRecord{{Label: "A"}, {Label: "B"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMasterDataRepositoryActiveIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMasterDataRepository(db)
	kindSpec := mustKind(t, models.KindCourses)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM courses WHERE status = $1 AND id = ANY($2)")).
		WithArgs(models.RecordStatusActive, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))

	active, err := repo.ActiveIDs(context.Background(), kindSpec, []string{"c1", "c-disabled"})
	require.NoError(t, err)
	assert.True(t, active["c1"])
	assert.False(t, active["c-disabled"])

	empty, err := repo.ActiveIDs(context.Background(), kindSpec, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}
