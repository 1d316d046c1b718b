package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

var summaryRowColumns = []string{"id", "application_form_id", "first_name", "middle_name", "last_name", "mobile_number", "email", "gender",
	"category_id", "board_university", "is_gujarati", "form_status", "created_at", "submitted_at"}

func TestAdmissionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	gujarati := true
	filter := models.ApplicationFilter{
		Year:       2025,
		Page:       2,
		Size:       10,
		Search:     "Asha",
		Gender:     models.GenderFemale,
		IsGujarati: &gujarati,
		CourseID:   "course-1",
	}

	rows := sqlmock.NewRows(summaryRowColumns).
		AddRow("app-1", "2025-000001", "Asha", "", "Patel", "9876543210", "asha@example.com", "FEMALE", nil, "GSEB", true, "SUBMITTED", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE year = $1 AND (LOWER(first_name || ' ' || last_name) LIKE $2")).
		WithArgs(2025, "%asha%", models.GenderFemale, true, "course-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications WHERE year = $1")).
		WithArgs(2025, "%asha%", models.GenderFemale, true, "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, models.FormStatusSubmitted, items[0].FormStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildApplicationFilterCourseUsesAny(t *testing.T) {
	where, args := buildApplicationFilter(models.ApplicationFilter{Year: 2025, CourseID: "c-9", FormStatus: models.FormStatusApproved})
	assert.Equal(t, " WHERE year = $1 AND form_status = $2 AND $3 = ANY(course_ids)", where)
	assert.Equal(t, []interface{}{2025, models.FormStatusApproved, "c-9"}, args)
}

func TestAdmissionRepositoryStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE form_status = 'DRAFT') AS drafts")).
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"total", "submitted", "approved", "rejected", "payments_done", "payment_due", "drafts"}).
			AddRow(10, 5, 2, 1, 6, 2, 2))

	stats, err := repo.Stats(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStats{Total: 10, Submitted: 5, Approved: 2, Rejected: 1, PaymentsDone: 6, PaymentDue: 2, Drafts: 2}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryBulkReject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, form_status FROM applications WHERE year = $1 AND id = ANY($2) FOR UPDATE")).
		WithArgs(2025, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_status"}).
			AddRow("12", "SUBMITTED").
			AddRow("47", "SUBMITTED"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET form_status = $1, updated_at = $2 WHERE id = ANY($3)")).
		WithArgs(models.FormStatusRejected, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	affected, err := repo.BulkApply(context.Background(), BulkParams{
		Year:   2025,
		IDs:    []string{"12", "47"},
		Action: models.BulkReject,
		Audit:  &models.AuditLog{Action: models.AuditActionBulkReject, Resource: "application"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryBulkDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_status"}).AddRow("3", "DRAFT"))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM applications WHERE id = ANY($1) RETURNING user_id")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-3"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE, mobile_number = NULL, email = NULL")).
		WithArgs(sqlmock.AnyArg(), models.RoleStudent, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.BulkApply(context.Background(), BulkParams{Year: 2025, IDs: []string{"3"}, Action: models.BulkDelete})
	require.NoError(t, err)
	assert.Equal(t, 1, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryBulkDeleteRollsBackWhenAccountUpdateFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_status"}).AddRow("3", "DRAFT"))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM applications WHERE id = ANY($1) RETURNING user_id")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-3"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE")).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := repo.BulkApply(context.Background(), BulkParams{Year: 2025, IDs: []string{"3"}, Action: models.BulkDelete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deactivate student accounts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryBulkMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_status"}).AddRow("12", "SUBMITTED"))
	mock.ExpectRollback()

	_, err := repo.BulkApply(context.Background(), BulkParams{Year: 2025, IDs: []string{"12", "99"}, Action: models.BulkApprove})
	var missing *MissingApplicationsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"99"}, missing.IDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryBulkInvalidTransitionRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_status"}).
			AddRow("12", "SUBMITTED").
			AddRow("13", "DRAFT"))
	mock.ExpectRollback()

	_, err := repo.BulkApply(context.Background(), BulkParams{Year: 2025, IDs: []string{"12", "13"}, Action: models.BulkApprove})
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "13", transition.ID)
	assert.Equal(t, models.FormStatusDraft, transition.From)
	assert.NoError(t, mock.ExpectationsWereMet())
}
