package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

// MissingApplicationsError lists selected ids that do not exist in the year.
type MissingApplicationsError struct {
	IDs []string
}

func (e *MissingApplicationsError) Error() string {
	return fmt.Sprintf("applications not found: %s", strings.Join(e.IDs, ", "))
}

// TransitionError reports the first selected application whose status forbids the action.
type TransitionError struct {
	ID   string
	From models.FormStatus
	To   models.FormStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("application %s cannot move from %s to %s", e.ID, e.From, e.To)
}

const summaryColumns = `id, application_form_id, first_name, middle_name, last_name, mobile_number, email, gender,
	category_id, board_university, is_gujarati, form_status, created_at, submitted_at`

// AdmissionRepository serves the admin view of a year's applications.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// GetByYear returns the admission intake for year.
func (r *AdmissionRepository) GetByYear(ctx context.Context, year int) (*models.Admission, error) {
	const query = `SELECT id, year, title, application_fee, opens_at, closes_at, active, created_at, updated_at FROM admissions WHERE year = $1`
	var admission models.Admission
	if err := r.db.GetContext(ctx, &admission, query, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get admission: %w", err)
	}
	return &admission, nil
}

func buildApplicationFilter(filter models.ApplicationFilter) (string, []interface{}) {
	conditions := []string{"year = $1"}
	args := []interface{}{filter.Year}

	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(first_name || ' ' || last_name) LIKE $%d OR mobile_number LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(application_form_id) LIKE $%d)",
			n, n, n, n))
	}
	if filter.CategoryID != "" {
		add("category_id = $%d", filter.CategoryID)
	}
	if filter.ReligionID != "" {
		add("religion_id = $%d", filter.ReligionID)
	}
	if filter.AnnualIncomeID != "" {
		add("annual_income_id = $%d", filter.AnnualIncomeID)
	}
	if filter.Gender != "" {
		add("gender = $%d", filter.Gender)
	}
	if filter.IsGujarati != nil {
		add("is_gujarati = $%d", *filter.IsGujarati)
	}
	if filter.FormStatus != "" {
		add("form_status = $%d", filter.FormStatus)
	}
	if filter.CourseID != "" {
		add("$%d = ANY(course_ids)", filter.CourseID)
	}
	if filter.BoardUniversity != "" {
		add("LOWER(board_university) = LOWER($%d)", filter.BoardUniversity)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of applications and the total match count.
func (r *AdmissionRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationSummary, int, error) {
	where, args := buildApplicationFilter(filter)
	page, size := models.NormalizePage(filter.Page, filter.Size)

	listQuery := fmt.Sprintf("SELECT %s FROM applications%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		summaryColumns, where, size, (page-1)*size)
	var items []models.ApplicationSummary
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return items, total, nil
}

// ListAll returns every matching application for export.
func (r *AdmissionRepository) ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationSummary, error) {
	where, args := buildApplicationFilter(filter)
	query := fmt.Sprintf("SELECT %s FROM applications%s ORDER BY application_form_id", summaryColumns, where)
	var items []models.ApplicationSummary
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("export applications: %w", err)
	}
	return items, nil
}

// Stats aggregates status counters for year.
func (r *AdmissionRepository) Stats(ctx context.Context, year int) (models.AdmissionStats, error) {
	const query = `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE form_status IN ('SUBMITTED', 'APPROVED', 'REJECTED')) AS submitted,
		COUNT(*) FILTER (WHERE form_status = 'APPROVED') AS approved,
		COUNT(*) FILTER (WHERE form_status = 'REJECTED') AS rejected,
		COUNT(*) FILTER (WHERE form_status IN ('PAYMENT_SUCCESS', 'SUBMITTED', 'APPROVED', 'REJECTED')) AS payments_done,
		COUNT(*) FILTER (WHERE form_status IN ('PAYMENT_DUE', 'PAYMENT_FAILED')) AS payment_due,
		COUNT(*) FILTER (WHERE form_status = 'DRAFT') AS drafts
	FROM applications WHERE year = $1`
	var stats models.AdmissionStats
	if err := r.db.GetContext(ctx, &stats, query, year); err != nil {
		return models.AdmissionStats{}, fmt.Errorf("admission stats: %w", err)
	}
	return stats, nil
}

// BulkParams describes one bulk action.
type BulkParams struct {
	Year   int
	IDs    []string
	Action models.BulkAction
	Audit  *models.AuditLog
}

// BulkApply locks the selected rows, checks every one of them and then
// updates or deletes them all. Any failure rolls the whole action back.
func (r *AdmissionRepository) BulkApply(ctx context.Context, params BulkParams) (affected int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk action: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const lockQuery = `SELECT id, form_status FROM applications WHERE year = $1 AND id = ANY($2) FOR UPDATE`
	var states []models.ApplicationState
	if err = tx.SelectContext(ctx, &states, lockQuery, params.Year, pq.Array(params.IDs)); err != nil {
		return 0, fmt.Errorf("lock applications: %w", err)
	}

	found := make(map[string]models.FormStatus, len(states))
	for _, s := range states {
		found[s.ID] = s.FormStatus
	}
	var missing []string
	for _, id := range params.IDs {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return 0, &MissingApplicationsError{IDs: missing}
	}

	now := time.Now().UTC()
	var rows int64
	if target, ok := params.Action.Target(); ok {
		for _, id := range params.IDs {
			if from := found[id]; !from.CanTransition(target) {
				return 0, &TransitionError{ID: id, From: from, To: target}
			}
		}
		var res sql.Result
		res, err = tx.ExecContext(ctx, `UPDATE applications SET form_status = $1, updated_at = $2 WHERE id = ANY($3)`,
			target, now, pq.Array(params.IDs))
		if err != nil {
			return 0, fmt.Errorf("apply %s: %w", strings.ToLower(string(params.Action)), err)
		}
		if rows, err = res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("bulk rows affected: %w", err)
		}
	} else {
		if rows, err = deleteApplications(ctx, tx, params.IDs, now); err != nil {
			return 0, err
		}
	}

	if params.Audit != nil {
		if err = insertAuditLog(ctx, tx, params.Audit); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk action: %w", err)
	}
	return int(rows), nil
}

// deleteApplications removes the rows and deactivates student accounts left
// without an application. Their contacts are released so they can register again.
func deleteApplications(ctx context.Context, tx *sqlx.Tx, ids []string, now time.Time) (int64, error) {
	var owners []string
	if err := tx.SelectContext(ctx, &owners, `DELETE FROM applications WHERE id = ANY($1) RETURNING user_id`, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("apply delete: %w", err)
	}
	if len(owners) == 0 {
		return 0, nil
	}
	const query = `UPDATE users SET active = FALSE, mobile_number = NULL, email = NULL, updated_at = $3
		WHERE id = ANY($1) AND role = $2 AND NOT EXISTS (SELECT 1 FROM applications a WHERE a.user_id = users.id)`
	if _, err := tx.ExecContext(ctx, query, pq.Array(owners), models.RoleStudent, now); err != nil {
		return 0, fmt.Errorf("deactivate student accounts: %w", err)
	}
	return int64(len(owners)), nil
}
