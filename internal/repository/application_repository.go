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

// ErrStaleStatus is returned when a conditional status update finds the row in another state.
var ErrStaleStatus = errors.New("application status changed concurrently")

// ErrMobileTaken is returned when another applicant already holds the mobile number.
var ErrMobileTaken = errors.New("mobile number already registered")

const applicationColumns = `id, application_form_id, year, user_id, first_name, middle_name, last_name, date_of_birth,
	nationality_id, other_nationality, category_id, religion_id, blood_group_id, annual_income_id, gender, is_gujarati,
	mobile_number, whatsapp_same_as_mobile, whatsapp_number, email, residence_of_kolkata, login_id, degree_level,
	previous_result, board_university, institution, subject_marks, course_ids, degree_id,
	sports_category_id, language_medium_id, guardian_name, guardian_mobile, address,
	payment_method, scholarships, financial_aid, mobile_verified, email_verified,
	form_status, current_step, payment_order_id, payment_attempts, created_at, updated_at, submitted_at`

// ApplicationRepository persists applicant records.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// CreateWithAccount inserts the student account and its draft application in
// one transaction. The form id sequence is serialised per year with an
// advisory lock.
func (r *ApplicationRepository) CreateWithAccount(ctx context.Context, user *models.User, app *models.Application) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create application: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, app.Year); err != nil {
		return fmt.Errorf("lock form sequence: %w", err)
	}

	var seq int
	const seqQuery = `SELECT COALESCE(MAX(CAST(SPLIT_PART(application_form_id, '-', 2) AS INTEGER)), 0) + 1 FROM applications WHERE year = $1`
	if err = tx.GetContext(ctx, &seq, seqQuery, app.Year); err != nil {
		return fmt.Errorf("next form sequence: %w", err)
	}

	if err = createUser(ctx, tx, user); err != nil {
		return err
	}

	now := time.Now().UTC()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.UserID = user.ID
	app.ApplicationFormID = models.FormIDFor(app.Year, seq)
	app.CreatedAt = now
	app.UpdatedAt = now
	if app.FormStatus == "" {
		app.FormStatus = models.FormStatusDraft
	}
	if app.CurrentStep == "" {
		app.CurrentStep = models.StepGeneralInfo
	}

	const insert = `INSERT INTO applications (id, application_form_id, year, user_id, first_name, middle_name, last_name,
		mobile_number, whatsapp_same_as_mobile, whatsapp_number, email, login_id, degree_level, institution, subject_marks,
		course_ids, form_status, current_step, payment_attempts, created_at, updated_at)
	VALUES (:id, :application_form_id, :year, :user_id, :first_name, :middle_name, :last_name,
		:mobile_number, :whatsapp_same_as_mobile, :whatsapp_number, :email, :login_id, :degree_level, :institution, :subject_marks,
		:course_ids, :form_status, :current_step, :payment_attempts, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create application: %w", err)
	}
	return nil
}

// GetByID fetches an application. Missing rows return sql.ErrNoRows.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &app, nil
}

// GetByFormID resolves an application by its human readable form id.
func (r *ApplicationRepository) GetByFormID(ctx context.Context, formID string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE application_form_id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, formID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get application by form id: %w", err)
	}
	return &app, nil
}

// Update writes every editable column. Concurrent edits are last-write-wins.
func (r *ApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET
		first_name = :first_name, middle_name = :middle_name, last_name = :last_name, date_of_birth = :date_of_birth,
		nationality_id = :nationality_id, other_nationality = :other_nationality, category_id = :category_id,
		religion_id = :religion_id, blood_group_id = :blood_group_id, annual_income_id = :annual_income_id,
		gender = :gender, is_gujarati = :is_gujarati, mobile_number = :mobile_number,
		whatsapp_same_as_mobile = :whatsapp_same_as_mobile, whatsapp_number = :whatsapp_number, email = :email,
		residence_of_kolkata = :residence_of_kolkata, login_id = :login_id, degree_level = :degree_level,
		previous_result = :previous_result, board_university = :board_university, institution = :institution,
		subject_marks = :subject_marks, course_ids = :course_ids, degree_id = :degree_id,
		sports_category_id = :sports_category_id, language_medium_id = :language_medium_id,
		guardian_name = :guardian_name, guardian_mobile = :guardian_mobile, address = :address,
		payment_method = :payment_method, scholarships = :scholarships, financial_aid = :financial_aid,
		current_step = :current_step, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, app)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransitionParams describes a guarded status change.
type TransitionParams struct {
	ID              string
	From            models.FormStatus
	To              models.FormStatus
	At              time.Time
	PaymentOrderID  *string
	PaymentAttempts *int
	Audit           *models.AuditLog
}

// Transition moves the application from From to To. It fails with
// ErrStaleStatus when the stored status is no longer From.
func (r *ApplicationRepository) Transition(ctx context.Context, params TransitionParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if params.At.IsZero() {
		params.At = time.Now().UTC()
	}
	var submittedAt *time.Time
	if params.To == models.FormStatusSubmitted {
		submittedAt = &params.At
	}

	const query = `UPDATE applications SET form_status = $3, updated_at = $4,
		submitted_at = COALESCE($5, submitted_at),
		payment_order_id = COALESCE($6, payment_order_id),
		payment_attempts = COALESCE($7, payment_attempts)
	WHERE id = $1 AND form_status = $2`
	res, err := tx.ExecContext(ctx, query, params.ID, params.From, params.To, params.At, submittedAt, params.PaymentOrderID, params.PaymentAttempts)
	if err != nil {
		return fmt.Errorf("transition application: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if rows == 0 {
		return ErrStaleStatus
	}

	if params.Audit != nil {
		if err = insertAuditLog(ctx, tx, params.Audit); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// MarkContactVerified flags the channel on the application and copies the
// verified value onto the owning account.
func (r *ApplicationRepository) MarkContactVerified(ctx context.Context, app *models.Application, channel models.OTPChannel) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verify contact: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	app.UpdatedAt = now
	switch channel {
	case models.OTPChannelMobile:
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, app.MobileNumber); err != nil {
			return fmt.Errorf("lock mobile number: %w", err)
		}
		var taken bool
		if err = tx.GetContext(ctx, &taken, mobileTakenQuery, app.MobileNumber, app.UserID); err != nil {
			return fmt.Errorf("check mobile number: %w", err)
		}
		if taken {
			err = ErrMobileTaken
			return err
		}
		const query = `UPDATE applications SET mobile_verified = TRUE, mobile_number = $2, login_id = $3, whatsapp_number = $4, updated_at = $5 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, query, app.ID, app.MobileNumber, app.LoginID, app.WhatsappNumber, now); err != nil {
			return fmt.Errorf("verify mobile: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `UPDATE users SET mobile_number = $2, updated_at = $3 WHERE id = $1`, app.UserID, app.MobileNumber, now); err != nil {
			return fmt.Errorf("sync account mobile: %w", err)
		}
	case models.OTPChannelEmail:
		const query = `UPDATE applications SET email_verified = TRUE, email = $2, updated_at = $3 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, query, app.ID, app.Email, now); err != nil {
			return fmt.Errorf("verify email: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `UPDATE users SET email = $2, updated_at = $3 WHERE id = $1`, app.UserID, app.Email, now); err != nil {
			return fmt.Errorf("sync account email: %w", err)
		}
	default:
		return fmt.Errorf("unknown channel %s", channel)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit verify contact: %w", err)
	}
	return nil
}
