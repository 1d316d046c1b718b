package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/internal/repository"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
)

type applicationStore interface {
	CreateWithAccount(ctx context.Context, user *models.User, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	Transition(ctx context.Context, params repository.TransitionParams) error
}

type accountStore interface {
	MobileTaken(ctx context.Context, mobile, exceptUserID string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

type admissionFinder interface {
	GetByYear(ctx context.Context, year int) (*models.Admission, error)
}

type draftStore interface {
	GetSubjectMarks(ctx context.Context, applicationID string) (*models.SubjectMarksDraft, error)
	SaveSubjectMarks(ctx context.Context, draft *models.SubjectMarksDraft) error
	GetInstitution(ctx context.Context, applicationID string) (*models.InstitutionDraft, error)
	SaveInstitution(ctx context.Context, draft *models.InstitutionDraft) error
	Discard(ctx context.Context, kind models.DraftKind, applicationID string) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type submissionNotifier interface {
	ApplicationSubmitted(ctx context.Context, app *models.Application) error
}

func statsCacheKey(year int) string {
	return fmt.Sprintf("admission:stats:%d", year)
}

// ApplicationService drives the applicant wizard.
type ApplicationService struct {
	apps       applicationStore
	accounts   accountStore
	admissions admissionFinder
	drafts     draftStore
	cache      cacheInvalidator
	notifier   submissionNotifier
	form       *FormValidator
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// ApplicationServiceDeps groups the collaborators of ApplicationService.
type ApplicationServiceDeps struct {
	Applications applicationStore
	Accounts     accountStore
	Admissions   admissionFinder
	Drafts       draftStore
	Cache        cacheInvalidator
	Notifier     submissionNotifier
	References   referenceChecker
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewApplicationService constructs the service.
func NewApplicationService(deps ApplicationServiceDeps) *ApplicationService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ApplicationService{
		apps:       deps.Applications,
		accounts:   deps.Accounts,
		admissions: deps.Admissions,
		drafts:     deps.Drafts,
		cache:      deps.Cache,
		notifier:   deps.Notifier,
		form:       NewFormValidator(deps.Validator, deps.References),
		validator:  deps.Validator,
		logger:     deps.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a draft application and the student account that owns it.
func (s *ApplicationService) Create(ctx context.Context, year int, req dto.CreateApplicationRequest, meta *models.Session) (*models.Application, error) {
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	admission, err := s.admissions.GetByYear(ctx, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	if !admission.AcceptingApplications(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission is not accepting applications")
	}

	taken, err := s.accounts.MobileTaken(ctx, req.MobileNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mobile number")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "mobile number is already registered")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	app := &models.Application{
		Year:                 year,
		FirstName:            strings.TrimSpace(req.FirstName),
		MiddleName:           strings.TrimSpace(req.MiddleName),
		LastName:             strings.TrimSpace(req.LastName),
		MobileNumber:         req.MobileNumber,
		WhatsappSameAsMobile: true,
		Email:                req.Email,
		DegreeLevel:          req.DegreeLevel,
		SubjectMarks:         models.SubjectMarks{},
		CourseIDs:            []string{},
	}
	app.DeriveContacts()

	user := &models.User{
		MobileNumber: &app.MobileNumber,
		PasswordHash: hash,
		FullName:     app.FullName(),
		Role:         models.RoleStudent,
		Active:       true,
	}
	if req.Email != "" {
		email := req.Email
		user.Email = &email
	}

	if err := s.apps.CreateWithAccount(ctx, user, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	s.invalidateStats(ctx, year)
	s.logger.Info("application created",
		zap.String("application_id", app.ID),
		zap.String("form_id", app.ApplicationFormID),
		zap.String("ip", sessionIP(meta)))
	return app, nil
}

// Get returns an application visible to the session.
func (s *ApplicationService) Get(ctx context.Context, session *models.Session, id string) (*models.Application, error) {
	return s.loadOwned(ctx, session, id)
}

func (s *ApplicationService) loadOwned(ctx context.Context, session *models.Session, id string) (*models.Application, error) {
	return loadOwnedApplication(ctx, s.apps, session, id)
}

type applicationGetter interface {
	GetByID(ctx context.Context, id string) (*models.Application, error)
}

// loadOwnedApplication hides applications of other students behind a not-found error.
func loadOwnedApplication(ctx context.Context, apps applicationGetter, session *models.Session, id string) (*models.Application, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	app, err := apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if !session.Owns(app.UserID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return app, nil
}

// UpdateStep merges the step payload, saves the record and advances the
// wizard when the step validates.
func (s *ApplicationService) UpdateStep(ctx context.Context, session *models.Session, id string, update dto.StepUpdate) (*dto.StepResult, error) {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	previousMobile := app.MobileNumber

	if err := ApplyUpdate(app, update); err != nil {
		return nil, err
	}

	if app.MobileNumber != previousMobile {
		taken, err := s.accounts.MobileTaken(ctx, app.MobileNumber, app.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mobile number")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "mobile number is already registered")
		}
	}

	fieldErrs, err := s.form.ValidateStep(ctx, app, update.Step, &update)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate step")
	}
	result := &dto.StepResult{Step: update.Step, NextStep: update.Step, Errors: fieldErrs}
	if len(fieldErrs) == 0 {
		if next, ok := update.Step.Next(); ok {
			result.NextStep = next
			if app.CurrentStep.Before(next) {
				app.CurrentStep = next
			}
		} else {
			result.Complete = true
		}
	}

	if err := s.apps.Update(ctx, app); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save application")
	}

	if g := update.General; g != nil && g.Password != nil && len(fieldErrs) == 0 {
		hash, err := HashPassword(*g.Password)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		if err := s.accounts.UpdatePassword(ctx, app.UserID, hash, s.now()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
		}
	}

	result.Application = app
	return result, nil
}

// Submit performs the final submission once every step is complete, the
// mobile number is verified and the fee is paid.
func (s *ApplicationService) Submit(ctx context.Context, session *models.Session, id string) (*models.Application, error) {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if app.FormStatus.Submitted() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already submitted")
	}
	step, fieldErrs, err := s.form.ValidateAll(ctx, app)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate application")
	}
	if len(fieldErrs) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrStepIncomplete, fmt.Sprintf("%s is incomplete", step)), fieldErrs)
	}
	if !app.MobileVerified {
		return nil, appErrors.Clone(appErrors.ErrStepIncomplete, "verify your mobile number before submitting")
	}
	if !app.FormStatus.CanTransition(models.FormStatusSubmitted) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "application fee must be paid before submitting")
	}

	now := s.now()
	err = s.apps.Transition(ctx, repository.TransitionParams{
		ID:   app.ID,
		From: app.FormStatus,
		To:   models.FormStatusSubmitted,
		At:   now,
		Audit: &models.AuditLog{
			UserID:     session.ActorID(),
			Action:     models.AuditActionApplicationSubmit,
			Resource:   "application",
			ResourceID: &app.ID,
			OldValues:  statusJSON(app.FormStatus),
			NewValues:  statusJSON(models.FormStatusSubmitted),
			IPAddress:  session.IP,
			UserAgent:  session.UserAgent,
		},
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application status changed, reload and try again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit application")
	}
	app.FormStatus = models.FormStatusSubmitted
	app.SubmittedAt = &now
	app.UpdatedAt = now

	s.invalidateStats(ctx, app.Year)
	if s.notifier != nil {
		if err := s.notifier.ApplicationSubmitted(ctx, app); err != nil {
			s.logger.Warn("failed to queue submission notice", zap.String("application_id", app.ID), zap.Error(err))
		}
	}
	return app, nil
}

// OpenSubjectMarks returns the open marks draft, seeding one from the record.
func (s *ApplicationService) OpenSubjectMarks(ctx context.Context, session *models.Session, id string) (*models.SubjectMarksDraft, error) {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	return s.subjectMarksDraft(ctx, app)
}

func (s *ApplicationService) subjectMarksDraft(ctx context.Context, app *models.Application) (*models.SubjectMarksDraft, error) {
	draft, err := s.drafts.GetSubjectMarks(ctx, app.ID)
	if err == nil {
		return draft, nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	draft = models.NewSubjectMarksDraft(app.ID, app.SubjectMarks)
	if err := s.drafts.SaveSubjectMarks(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open draft")
	}
	return draft, nil
}

func (s *ApplicationService) editSubjectMarks(ctx context.Context, session *models.Session, id string, edit func(*models.SubjectMarksDraft) error) (*models.SubjectMarksDraft, error) {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	draft, err := s.subjectMarksDraft(ctx, app)
	if err != nil {
		return nil, err
	}
	if err := edit(draft); err != nil {
		return nil, err
	}
	if err := s.drafts.SaveSubjectMarks(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// AddSubjectRow appends a blank row to the marks draft.
func (s *ApplicationService) AddSubjectRow(ctx context.Context, session *models.Session, id string) (*models.SubjectMarksDraft, error) {
	return s.editSubjectMarks(ctx, session, id, func(d *models.SubjectMarksDraft) error {
		d.AddRow()
		return nil
	})
}

// UpdateSubjectRow edits one row of the marks draft.
func (s *ApplicationService) UpdateSubjectRow(ctx context.Context, session *models.Session, id string, rowID int, input dto.SubjectMarkInput) (*models.SubjectMarksDraft, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject row")
	}
	if input.ObtainedMarks > input.TotalMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "obtained marks cannot exceed total marks")
	}
	return s.editSubjectMarks(ctx, session, id, func(d *models.SubjectMarksDraft) error {
		ok := d.UpdateRow(models.SubjectMark{
			ID:            rowID,
			Subject:       strings.TrimSpace(input.Subject),
			TotalMarks:    input.TotalMarks,
			ObtainedMarks: input.ObtainedMarks,
			ResultStatus:  input.ResultStatus,
		})
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "row not found")
		}
		return nil
	})
}

// RemoveSubjectRow deletes a row. The last remaining row is kept.
func (s *ApplicationService) RemoveSubjectRow(ctx context.Context, session *models.Session, id string, rowID int) (*models.SubjectMarksDraft, error) {
	return s.editSubjectMarks(ctx, session, id, func(d *models.SubjectMarksDraft) error {
		if !d.RemoveRow(rowID) {
			return appErrors.Clone(appErrors.ErrNotFound, "row not found")
		}
		return nil
	})
}

// CommitSubjectMarks copies the draft rows onto the record and closes the draft.
func (s *ApplicationService) CommitSubjectMarks(ctx context.Context, session *models.Session, id string) (*models.Application, error) {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	draft, err := s.drafts.GetSubjectMarks(ctx, app.ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no open subject marks draft")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}

	candidate := *app
	candidate.SubjectMarks = append(models.SubjectMarks(nil), draft.Rows...)
	var fieldErrs fieldErrors
	validateAcademic(&candidate, &fieldErrs)
	var markErrs []dto.FieldError
	for _, fe := range fieldErrs {
		if strings.HasPrefix(fe.Field, "subjectMarks") {
			markErrs = append(markErrs, fe)
		}
	}
	if len(markErrs) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "subject marks are incomplete"), markErrs)
	}

	app.SubjectMarks = candidate.SubjectMarks
	if err := s.saveAndDiscard(ctx, app, models.DraftSubjectMarks); err != nil {
		return nil, err
	}
	return app, nil
}

// OpenInstitution returns the open institution draft.
func (s *ApplicationService) OpenInstitution(ctx context.Context, session *models.Session, id string) (*models.InstitutionDraft, error) {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	return s.institutionDraft(ctx, app)
}

func (s *ApplicationService) institutionDraft(ctx context.Context, app *models.Application) (*models.InstitutionDraft, error) {
	draft, err := s.drafts.GetInstitution(ctx, app.ID)
	if err == nil {
		return draft, nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	draft = &models.InstitutionDraft{ApplicationID: app.ID, Details: app.Institution, OpenedAt: s.now()}
	if err := s.drafts.SaveInstitution(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open draft")
	}
	return draft, nil
}

// UpdateInstitution replaces the institution draft contents.
func (s *ApplicationService) UpdateInstitution(ctx context.Context, session *models.Session, id string, input dto.InstitutionInput) (*models.InstitutionDraft, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution details")
	}
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	draft, err := s.institutionDraft(ctx, app)
	if err != nil {
		return nil, err
	}
	details := models.InstitutionDetails{
		BoardRollNo:          strings.TrimSpace(input.BoardRollNo),
		CollegeID:            input.CollegeID,
		InstituteOverride:    strings.TrimSpace(input.InstituteOverride),
		MediumID:             input.MediumID,
		YearOfPassing:        input.YearOfPassing,
		Stream:               strings.TrimSpace(input.Stream),
		PreviouslyRegistered: input.PreviouslyRegistered,
	}
	if input.PreviouslyRegistered {
		details.PreviousRegistrationNo = strings.TrimSpace(input.PreviousRegistrationNo)
	}
	draft.Details = details
	if err := s.drafts.SaveInstitution(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// CommitInstitution copies the draft onto the record and closes the draft.
func (s *ApplicationService) CommitInstitution(ctx context.Context, session *models.Session, id string) (*models.Application, error) {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	draft, err := s.drafts.GetInstitution(ctx, app.ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no open institution draft")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	if draft.Details.CollegeID == nil && draft.Details.InstituteOverride == "" {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "institution details are incomplete"),
			[]dto.FieldError{{Field: "collegeId", Message: "select a college or enter the institute name"}})
	}
	app.Institution = draft.Details
	if err := s.saveAndDiscard(ctx, app, models.DraftInstitution); err != nil {
		return nil, err
	}
	return app, nil
}

// CancelDraft discards an open draft without touching the record.
func (s *ApplicationService) CancelDraft(ctx context.Context, session *models.Session, id string, kind models.DraftKind) error {
	app, err := s.loadOwned(ctx, session, id)
	if err != nil {
		return err
	}
	if err := s.drafts.Discard(ctx, kind, app.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard draft")
	}
	return nil
}

func (s *ApplicationService) saveAndDiscard(ctx context.Context, app *models.Application, kind models.DraftKind) error {
	if err := s.apps.Update(ctx, app); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save application")
	}
	if err := s.drafts.Discard(ctx, kind, app.ID); err != nil {
		s.logger.Warn("failed to discard committed draft", zap.String("application_id", app.ID), zap.String("kind", string(kind)), zap.Error(err))
	}
	return nil
}

func (s *ApplicationService) invalidateStats(ctx context.Context, year int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, statsCacheKey(year)); err != nil {
		s.logger.Warn("failed to invalidate admission stats", zap.Int("year", year), zap.Error(err))
	}
}

func statusJSON(status models.FormStatus) []byte {
	return []byte(fmt.Sprintf(`{"formStatus":%q}`, status))
}

func sessionIP(session *models.Session) string {
	if session == nil {
		return ""
	}
	return session.IP
}
