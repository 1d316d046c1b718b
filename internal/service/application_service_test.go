package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
)

func (m *memoryApplications) CreateWithAccount(ctx context.Context, user *models.User, app *models.Application) error {
	user.ID = "user-new"
	app.ID = "app-new"
	app.UserID = user.ID
	app.ApplicationFormID = models.FormIDFor(app.Year, len(m.apps)+1)
	app.FormStatus = models.FormStatusDraft
	app.CurrentStep = models.StepGeneralInfo
	clone := *app
	m.apps[app.ID] = &clone
	return nil
}

func (m *memoryApplications) Update(ctx context.Context, app *models.Application) error {
	clone := *app
	m.apps[app.ID] = &clone
	return nil
}

type stubAccounts struct {
	taken     map[string]bool
	passwords map[string]string
}

func (s *stubAccounts) MobileTaken(ctx context.Context, mobile, exceptUserID string) (bool, error) {
	return s.taken[mobile], nil
}

func (s *stubAccounts) UpdatePassword(ctx context.Context, id, hash string, updatedAt time.Time) error {
	if s.passwords == nil {
		s.passwords = map[string]string{}
	}
	s.passwords[id] = hash
	return nil
}

type memoryDrafts struct {
	marks       map[string]models.SubjectMarksDraft
	institution map[string]models.InstitutionDraft
}

func newMemoryDrafts() *memoryDrafts {
	return &memoryDrafts{marks: map[string]models.SubjectMarksDraft{}, institution: map[string]models.InstitutionDraft{}}
}

func (m *memoryDrafts) GetSubjectMarks(ctx context.Context, id string) (*models.SubjectMarksDraft, error) {
	d, ok := m.marks[id]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	d.Rows = append([]models.SubjectMark(nil), d.Rows...)
	return &d, nil
}

func (m *memoryDrafts) SaveSubjectMarks(ctx context.Context, d *models.SubjectMarksDraft) error {
	clone := *d
	clone.Rows = append([]models.SubjectMark(nil), d.Rows...)
	m.marks[d.ApplicationID] = clone
	return nil
}

func (m *memoryDrafts) GetInstitution(ctx context.Context, id string) (*models.InstitutionDraft, error) {
	d, ok := m.institution[id]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return &d, nil
}

func (m *memoryDrafts) SaveInstitution(ctx context.Context, d *models.InstitutionDraft) error {
	m.institution[d.ApplicationID] = *d
	return nil
}

func (m *memoryDrafts) Discard(ctx context.Context, kind models.DraftKind, id string) error {
	if kind == models.DraftSubjectMarks {
		delete(m.marks, id)
	} else {
		delete(m.institution, id)
	}
	return nil
}

type recordingNotifier struct {
	submitted []string
}

func (r *recordingNotifier) ApplicationSubmitted(ctx context.Context, app *models.Application) error {
	r.submitted = append(r.submitted, app.ID)
	return nil
}

type applicationFixture struct {
	svc      *ApplicationService
	apps     *memoryApplications
	accounts *stubAccounts
	drafts   *memoryDrafts
	cache    *memoryCache
	notifier *recordingNotifier
	refs     *activeReferences
}

func newApplicationFixture(app *models.Application) *applicationFixture {
	f := &applicationFixture{
		apps:     newMemoryApplications(),
		accounts: &stubAccounts{taken: map[string]bool{}},
		drafts:   newMemoryDrafts(),
		cache:    newMemoryCache(),
		notifier: &recordingNotifier{},
		refs:     &activeReferences{inactive: map[string]bool{}},
	}
	if app != nil {
		f.apps.apps[app.ID] = app
	}
	f.svc = NewApplicationService(ApplicationServiceDeps{
		Applications: f.apps,
		Accounts:     f.accounts,
		Admissions:   fixedAdmissions{admission: &models.Admission{Year: 2025, Active: true}},
		Drafts:       f.drafts,
		Cache:        f.cache,
		Notifier:     f.notifier,
		References:   f.refs,
	})
	return f
}

func TestApplicationServiceCreate(t *testing.T) {
	f := newApplicationFixture(nil)
	req := dto.CreateApplicationRequest{
		FirstName:       "Asha",
		LastName:        "Patel",
		MobileNumber:    " 9876543210 ",
		Email:           "Asha@Example.com",
		Password:        "password1",
		ConfirmPassword: "password1",
	}

	app, err := f.svc.Create(context.Background(), 2025, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-000001", app.ApplicationFormID)
	assert.Equal(t, "9876543210", app.LoginID)
	assert.Equal(t, "9876543210", app.WhatsappNumber)
	assert.Equal(t, "asha@example.com", app.Email)
	assert.Equal(t, models.FormStatusDraft, app.FormStatus)
	assert.Contains(t, f.cache.invalidated, statsCacheKey(2025))

	f.accounts.taken["9876543210"] = true
	_, err = f.svc.Create(context.Background(), 2025, req, nil)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.Create(context.Background(), 2030, req, nil)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	req.ConfirmPassword = "different"
	_, err = f.svc.Create(context.Background(), 2025, req, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestApplicationServiceUpdateStepAdvances(t *testing.T) {
	app := completeApplication()
	app.CurrentStep = models.StepGeneralInfo
	f := newApplicationFixture(app)

	result, err := f.svc.UpdateStep(context.Background(), studentSession, "app-1", dto.StepUpdate{
		Step:    models.StepGeneralInfo,
		General: &dto.GeneralInfoUpdate{MiddleName: strPtr("K"), Password: strPtr("new-password"), ConfirmPassword: strPtr("new-password")},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.StepAcademicInfo, result.NextStep)
	assert.Equal(t, models.StepAcademicInfo, f.apps.apps["app-1"].CurrentStep)
	assert.Equal(t, "K", f.apps.apps["app-1"].MiddleName)
	assert.NotEmpty(t, f.accounts.passwords["user-1"])
}

func TestApplicationServiceUpdateStepSavesInvalidStep(t *testing.T) {
	app := completeApplication()
	app.CurrentStep = models.StepGeneralInfo
	f := newApplicationFixture(app)

	result, err := f.svc.UpdateStep(context.Background(), studentSession, "app-1", dto.StepUpdate{
		Step:    models.StepGeneralInfo,
		General: &dto.GeneralInfoUpdate{FirstName: strPtr(""), Password: strPtr("new-password"), ConfirmPassword: strPtr("other-password")},
	})
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, models.StepGeneralInfo, result.NextStep)
	assert.Equal(t, models.StepGeneralInfo, f.apps.apps["app-1"].CurrentStep)
	assert.Equal(t, "", f.apps.apps["app-1"].FirstName)
	assert.Empty(t, f.accounts.passwords)
}

func TestApplicationServiceUpdateStepRejectsDisabledDegree(t *testing.T) {
	app := completeApplication()
	app.CurrentStep = models.StepCourseApplication
	f := newApplicationFixture(app)
	f.refs.inactive["deg-archived"] = true

	result, err := f.svc.UpdateStep(context.Background(), studentSession, "app-1", dto.StepUpdate{
		Step:   models.StepCourseApplication,
		Course: &dto.CourseApplicationUpdate{DegreeID: strPtr("deg-archived")},
	})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "degreeId", result.Errors[0].Field)
	assert.Equal(t, models.StepCourseApplication, result.NextStep)
	assert.Equal(t, models.StepCourseApplication, f.apps.apps["app-1"].CurrentStep)
}

func TestApplicationServiceUpdateStepOwnership(t *testing.T) {
	f := newApplicationFixture(completeApplication())

	_, err := f.svc.UpdateStep(context.Background(), &models.Session{UserID: "intruder", Role: models.RoleStudent}, "app-1",
		dto.StepUpdate{Step: models.StepPayment, Payment: &dto.PaymentInfoUpdate{}})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Get(context.Background(), adminSession, "app-1")
	assert.NoError(t, err)
}

func TestApplicationServiceSubmit(t *testing.T) {
	app := completeApplication()
	app.FormStatus = models.FormStatusPaymentSuccess
	f := newApplicationFixture(app)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, studentSession, "app-1")
	assert.True(t, errors.Is(err, appErrors.ErrStepIncomplete))

	f.apps.apps["app-1"].MobileVerified = true
	submitted, err := f.svc.Submit(ctx, studentSession, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.FormStatusSubmitted, submitted.FormStatus)
	assert.Equal(t, models.ToneSuccess, submitted.Tone())
	assert.NotNil(t, submitted.SubmittedAt)
	assert.Equal(t, []string{"app-1"}, f.notifier.submitted)
	require.Len(t, f.apps.transitions, 1)
	assert.Equal(t, models.AuditActionApplicationSubmit, f.apps.transitions[0].Audit.Action)

	_, err = f.svc.Submit(ctx, studentSession, "app-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestApplicationServiceSubmitRequiresPayment(t *testing.T) {
	app := completeApplication()
	app.MobileVerified = true
	f := newApplicationFixture(app)

	_, err := f.svc.Submit(context.Background(), studentSession, "app-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Empty(t, f.apps.transitions)
}

func TestApplicationServiceSubjectMarksDraft(t *testing.T) {
	app := completeApplication()
	app.SubjectMarks = nil
	f := newApplicationFixture(app)
	ctx := context.Background()

	draft, err := f.svc.OpenSubjectMarks(ctx, studentSession, "app-1")
	require.NoError(t, err)
	require.Len(t, draft.Rows, 1)
	first := draft.Rows[0].ID

	draft, err = f.svc.RemoveSubjectRow(ctx, studentSession, "app-1", first)
	require.NoError(t, err)
	assert.Len(t, draft.Rows, 1)

	draft, err = f.svc.AddSubjectRow(ctx, studentSession, "app-1")
	require.NoError(t, err)
	require.Len(t, draft.Rows, 2)
	second := draft.Rows[1].ID
	assert.Greater(t, second, first)

	_, err = f.svc.RemoveSubjectRow(ctx, studentSession, "app-1", second)
	require.NoError(t, err)
	draft, err = f.svc.AddSubjectRow(ctx, studentSession, "app-1")
	require.NoError(t, err)
	assert.Greater(t, draft.Rows[1].ID, second)

	_, err = f.svc.CommitSubjectMarks(ctx, studentSession, "app-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.apps.apps["app-1"].SubjectMarks)

	for _, row := range draft.Rows {
		_, err = f.svc.UpdateSubjectRow(ctx, studentSession, "app-1", row.ID, dto.SubjectMarkInput{Subject: "English", TotalMarks: 100, ObtainedMarks: 70})
		require.NoError(t, err)
	}
	_, err = f.svc.UpdateSubjectRow(ctx, studentSession, "app-1", first, dto.SubjectMarkInput{Subject: "English", TotalMarks: 50, ObtainedMarks: 70})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	committed, err := f.svc.CommitSubjectMarks(ctx, studentSession, "app-1")
	require.NoError(t, err)
	assert.Len(t, committed.SubjectMarks, 2)
	assert.Len(t, f.apps.apps["app-1"].SubjectMarks, 2)
	assert.Empty(t, f.drafts.marks)
}

func TestApplicationServiceInstitutionDraftCancel(t *testing.T) {
	app := completeApplication()
	f := newApplicationFixture(app)
	ctx := context.Background()

	_, err := f.svc.UpdateInstitution(ctx, studentSession, "app-1", dto.InstitutionInput{
		BoardRollNo:       "R-99",
		InstituteOverride: "Night School",
		YearOfPassing:     2023,
		Stream:            "Arts",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelDraft(ctx, studentSession, "app-1", models.DraftInstitution))
	assert.Equal(t, "R-11", f.apps.apps["app-1"].Institution.BoardRollNo)

	_, err = f.svc.CommitInstitution(ctx, studentSession, "app-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.UpdateInstitution(ctx, studentSession, "app-1", dto.InstitutionInput{
		BoardRollNo:       "R-99",
		InstituteOverride: "Night School",
		YearOfPassing:     2023,
		Stream:            "Arts",
	})
	require.NoError(t, err)
	committed, err := f.svc.CommitInstitution(ctx, studentSession, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "Night School", committed.Institution.InstituteOverride)
	assert.Equal(t, "R-99", f.apps.apps["app-1"].Institution.BoardRollNo)
}
