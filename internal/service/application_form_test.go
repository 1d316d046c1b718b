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

func completeApplication() *models.Application {
	dob := time.Date(2006, 4, 12, 0, 0, 0, 0, time.UTC)
	college := "col-1"
	degree := "deg-1"
	return &models.Application{
		ID:                   "app-1",
		ApplicationFormID:    "2025-000001",
		Year:                 2025,
		UserID:               "user-1",
		FirstName:            "Asha",
		LastName:             "Patel",
		DateOfBirth:          &dob,
		NationalityID:        strPtr("nat-in"),
		CategoryID:           strPtr("cat-gen"),
		ReligionID:           strPtr("rel-1"),
		Gender:               models.GenderFemale,
		MobileNumber:         "9876543210",
		WhatsappSameAsMobile: true,
		WhatsappNumber:       "9876543210",
		LoginID:              "9876543210",
		DegreeLevel:          models.DegreeLevelUnderGraduate,
		PreviousResult:       models.ResultPass,
		BoardUniversity:      "GSEB",
		Institution:          models.InstitutionDetails{BoardRollNo: "R-11", CollegeID: &college, YearOfPassing: 2024, Stream: "Commerce"},
		SubjectMarks:         models.SubjectMarks{{ID: 1, Subject: "Accounts", TotalMarks: 100, ObtainedMarks: 88, ResultStatus: models.ResultPass}},
		CourseIDs:            []string{"c-1"},
		DegreeID:             &degree,
		GuardianName:         "Mehul Patel",
		Address:              "12 Park Street",
		PaymentMethod:        models.PaymentMethodFull,
		FormStatus:           models.FormStatusDraft,
		CurrentStep:          models.StepPayment,
	}
}

func TestApplyUpdateDisjointKeysCommute(t *testing.T) {
	first := dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{FirstName: strPtr("Riya")}}
	second := dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{Email: strPtr("riya@example.com"), IsGujarati: boolPtr(true)}}

	a := completeApplication()
	require.NoError(t, ApplyUpdate(a, first))
	require.NoError(t, ApplyUpdate(a, second))

	b := completeApplication()
	require.NoError(t, ApplyUpdate(b, second))
	require.NoError(t, ApplyUpdate(b, first))

	assert.Equal(t, a, b)
	assert.Equal(t, "Riya", a.FirstName)
	assert.Equal(t, "Patel", a.LastName)
	assert.Equal(t, "riya@example.com", a.Email)
	assert.True(t, a.IsGujarati)
}

func TestApplyUpdateLocksVerifiedMobile(t *testing.T) {
	app := completeApplication()
	app.MobileVerified = true

	err := ApplyUpdate(app, dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{MobileNumber: strPtr("9123456780")}})
	assert.True(t, errors.Is(err, appErrors.ErrFieldLocked))
	assert.Equal(t, "9876543210", app.MobileNumber)

	require.NoError(t, ApplyUpdate(app, dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{MobileNumber: strPtr("9876543210")}}))
}

func TestApplyUpdateLocksGenderAfterSubmission(t *testing.T) {
	app := completeApplication()
	app.FormStatus = models.FormStatusSubmitted
	male := models.GenderMale

	err := ApplyUpdate(app, dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{Gender: &male}})
	assert.True(t, errors.Is(err, appErrors.ErrFieldLocked))
	assert.Equal(t, models.GenderFemale, app.Gender)
}

func TestApplyUpdateDerivesContacts(t *testing.T) {
	app := completeApplication()

	require.NoError(t, ApplyUpdate(app, dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{MobileNumber: strPtr("9123456780")}}))
	assert.Equal(t, "9123456780", app.LoginID)
	assert.Equal(t, "9123456780", app.WhatsappNumber)

	require.NoError(t, ApplyUpdate(app, dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{
		WhatsappSameAsMobile: boolPtr(false),
		WhatsappNumber:       strPtr("9000000001"),
	}}))
	assert.Equal(t, "9000000001", app.WhatsappNumber)
	assert.Equal(t, "9123456780", app.LoginID)
}

func TestApplyUpdateCoursesDeduplicated(t *testing.T) {
	app := completeApplication()
	courses := []string{"c-2", "c-1", "c-2", " "}

	require.NoError(t, ApplyUpdate(app, dto.StepUpdate{Step: models.StepCourseApplication, Course: &dto.CourseApplicationUpdate{CourseIDs: &courses}}))
	assert.Equal(t, []string{"c-2", "c-1"}, []string(app.CourseIDs))
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, []string{"12", "47", "3"}, dedupe([]string{"12", "47", "12", "3", "47"}))
	assert.Empty(t, dedupe(nil))
}

func TestFormValidatorStepRules(t *testing.T) {
	v := NewFormValidator(nil, nil)
	ctx := context.Background()

	app := completeApplication()
	_, errs, err := v.ValidateAll(ctx, app)
	require.NoError(t, err)
	assert.Empty(t, errs)

	app.NationalityID = nil
	errs, err = v.ValidateStep(ctx, app, models.StepGeneralInfo, nil)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "otherNationality", errs[0].Field)

	app.OtherNationality = "Kenyan"
	errs, err = v.ValidateStep(ctx, app, models.StepGeneralInfo, nil)
	require.NoError(t, err)
	assert.Empty(t, errs)

	app.SubjectMarks = models.SubjectMarks{{ID: 1, Subject: "Maths", TotalMarks: 100, ObtainedMarks: 120}}
	errs, err = v.ValidateStep(ctx, app, models.StepAcademicInfo, nil)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "subjectMarks[0].obtainedMarks", errs[0].Field)

	app.SubjectMarks = nil
	step, errs, err := v.ValidateAll(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, models.StepAcademicInfo, step)
	assert.Equal(t, "subjectMarks", errs[0].Field)
}

func TestFormValidatorPasswordsOnlyInGeneralInfo(t *testing.T) {
	v := NewFormValidator(nil, nil)
	ctx := context.Background()
	app := completeApplication()
	update := &dto.StepUpdate{Step: models.StepGeneralInfo, General: &dto.GeneralInfoUpdate{
		Password:        strPtr("secret-pass"),
		ConfirmPassword: strPtr("secret-typo"),
	}}

	errs, err := v.ValidateStep(ctx, app, models.StepGeneralInfo, update)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "confirmPassword", errs[0].Field)

	errs, err = v.ValidateStep(ctx, app, models.StepAcademicInfo, update)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

type activeReferences struct {
	inactive map[string]bool
	kinds    []models.MasterDataKind
	err      error
}

func (a *activeReferences) ActiveIDs(ctx context.Context, kindSpec models.KindSpec, ids []string) (map[string]bool, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.kinds = append(a.kinds, kindSpec.Kind)
	active := map[string]bool{}
	for _, id := range ids {
		if !a.inactive[id] {
			active[id] = true
		}
	}
	return active, nil
}

func TestFormValidatorRejectsInactiveReferences(t *testing.T) {
	refs := &activeReferences{inactive: map[string]bool{"cat-gen": true, "c-2": true, "deg-1": true, "missing": true}}
	v := NewFormValidator(nil, refs)
	ctx := context.Background()

	app := completeApplication()
	errs, err := v.ValidateStep(ctx, app, models.StepGeneralInfo, nil)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "categoryId", errs[0].Field)
	assert.Equal(t, []models.MasterDataKind{models.KindNationalities, models.KindCategories, models.KindReligions}, refs.kinds)

	app.CourseIDs = []string{"c-1", "c-2"}
	errs, err = v.ValidateStep(ctx, app, models.StepCourseApplication, nil)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "courseIds", errs[0].Field)
	assert.Contains(t, errs[0].Message, "c-2")
	assert.Equal(t, "degreeId", errs[1].Field)

	app.SportsCategoryID = strPtr("missing")
	app.LanguageMediumID = strPtr("lm-1")
	errs, err = v.ValidateStep(ctx, app, models.StepAdditionalInfo, nil)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "sportsCategoryId", errs[0].Field)

	step, errs, err := v.ValidateAll(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, models.StepGeneralInfo, step)
	assert.NotEmpty(t, errs)

	refs.err = errors.New("db down")
	_, err = v.ValidateStep(ctx, app, models.StepCourseApplication, nil)
	assert.Error(t, err)
}

func boolPtr(v bool) *bool { return &v }
