package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// ApplyUpdate merges a step update into app. Nil fields keep the stored
// value, so updates touching disjoint fields commute. Locked fields are
// checked before anything is written.
func ApplyUpdate(app *models.Application, update dto.StepUpdate) error {
	if err := checkLocks(app, update); err != nil {
		return err
	}
	switch {
	case update.General != nil:
		if err := applyGeneral(app, update.General); err != nil {
			return err
		}
	case update.Academic != nil:
		applyAcademic(app, update.Academic)
	case update.Course != nil:
		applyCourse(app, update.Course)
	case update.Additional != nil:
		applyAdditional(app, update.Additional)
	case update.Payment != nil:
		applyPayment(app, update.Payment)
	}
	app.DeriveContacts()
	return nil
}

func checkLocks(app *models.Application, update dto.StepUpdate) error {
	g := update.General
	if g == nil {
		return nil
	}
	if g.MobileNumber != nil && strings.TrimSpace(*g.MobileNumber) != app.MobileNumber {
		if app.MobileVerified || app.FormStatus.Submitted() {
			return appErrors.Clone(appErrors.ErrFieldLocked, "mobile number can no longer be changed")
		}
	}
	if g.Email != nil && !strings.EqualFold(strings.TrimSpace(*g.Email), app.Email) && app.EmailVerified {
		return appErrors.Clone(appErrors.ErrFieldLocked, "verified email can no longer be changed")
	}
	if g.Gender != nil && *g.Gender != app.Gender && app.FormStatus.Submitted() {
		return appErrors.Clone(appErrors.ErrFieldLocked, "gender can no longer be changed")
	}
	return nil
}

func applyGeneral(app *models.Application, g *dto.GeneralInfoUpdate) error {
	setString(&app.FirstName, g.FirstName)
	setString(&app.MiddleName, g.MiddleName)
	setString(&app.LastName, g.LastName)
	if g.DateOfBirth != nil {
		raw := strings.TrimSpace(*g.DateOfBirth)
		if raw == "" {
			app.DateOfBirth = nil
		} else {
			dob, err := time.Parse(dateLayout, raw)
			if err != nil {
				return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid date of birth"),
					[]dto.FieldError{{Field: "dateOfBirth", Message: "use YYYY-MM-DD"}})
			}
			app.DateOfBirth = &dob
		}
	}
	if g.ClearNationality {
		app.NationalityID = nil
	}
	setOptionalID(&app.NationalityID, g.NationalityID)
	setString(&app.OtherNationality, g.OtherNationality)
	setOptionalID(&app.CategoryID, g.CategoryID)
	setOptionalID(&app.ReligionID, g.ReligionID)
	setOptionalID(&app.BloodGroupID, g.BloodGroupID)
	setOptionalID(&app.AnnualIncomeID, g.AnnualIncomeID)
	if g.Gender != nil {
		app.Gender = *g.Gender
	}
	setBool(&app.IsGujarati, g.IsGujarati)
	if g.MobileNumber != nil && strings.TrimSpace(*g.MobileNumber) != app.MobileNumber {
		app.MobileNumber = strings.TrimSpace(*g.MobileNumber)
		app.MobileVerified = false
	}
	setBool(&app.WhatsappSameAsMobile, g.WhatsappSameAsMobile)
	setString(&app.WhatsappNumber, g.WhatsappNumber)
	if g.Email != nil && !strings.EqualFold(strings.TrimSpace(*g.Email), app.Email) {
		app.Email = strings.ToLower(strings.TrimSpace(*g.Email))
		app.EmailVerified = false
	}
	setBool(&app.ResidenceOfKolkata, g.ResidenceOfKolkata)
	if g.DegreeLevel != nil {
		app.DegreeLevel = *g.DegreeLevel
	}
	return nil
}

func applyAcademic(app *models.Application, a *dto.AcademicInfoUpdate) {
	if a.PreviousResult != nil {
		app.PreviousResult = *a.PreviousResult
	}
	setString(&app.BoardUniversity, a.BoardUniversity)
}

func applyCourse(app *models.Application, c *dto.CourseApplicationUpdate) {
	if c.CourseIDs != nil {
		app.CourseIDs = dedupe(*c.CourseIDs)
	}
	setOptionalID(&app.DegreeID, c.DegreeID)
}

func applyAdditional(app *models.Application, a *dto.AdditionalInfoUpdate) {
	setOptionalID(&app.SportsCategoryID, a.SportsCategoryID)
	setOptionalID(&app.LanguageMediumID, a.LanguageMediumID)
	setString(&app.GuardianName, a.GuardianName)
	setString(&app.GuardianMobile, a.GuardianMobile)
	setString(&app.Address, a.Address)
}

func applyPayment(app *models.Application, p *dto.PaymentInfoUpdate) {
	if p.PaymentMethod != nil {
		app.PaymentMethod = *p.PaymentMethod
	}
	setBool(&app.Scholarships, p.Scholarships)
	setBool(&app.FinancialAid, p.FinancialAid)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// setOptionalID stores an id; an empty string clears it.
func setOptionalID(dst **string, src *string) {
	if src == nil {
		return
	}
	v := strings.TrimSpace(*src)
	if v == "" {
		*dst = nil
		return
	}
	*dst = &v
}

// dedupe drops blanks and repeats while keeping the first occurrence order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

type referenceChecker interface {
	ActiveIDs(ctx context.Context, kindSpec models.KindSpec, ids []string) (map[string]bool, error)
}

// FormValidator checks the step-local required fields of an application and,
// when refs is set, that every selected master-data row is still ACTIVE.
type FormValidator struct {
	validate *validator.Validate
	refs     referenceChecker
}

// NewFormValidator constructs a validator. A nil refs skips reference checks.
func NewFormValidator(validate *validator.Validate, refs referenceChecker) *FormValidator {
	if validate == nil {
		validate = validator.New()
	}
	return &FormValidator{validate: validate, refs: refs}
}

type reference struct {
	field string
	kind  models.MasterDataKind
	ids   []string
}

func optionalRef(field string, kind models.MasterDataKind, id *string) []reference {
	if id == nil || *id == "" {
		return nil
	}
	return []reference{{field: field, kind: kind, ids: []string{*id}}}
}

func stepReferences(app *models.Application, step models.FormStep) []reference {
	var refs []reference
	switch step {
	case models.StepGeneralInfo:
		refs = append(refs, optionalRef("nationalityId", models.KindNationalities, app.NationalityID)...)
		refs = append(refs, optionalRef("categoryId", models.KindCategories, app.CategoryID)...)
		refs = append(refs, optionalRef("religionId", models.KindReligions, app.ReligionID)...)
		refs = append(refs, optionalRef("bloodGroupId", models.KindBloodGroups, app.BloodGroupID)...)
		refs = append(refs, optionalRef("annualIncomeId", models.KindAnnualIncomes, app.AnnualIncomeID)...)
	case models.StepAcademicInfo:
		refs = append(refs, optionalRef("institution.collegeId", models.KindColleges, app.Institution.CollegeID)...)
		refs = append(refs, optionalRef("institution.mediumId", models.KindLanguageMediums, app.Institution.MediumID)...)
	case models.StepCourseApplication:
		if len(app.CourseIDs) > 0 {
			refs = append(refs, reference{field: "courseIds", kind: models.KindCourses, ids: app.CourseIDs})
		}
		refs = append(refs, optionalRef("degreeId", models.KindDegrees, app.DegreeID)...)
	case models.StepAdditionalInfo:
		refs = append(refs, optionalRef("sportsCategoryId", models.KindSportsCategories, app.SportsCategoryID)...)
		refs = append(refs, optionalRef("languageMediumId", models.KindLanguageMediums, app.LanguageMediumID)...)
	}
	return refs
}

func (v *FormValidator) validateReferences(ctx context.Context, app *models.Application, step models.FormStep, errs *fieldErrors) error {
	if v.refs == nil {
		return nil
	}
	for _, ref := range stepReferences(app, step) {
		kindSpec, ok := models.LookupKind(string(ref.kind))
		if !ok {
			return fmt.Errorf("unknown master data kind %s", ref.kind)
		}
		active, err := v.refs.ActiveIDs(ctx, kindSpec, ref.ids)
		if err != nil {
			return err
		}
		for _, id := range ref.ids {
			if !active[id] {
				errs.add(ref.field, fmt.Sprintf("%s is not an available option", id))
			}
		}
	}
	return nil
}

type fieldErrors []dto.FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, dto.FieldError{Field: field, Message: message})
}

// ValidateStep returns the failing fields of step. The update is consulted
// only for values that are not stored on the record, such as passwords.
func (v *FormValidator) ValidateStep(ctx context.Context, app *models.Application, step models.FormStep, update *dto.StepUpdate) ([]dto.FieldError, error) {
	var errs fieldErrors
	switch step {
	case models.StepGeneralInfo:
		v.validateGeneral(app, &errs)
		if update != nil && update.General != nil {
			validatePasswords(update.General, &errs)
		}
	case models.StepAcademicInfo:
		validateAcademic(app, &errs)
	case models.StepCourseApplication:
		validateCourse(app, &errs)
	case models.StepAdditionalInfo:
		v.validateAdditional(app, &errs)
	case models.StepPayment:
		validatePayment(app, &errs)
	default:
		errs.add("step", fmt.Sprintf("unknown step %s", step))
		return errs, nil
	}
	if err := v.validateReferences(ctx, app, step, &errs); err != nil {
		return nil, err
	}
	return errs, nil
}

// ValidateAll checks every step and returns the first incomplete one.
func (v *FormValidator) ValidateAll(ctx context.Context, app *models.Application) (models.FormStep, []dto.FieldError, error) {
	for _, step := range models.FormSteps() {
		errs, err := v.ValidateStep(ctx, app, step, nil)
		if err != nil {
			return step, nil, err
		}
		if len(errs) > 0 {
			return step, errs, nil
		}
	}
	return "", nil, nil
}

func (v *FormValidator) mobile(value string) bool {
	return v.validate.Var(value, "required,numeric,len=10") == nil
}

func (v *FormValidator) validateGeneral(app *models.Application, errs *fieldErrors) {
	if app.FirstName == "" {
		errs.add("firstName", "first name is required")
	}
	if app.LastName == "" {
		errs.add("lastName", "last name is required")
	}
	if app.DateOfBirth == nil {
		errs.add("dateOfBirth", "date of birth is required")
	} else if app.DateOfBirth.After(time.Now()) {
		errs.add("dateOfBirth", "date of birth cannot be in the future")
	}
	if app.NationalityID == nil && app.OtherNationality == "" {
		errs.add("otherNationality", "enter a nationality when none is selected")
	}
	if app.CategoryID == nil {
		errs.add("categoryId", "category is required")
	}
	if app.ReligionID == nil {
		errs.add("religionId", "religion is required")
	}
	switch app.Gender {
	case models.GenderMale, models.GenderFemale, models.GenderTransgender:
	default:
		errs.add("gender", "gender is required")
	}
	if !v.mobile(app.MobileNumber) {
		errs.add("mobileNumber", "mobile number must be 10 digits")
	}
	if !app.WhatsappSameAsMobile && app.WhatsappNumber != "" && !v.mobile(app.WhatsappNumber) {
		errs.add("whatsappNumber", "whatsapp number must be 10 digits")
	}
	if app.Email != "" && v.validate.Var(app.Email, "email") != nil {
		errs.add("email", "email is invalid")
	}
	switch app.DegreeLevel {
	case models.DegreeLevelUnderGraduate, models.DegreeLevelPostGraduate:
	default:
		errs.add("degreeLevel", "degree level is required")
	}
}

func validatePasswords(g *dto.GeneralInfoUpdate, errs *fieldErrors) {
	if g.Password == nil && g.ConfirmPassword == nil {
		return
	}
	password, confirm := "", ""
	if g.Password != nil {
		password = *g.Password
	}
	if g.ConfirmPassword != nil {
		confirm = *g.ConfirmPassword
	}
	if len(password) < 8 {
		errs.add("password", "password must be at least 8 characters")
	}
	if password != confirm {
		errs.add("confirmPassword", "passwords do not match")
	}
}

func validateAcademic(app *models.Application, errs *fieldErrors) {
	switch app.PreviousResult {
	case models.ResultPass, models.ResultFail, models.ResultCompartmental:
	default:
		errs.add("previousResult", "previous result is required")
	}
	if app.BoardUniversity == "" {
		errs.add("boardUniversity", "board or university is required")
	}
	if app.Institution.Empty() {
		errs.add("institution", "institution details are required")
	} else if app.Institution.CollegeID == nil && app.Institution.InstituteOverride == "" {
		errs.add("institution.collegeId", "select a college or enter the institute name")
	}
	if len(app.SubjectMarks) == 0 {
		errs.add("subjectMarks", "add at least one subject")
	}
	for i, mark := range app.SubjectMarks {
		prefix := fmt.Sprintf("subjectMarks[%d]", i)
		if strings.TrimSpace(mark.Subject) == "" {
			errs.add(prefix+".subject", "subject is required")
		}
		if mark.TotalMarks <= 0 {
			errs.add(prefix+".totalMarks", "total marks must be positive")
		}
		if mark.ObtainedMarks < 0 || mark.ObtainedMarks > mark.TotalMarks {
			errs.add(prefix+".obtainedMarks", "obtained marks must be between 0 and total marks")
		}
	}
}

func validateCourse(app *models.Application, errs *fieldErrors) {
	switch n := len(app.CourseIDs); {
	case n == 0:
		errs.add("courseIds", "choose at least one course")
	case n > 3:
		errs.add("courseIds", "choose at most three courses")
	}
	if app.DegreeID == nil {
		errs.add("degreeId", "degree is required")
	}
}

func (v *FormValidator) validateAdditional(app *models.Application, errs *fieldErrors) {
	if app.GuardianName == "" {
		errs.add("guardianName", "guardian name is required")
	}
	if app.GuardianMobile != "" && !v.mobile(app.GuardianMobile) {
		errs.add("guardianMobile", "guardian mobile must be 10 digits")
	}
	if app.Address == "" {
		errs.add("address", "address is required")
	}
}

func validatePayment(app *models.Application, errs *fieldErrors) {
	switch app.PaymentMethod {
	case models.PaymentMethodFull, models.PaymentMethodInstallments:
	case models.PaymentMethodFinancialAid:
		if !app.FinancialAid {
			errs.add("financialAid", "financial aid must be requested for this payment method")
		}
	case models.PaymentMethodScholarship:
		if !app.Scholarships {
			errs.add("scholarships", "scholarship must be requested for this payment method")
		}
	default:
		errs.add("paymentMethod", "payment method is required")
	}
}
