package dto

import (
	"encoding/json"
	"fmt"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

// CreateApplicationRequest opens a draft and the student account behind it.
type CreateApplicationRequest struct {
	FirstName       string             `json:"firstName" validate:"required,max=100"`
	MiddleName      string             `json:"middleName" validate:"max=100"`
	LastName        string             `json:"lastName" validate:"required,max=100"`
	MobileNumber    string             `json:"mobileNumber" validate:"required,numeric,len=10"`
	Email           string             `json:"email" validate:"omitempty,email"`
	Password        string             `json:"password" validate:"required,min=8"`
	ConfirmPassword string             `json:"confirmPassword" validate:"required,eqfield=Password"`
	DegreeLevel     models.DegreeLevel `json:"degreeLevel" validate:"omitempty,oneof=UNDER_GRADUATE POST_GRADUATE"`
}

// GeneralInfoUpdate is the GENERAL_INFO variant. Nil fields keep their value.
type GeneralInfoUpdate struct {
	FirstName            *string             `json:"firstName,omitempty"`
	MiddleName           *string             `json:"middleName,omitempty"`
	LastName             *string             `json:"lastName,omitempty"`
	DateOfBirth          *string             `json:"dateOfBirth,omitempty"`
	NationalityID        *string             `json:"nationalityId,omitempty"`
	ClearNationality     bool                `json:"clearNationality,omitempty"`
	OtherNationality     *string             `json:"otherNationality,omitempty"`
	CategoryID           *string             `json:"categoryId,omitempty"`
	ReligionID           *string             `json:"religionId,omitempty"`
	BloodGroupID         *string             `json:"bloodGroupId,omitempty"`
	AnnualIncomeID       *string             `json:"annualIncomeId,omitempty"`
	Gender               *models.Gender      `json:"gender,omitempty"`
	IsGujarati           *bool               `json:"isGujarati,omitempty"`
	MobileNumber         *string             `json:"mobileNumber,omitempty"`
	WhatsappSameAsMobile *bool               `json:"whatsappSameAsMobile,omitempty"`
	WhatsappNumber       *string             `json:"whatsappNumber,omitempty"`
	Email                *string             `json:"email,omitempty"`
	ResidenceOfKolkata   *bool               `json:"residenceOfKolkata,omitempty"`
	DegreeLevel          *models.DegreeLevel `json:"degreeLevel,omitempty"`
	Password             *string             `json:"password,omitempty"`
	ConfirmPassword      *string             `json:"confirmPassword,omitempty"`
}

// AcademicInfoUpdate is the ACADEMIC_INFO variant. Subject marks and
// institution details are committed through drafts instead.
type AcademicInfoUpdate struct {
	PreviousResult  *models.ResultStatus `json:"previousResult,omitempty"`
	BoardUniversity *string              `json:"boardUniversity,omitempty"`
}

// CourseApplicationUpdate is the COURSE_APPLICATION variant.
type CourseApplicationUpdate struct {
	CourseIDs *[]string `json:"courseIds,omitempty"`
	DegreeID  *string   `json:"degreeId,omitempty"`
}

// AdditionalInfoUpdate is the ADDITIONAL_INFO variant.
type AdditionalInfoUpdate struct {
	SportsCategoryID *string `json:"sportsCategoryId,omitempty"`
	LanguageMediumID *string `json:"languageMediumId,omitempty"`
	GuardianName     *string `json:"guardianName,omitempty"`
	GuardianMobile   *string `json:"guardianMobile,omitempty"`
	Address          *string `json:"address,omitempty"`
}

// PaymentInfoUpdate is the PAYMENT variant.
type PaymentInfoUpdate struct {
	PaymentMethod *models.PaymentMethod `json:"paymentMethod,omitempty"`
	Scholarships  *bool                 `json:"scholarships,omitempty"`
	FinancialAid  *bool                 `json:"financialAid,omitempty"`
}

// StepUpdate is a tagged union: Step selects which variant is populated.
type StepUpdate struct {
	Step       models.FormStep
	General    *GeneralInfoUpdate
	Academic   *AcademicInfoUpdate
	Course     *CourseApplicationUpdate
	Additional *AdditionalInfoUpdate
	Payment    *PaymentInfoUpdate
}

// DecodeStepUpdate unmarshals raw into the variant owned by step.
func DecodeStepUpdate(step models.FormStep, raw []byte) (StepUpdate, error) {
	update := StepUpdate{Step: step}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var target interface{}
	switch step {
	case models.StepGeneralInfo:
		update.General = &GeneralInfoUpdate{}
		target = update.General
	case models.StepAcademicInfo:
		update.Academic = &AcademicInfoUpdate{}
		target = update.Academic
	case models.StepCourseApplication:
		update.Course = &CourseApplicationUpdate{}
		target = update.Course
	case models.StepAdditionalInfo:
		update.Additional = &AdditionalInfoUpdate{}
		target = update.Additional
	case models.StepPayment:
		update.Payment = &PaymentInfoUpdate{}
		target = update.Payment
	default:
		return StepUpdate{}, fmt.Errorf("unknown step %q", step)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return StepUpdate{}, fmt.Errorf("decode %s payload: %w", step, err)
	}
	return update, nil
}

// StepResult is returned after a step is saved.
type StepResult struct {
	Application *models.Application `json:"application"`
	Step        models.FormStep     `json:"step"`
	NextStep    models.FormStep     `json:"nextStep"`
	Complete    bool                `json:"complete"`
	Errors      []FieldError        `json:"errors,omitempty"`
}

// FieldError describes one failing field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SubjectMarkInput edits one draft row.
type SubjectMarkInput struct {
	Subject       string              `json:"subject" validate:"required,max=100"`
	TotalMarks    float64             `json:"totalMarks" validate:"gt=0"`
	ObtainedMarks float64             `json:"obtainedMarks" validate:"gte=0"`
	ResultStatus  models.ResultStatus `json:"resultStatus" validate:"omitempty,oneof=PASS FAIL COMPARTMENTAL"`
}

// InstitutionInput replaces the institution draft.
type InstitutionInput struct {
	BoardRollNo            string  `json:"boardRollNo" validate:"required,max=50"`
	CollegeID              *string `json:"collegeId"`
	InstituteOverride      string  `json:"instituteOverride" validate:"max=200"`
	MediumID               *string `json:"mediumId"`
	YearOfPassing          int     `json:"yearOfPassing" validate:"required,gte=1950,lte=2100"`
	Stream                 string  `json:"stream" validate:"required,max=100"`
	PreviouslyRegistered   bool    `json:"previouslyRegistered"`
	PreviousRegistrationNo string  `json:"previousRegistrationNo" validate:"required_if=PreviouslyRegistered true,max=50"`
}

// VerifyOTPRequest carries the code typed by the applicant.
type VerifyOTPRequest struct {
	Code string `json:"code" validate:"required,numeric"`
}

// AcknowledgementView is the public verification payload.
type AcknowledgementView struct {
	ApplicationFormID string            `json:"applicationFormId"`
	Name              string            `json:"name"`
	Year              int               `json:"year"`
	FormStatus        models.FormStatus `json:"formStatus"`
	Tone              models.StatusTone `json:"tone"`
}

// OTPVerification is returned after a code is accepted.
type OTPVerification struct {
	Status      models.OTPStatus    `json:"status"`
	Application *models.Application `json:"application"`
}
