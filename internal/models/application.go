package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Gender of the applicant.
type Gender string

const (
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderTransgender Gender = "TRANSGENDER"
)

// DegreeLevel is the programme level applied for.
type DegreeLevel string

const (
	DegreeLevelUnderGraduate DegreeLevel = "UNDER_GRADUATE"
	DegreeLevelPostGraduate  DegreeLevel = "POST_GRADUATE"
)

// ResultStatus is the outcome of a previous examination.
type ResultStatus string

const (
	ResultPass          ResultStatus = "PASS"
	ResultFail          ResultStatus = "FAIL"
	ResultCompartmental ResultStatus = "COMPARTMENTAL"
)

// PaymentMethod is how the applicant intends to pay fees.
type PaymentMethod string

const (
	PaymentMethodFull         PaymentMethod = "FULL"
	PaymentMethodInstallments PaymentMethod = "INSTALLMENTS"
	PaymentMethodFinancialAid PaymentMethod = "FINANCIAL_AID"
	PaymentMethodScholarship  PaymentMethod = "SCHOLARSHIP"
)

// FormStep identifies a wizard step.
type FormStep string

const (
	StepGeneralInfo       FormStep = "GENERAL_INFO"
	StepAcademicInfo      FormStep = "ACADEMIC_INFO"
	StepCourseApplication FormStep = "COURSE_APPLICATION"
	StepAdditionalInfo    FormStep = "ADDITIONAL_INFO"
	StepPayment           FormStep = "PAYMENT"
)

var formSteps = []FormStep{StepGeneralInfo, StepAcademicInfo, StepCourseApplication, StepAdditionalInfo, StepPayment}

// FormSteps returns the steps in order.
func FormSteps() []FormStep {
	out := make([]FormStep, len(formSteps))
	copy(out, formSteps)
	return out
}

// ParseFormStep accepts GENERAL_INFO or general-info.
func ParseFormStep(raw string) (FormStep, bool) {
	step := FormStep(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	return step, step.index() >= 0
}

func (s FormStep) index() int {
	for i, step := range formSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the following step. The last step returns itself and false.
func (s FormStep) Next() (FormStep, bool) {
	i := s.index()
	if i < 0 || i == len(formSteps)-1 {
		return s, false
	}
	return formSteps[i+1], true
}

// Before reports whether s comes earlier than other.
func (s FormStep) Before(other FormStep) bool {
	return s.index() < other.index()
}

// SubjectMark is one row of the subject-wise marks table.
type SubjectMark struct {
	ID            int          `json:"id"`
	Subject       string       `json:"subject"`
	TotalMarks    float64      `json:"totalMarks"`
	ObtainedMarks float64      `json:"obtainedMarks"`
	ResultStatus  ResultStatus `json:"resultStatus"`
}

// SubjectMarks is stored as a JSONB column.
type SubjectMarks []SubjectMark

// Value implements driver.Valuer.
func (m SubjectMarks) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *SubjectMarks) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// InstitutionDetails is the previous institution bundle, stored as JSONB.
type InstitutionDetails struct {
	BoardRollNo            string  `json:"boardRollNo"`
	CollegeID              *string `json:"collegeId,omitempty"`
	InstituteOverride      string  `json:"instituteOverride,omitempty"`
	MediumID               *string `json:"mediumId,omitempty"`
	YearOfPassing          int     `json:"yearOfPassing"`
	Stream                 string  `json:"stream"`
	PreviouslyRegistered   bool    `json:"previouslyRegistered"`
	PreviousRegistrationNo string  `json:"previousRegistrationNo,omitempty"`
}

// Value implements driver.Valuer.
func (d InstitutionDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *InstitutionDetails) Scan(src interface{}) error {
	return scanJSON(src, d)
}

// Empty reports whether no institution has been chosen yet.
func (d InstitutionDetails) Empty() bool {
	return d.BoardRollNo == "" && d.CollegeID == nil && d.InstituteOverride == ""
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

// Application is the applicant record for one admission year.
type Application struct {
	ID                string `db:"id" json:"id"`
	ApplicationFormID string `db:"application_form_id" json:"applicationFormId"`
	Year              int    `db:"year" json:"year"`
	UserID            string `db:"user_id" json:"userId"`

	FirstName            string      `db:"first_name" json:"firstName"`
	MiddleName           string      `db:"middle_name" json:"middleName"`
	LastName             string      `db:"last_name" json:"lastName"`
	DateOfBirth          *time.Time  `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	NationalityID        *string     `db:"nationality_id" json:"nationalityId"`
	OtherNationality     string      `db:"other_nationality" json:"otherNationality"`
	CategoryID           *string     `db:"category_id" json:"categoryId"`
	ReligionID           *string     `db:"religion_id" json:"religionId"`
	BloodGroupID         *string     `db:"blood_group_id" json:"bloodGroupId"`
	AnnualIncomeID       *string     `db:"annual_income_id" json:"annualIncomeId"`
	Gender               Gender      `db:"gender" json:"gender"`
	IsGujarati           bool        `db:"is_gujarati" json:"isGujarati"`
	MobileNumber         string      `db:"mobile_number" json:"mobileNumber"`
	WhatsappSameAsMobile bool        `db:"whatsapp_same_as_mobile" json:"whatsappSameAsMobile"`
	WhatsappNumber       string      `db:"whatsapp_number" json:"whatsappNumber"`
	Email                string      `db:"email" json:"email"`
	ResidenceOfKolkata   bool        `db:"residence_of_kolkata" json:"residenceOfKolkata"`
	LoginID              string      `db:"login_id" json:"loginId"`
	DegreeLevel          DegreeLevel `db:"degree_level" json:"degreeLevel"`

	PreviousResult  ResultStatus       `db:"previous_result" json:"previousResult"`
	BoardUniversity string             `db:"board_university" json:"boardUniversity"`
	Institution     InstitutionDetails `db:"institution" json:"institution"`
	SubjectMarks    SubjectMarks       `db:"subject_marks" json:"subjectMarks"`

	CourseIDs pq.StringArray `db:"course_ids" json:"courseIds"`
	DegreeID  *string        `db:"degree_id" json:"degreeId"`

	SportsCategoryID *string `db:"sports_category_id" json:"sportsCategoryId"`
	LanguageMediumID *string `db:"language_medium_id" json:"languageMediumId"`
	GuardianName     string  `db:"guardian_name" json:"guardianName"`
	GuardianMobile   string  `db:"guardian_mobile" json:"guardianMobile"`
	Address          string  `db:"address" json:"address"`

	PaymentMethod PaymentMethod `db:"payment_method" json:"paymentMethod"`
	Scholarships  bool          `db:"scholarships" json:"scholarships"`
	FinancialAid  bool          `db:"financial_aid" json:"financialAid"`

	MobileVerified bool `db:"mobile_verified" json:"mobileVerified"`
	EmailVerified  bool `db:"email_verified" json:"emailVerified"`

	FormStatus      FormStatus `db:"form_status" json:"formStatus"`
	CurrentStep     FormStep   `db:"current_step" json:"currentStep"`
	PaymentOrderID  *string    `db:"payment_order_id" json:"paymentOrderId,omitempty"`
	PaymentAttempts int        `db:"payment_attempts" json:"paymentAttempts"`

	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
}

// FullName joins the non-empty name parts.
func (a *Application) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.FirstName, a.MiddleName, a.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Tone returns the display treatment of the current status.
func (a *Application) Tone() StatusTone {
	return a.FormStatus.Tone()
}

// DeriveContacts recomputes login id and the mirrored WhatsApp number.
func (a *Application) DeriveContacts() {
	a.LoginID = a.MobileNumber
	if a.WhatsappSameAsMobile {
		a.WhatsappNumber = a.MobileNumber
	}
}

// FormIDFor formats the human readable form id for a sequence number.
func FormIDFor(year, seq int) string {
	return fmt.Sprintf("%d-%06d", year, seq)
}
