package models

import "time"

// Admission is the intake for one academic year.
type Admission struct {
	ID             string     `db:"id" json:"id"`
	Year           int        `db:"year" json:"year"`
	Title          string     `db:"title" json:"title"`
	ApplicationFee int64      `db:"application_fee" json:"applicationFee"`
	OpensAt        *time.Time `db:"opens_at" json:"opensAt,omitempty"`
	ClosesAt       *time.Time `db:"closes_at" json:"closesAt,omitempty"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// AcceptingApplications reports whether new drafts may be created at now.
func (a *Admission) AcceptingApplications(now time.Time) bool {
	if !a.Active {
		return false
	}
	if a.OpensAt != nil && now.Before(*a.OpensAt) {
		return false
	}
	if a.ClosesAt != nil && now.After(*a.ClosesAt) {
		return false
	}
	return true
}

// AdmissionStats are aggregate counters for a year.
type AdmissionStats struct {
	Total        int `db:"total" json:"total"`
	Submitted    int `db:"submitted" json:"submitted"`
	Approved     int `db:"approved" json:"approved"`
	Rejected     int `db:"rejected" json:"rejected"`
	PaymentsDone int `db:"payments_done" json:"paymentsDone"`
	PaymentDue   int `db:"payment_due" json:"paymentDue"`
	Drafts       int `db:"drafts" json:"drafts"`
}

// ApplicationFilter captures admin listing criteria.
type ApplicationFilter struct {
	Year            int
	Page            int
	Size            int
	Search          string
	CategoryID      string
	ReligionID      string
	AnnualIncomeID  string
	Gender          Gender
	IsGujarati      *bool
	FormStatus      FormStatus
	CourseID        string
	BoardUniversity string
}

// ApplicationSummary is a row of the admin listing.
type ApplicationSummary struct {
	ID                string     `db:"id" json:"id"`
	ApplicationFormID string     `db:"application_form_id" json:"applicationFormId"`
	FirstName         string     `db:"first_name" json:"firstName"`
	MiddleName        string     `db:"middle_name" json:"middleName"`
	LastName          string     `db:"last_name" json:"lastName"`
	MobileNumber      string     `db:"mobile_number" json:"mobileNumber"`
	Email             string     `db:"email" json:"email"`
	Gender            Gender     `db:"gender" json:"gender"`
	CategoryID        *string    `db:"category_id" json:"categoryId"`
	BoardUniversity   string     `db:"board_university" json:"boardUniversity"`
	IsGujarati        bool       `db:"is_gujarati" json:"isGujarati"`
	FormStatus        FormStatus `db:"form_status" json:"formStatus"`
	Tone              StatusTone `db:"-" json:"tone"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	SubmittedAt       *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
}

// BulkAction is an administrator operation over selected applications.
type BulkAction string

const (
	BulkApprove BulkAction = "APPROVE"
	BulkReject  BulkAction = "REJECT"
	BulkDelete  BulkAction = "DELETE"
)

// Target returns the status an action moves applications to. DELETE has none.
func (a BulkAction) Target() (FormStatus, bool) {
	switch a {
	case BulkApprove:
		return FormStatusApproved, true
	case BulkReject:
		return FormStatusRejected, true
	}
	return "", false
}

// Valid reports whether a is a known action.
func (a BulkAction) Valid() bool {
	return a == BulkApprove || a == BulkReject || a == BulkDelete
}

// AuditAction returns the audit action name.
func (a BulkAction) AuditAction() string {
	switch a {
	case BulkApprove:
		return AuditActionBulkApprove
	case BulkReject:
		return AuditActionBulkReject
	default:
		return AuditActionBulkDelete
	}
}

// ApplicationState is the locked row snapshot read inside a bulk transaction.
type ApplicationState struct {
	ID         string     `db:"id" json:"id"`
	FormStatus FormStatus `db:"form_status" json:"formStatus"`
}

// BulkResult reports what a bulk action changed.
type BulkResult struct {
	Action         BulkAction `json:"action"`
	Affected       int        `json:"affected"`
	ApplicationIDs []string   `json:"applicationIds"`
	FormStatus     FormStatus `json:"formStatus,omitempty"`
	Tone           StatusTone `json:"tone,omitempty"`
}
