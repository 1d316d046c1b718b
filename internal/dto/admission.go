package dto

import "github.com/noah-isme/admission-portal-api/internal/models"

// AdmissionQuery mirrors the admin listing query string.
type AdmissionQuery struct {
	Page            int    `form:"page"`
	Size            int    `form:"size"`
	Search          string `form:"search"`
	Category        string `form:"category"`
	Religion        string `form:"religion"`
	AnnualIncome    string `form:"annualIncome"`
	Gender          string `form:"gender"`
	IsGujarati      string `form:"isGujarati"`
	FormStatus      string `form:"formStatus"`
	Course          string `form:"course"`
	BoardUniversity string `form:"boardUniversity"`
}

// AdmissionOverview is the admin page payload.
type AdmissionOverview struct {
	Admission    *models.Admission           `json:"admission"`
	Stats        models.AdmissionStats       `json:"stats"`
	Applications []models.ApplicationSummary `json:"applications"`
	TotalItems   int                         `json:"totalItems"`
}

// BulkActionRequest selects applications for one action.
type BulkActionRequest struct {
	Action         models.BulkAction `json:"action"`
	ApplicationIDs []string          `json:"applicationIds"`
}
