package dto

import "github.com/noah-isme/admission-portal-api/internal/models"

// MasterDataRequest creates or updates a lookup row. Label may also be sent
// under the kind's column name (name, type or range).
type MasterDataRequest struct {
	Label    string `json:"label"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Range    string `json:"range"`
	Sequence *int   `json:"sequence"`
}

// ResolvedLabel returns the first non-empty label field.
func (r MasterDataRequest) ResolvedLabel() string {
	for _, v := range []string{r.Label, r.Name, r.Type, r.Range} {
		if v != "" {
			return v
		}
	}
	return ""
}

// MasterDataStatusRequest toggles or sets the record status. An empty body
// flips between ACTIVE and DISABLED.
type MasterDataStatusRequest struct {
	Status   *models.RecordStatus `json:"status"`
	Disabled *bool                `json:"disabled"`
}

// MasterDataQuery is the list query string.
type MasterDataQuery struct {
	Page   int    `form:"page"`
	Size   int    `form:"size"`
	Search string `form:"search"`
	Status string `form:"status"`
}

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Kind     models.MasterDataKind `json:"kind"`
	Imported int                   `json:"imported"`
}
