package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// MasterDataKind names a lookup table as it appears in URLs.
type MasterDataKind string

const (
	KindDegrees          MasterDataKind = "degrees"
	KindColleges         MasterDataKind = "colleges"
	KindReligions        MasterDataKind = "religions"
	KindBloodGroups      MasterDataKind = "blood-groups"
	KindAnnualIncomes    MasterDataKind = "annual-incomes"
	KindSportsCategories MasterDataKind = "sports-categories"
	KindLanguageMediums  MasterDataKind = "language-mediums"
	KindCourses          MasterDataKind = "courses"
	KindNationalities    MasterDataKind = "nationalities"
	KindCategories       MasterDataKind = "categories"
)

// KindSpec maps a kind onto its table. Table and LabelColumn are fixed
// identifiers and safe to interpolate into SQL.
type KindSpec struct {
	Kind        MasterDataKind
	Table       string
	LabelColumn string
	HasSequence bool
	// Public kinds are served unauthenticated as dropdown lookups.
	Public bool
}

// RequiredHeaders are the spreadsheet headers an import must contain.
func (k KindSpec) RequiredHeaders() []string {
	return []string{k.LabelColumn}
}

// ExportHeaders are the columns written on export.
func (k KindSpec) ExportHeaders() []string {
	if k.HasSequence {
		return []string{k.LabelColumn, "sequence"}
	}
	return []string{k.LabelColumn}
}

var masterDataKinds = map[MasterDataKind]KindSpec{
	KindDegrees:          {Kind: KindDegrees, Table: "degrees", LabelColumn: "name", HasSequence: true},
	KindColleges:         {Kind: KindColleges, Table: "colleges", LabelColumn: "name"},
	KindReligions:        {Kind: KindReligions, Table: "religions", LabelColumn: "name"},
	KindBloodGroups:      {Kind: KindBloodGroups, Table: "blood_groups", LabelColumn: "type"},
	KindAnnualIncomes:    {Kind: KindAnnualIncomes, Table: "annual_incomes", LabelColumn: "range", HasSequence: true},
	KindSportsCategories: {Kind: KindSportsCategories, Table: "sports_categories", LabelColumn: "name"},
	KindLanguageMediums:  {Kind: KindLanguageMediums, Table: "language_mediums", LabelColumn: "name"},
	KindCourses:          {Kind: KindCourses, Table: "courses", LabelColumn: "name", HasSequence: true},
	KindNationalities:    {Kind: KindNationalities, Table: "nationalities", LabelColumn: "name", Public: true},
	KindCategories:       {Kind: KindCategories, Table: "categories", LabelColumn: "name", Public: true},
}

// LookupKind resolves a URL segment.
func LookupKind(raw string) (KindSpec, bool) {
	kindSpec, ok := masterDataKinds[MasterDataKind(strings.ToLower(strings.TrimSpace(raw)))]
	return kindSpec, ok
}

// MasterDataKinds returns all kinds sorted by name.
func MasterDataKinds() []KindSpec {
	out := make([]KindSpec, 0, len(masterDataKinds))
	for _, kindSpec := range masterDataKinds {
		out = append(out, kindSpec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// RecordStatus replaces the boolean disabled flag.
type RecordStatus string

const (
	RecordStatusActive   RecordStatus = "ACTIVE"
	RecordStatusDisabled RecordStatus = "DISABLED"
	RecordStatusArchived RecordStatus = "ARCHIVED"
)

// Valid reports whether s is a known status.
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusActive, RecordStatusDisabled, RecordStatusArchived:
		return true
	}
	return false
}

// MasterDataRecord is one lookup row.
type MasterDataRecord struct {
	ID        string         `db:"id"`
	Kind      MasterDataKind `db:"-"`
	Label     string         `db:"label"`
	Sequence  *int           `db:"sequence"`
	Status    RecordStatus   `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Disabled reports whether the record is hidden from active selections.
func (r MasterDataRecord) Disabled() bool {
	return r.Status != RecordStatusActive
}

// MarshalJSON exposes the label under the kind's column name and keeps the
// legacy disabled flag next to status.
func (r MasterDataRecord) MarshalJSON() ([]byte, error) {
	labelKey := "name"
	if kindSpec, ok := masterDataKinds[r.Kind]; ok {
		labelKey = kindSpec.LabelColumn
	}
	body := map[string]interface{}{
		"id":        r.ID,
		labelKey:    r.Label,
		"status":    r.Status,
		"disabled":  r.Disabled(),
		"createdAt": r.CreatedAt,
		"updatedAt": r.UpdatedAt,
	}
	if r.Sequence != nil {
		body["sequence"] = *r.Sequence
	}
	return json.Marshal(body)
}

// LookupOption is the compact dropdown shape.
type LookupOption struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"label" json:"name"`
}

// MasterDataFilter narrows list queries.
type MasterDataFilter struct {
	Status *RecordStatus
	Search string
	Page   int
	Size   int
}
