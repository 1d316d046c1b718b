package models

import "time"

// DraftKind names a nested composite edited through a draft.
type DraftKind string

const (
	DraftSubjectMarks DraftKind = "subject-marks"
	DraftInstitution  DraftKind = "institution"
)

// ParseDraftKind validates a route segment.
func ParseDraftKind(raw string) (DraftKind, bool) {
	switch DraftKind(raw) {
	case DraftSubjectMarks, DraftInstitution:
		return DraftKind(raw), true
	}
	return "", false
}

// SubjectMarksDraft is the isolated working copy of the marks table.
// Row ids are never reused within a draft.
type SubjectMarksDraft struct {
	ApplicationID string        `json:"applicationId"`
	Rows          []SubjectMark `json:"rows"`
	NextID        int           `json:"nextId"`
	OpenedAt      time.Time     `json:"openedAt"`
}

// NewSubjectMarksDraft seeds a draft from committed rows. An empty table starts with one blank row.
func NewSubjectMarksDraft(applicationID string, committed []SubjectMark) *SubjectMarksDraft {
	d := &SubjectMarksDraft{ApplicationID: applicationID, NextID: 1, OpenedAt: time.Now().UTC()}
	for _, row := range committed {
		d.Rows = append(d.Rows, row)
		if row.ID >= d.NextID {
			d.NextID = row.ID + 1
		}
	}
	if len(d.Rows) == 0 {
		d.AddRow()
	}
	return d
}

// AddRow appends a blank row with a fresh id and returns it.
func (d *SubjectMarksDraft) AddRow() SubjectMark {
	if d.NextID < 1 {
		d.NextID = 1
	}
	row := SubjectMark{ID: d.NextID}
	d.NextID++
	d.Rows = append(d.Rows, row)
	return row
}

// RemoveRow deletes the row with id. Removing the last remaining row is a
// no-op. It reports whether id was present.
func (d *SubjectMarksDraft) RemoveRow(id int) bool {
	idx := d.index(id)
	if idx < 0 {
		return false
	}
	if len(d.Rows) <= 1 {
		return true
	}
	d.Rows = append(d.Rows[:idx], d.Rows[idx+1:]...)
	return true
}

// UpdateRow replaces the editable columns of row id.
func (d *SubjectMarksDraft) UpdateRow(row SubjectMark) bool {
	idx := d.index(row.ID)
	if idx < 0 {
		return false
	}
	d.Rows[idx] = row
	return true
}

func (d *SubjectMarksDraft) index(id int) int {
	for i, row := range d.Rows {
		if row.ID == id {
			return i
		}
	}
	return -1
}

// InstitutionDraft is the isolated working copy of the institution bundle.
type InstitutionDraft struct {
	ApplicationID string             `json:"applicationId"`
	Details       InstitutionDetails `json:"details"`
	OpenedAt      time.Time          `json:"openedAt"`
}
