package models

import "time"

// DocumentKind is the type of supporting upload.
type DocumentKind string

const (
	DocumentPhoto     DocumentKind = "PHOTO"
	DocumentSignature DocumentKind = "SIGNATURE"
	DocumentMarksheet DocumentKind = "MARKSHEET"
	DocumentIDProof   DocumentKind = "ID_PROOF"
)

// Valid reports whether k is accepted.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentPhoto, DocumentSignature, DocumentMarksheet, DocumentIDProof:
		return true
	}
	return false
}

// Document is an applicant upload kept in object storage.
type Document struct {
	ID            string       `db:"id" json:"id"`
	ApplicationID string       `db:"application_id" json:"applicationId"`
	Kind          DocumentKind `db:"kind" json:"kind"`
	ObjectKey     string       `db:"object_key" json:"-"`
	FileName      string       `db:"file_name" json:"fileName"`
	ContentType   string       `db:"content_type" json:"contentType"`
	SizeBytes     int64        `db:"size_bytes" json:"sizeBytes"`
	URL           string       `db:"-" json:"url,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
}
