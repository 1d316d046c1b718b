package models

import "time"

// Audit actions recorded by the portal.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionApplicationCreate = "APPLICATION_CREATE"
	AuditActionApplicationSubmit = "APPLICATION_SUBMIT"
	AuditActionContactVerified   = "CONTACT_VERIFIED"
	AuditActionPaymentUpdate     = "PAYMENT_UPDATE"
	AuditActionBulkApprove       = "BULK_APPROVE"
	AuditActionBulkReject        = "BULK_REJECT"
	AuditActionBulkDelete        = "BULK_DELETE"
	AuditActionMasterDataCreate  = "MASTER_DATA_CREATE"
	AuditActionMasterDataUpdate  = "MASTER_DATA_UPDATE"
	AuditActionMasterDataStatus  = "MASTER_DATA_STATUS"
	AuditActionMasterDataImport  = "MASTER_DATA_IMPORT"
	AuditActionDocumentUpload    = "DOCUMENT_UPLOAD"
	AuditActionDocumentDelete    = "DOCUMENT_DELETE"
	AuditActionExport            = "EXPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
