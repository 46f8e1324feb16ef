package models

import (
	"time"
)

// Document lifecycle statuses. Transitions are owned by the ingestion
// pipeline: pending -> uploaded -> processing -> ready | error.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusError      = "error"
)

// DocumentTypes are the declared doc types accepted from the upload form.
var DocumentTypes = []string{
	"lease", "paystub", "utility_bill", "provider_letter",
	"landlord_letter", "rent_ledger", "income_verification", "other",
}

// Document represents an uploaded evidence document (lease, paystub,
// utility bill, provider letter, ...).
type Document struct {
	// ID is a unique identifier for the document, stored as a UUID in the database.
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`

	// OwnerID scopes the document to the uploading user. Every read is
	// filtered by it.
	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`

	// Filename is the original client-side filename.
	Filename string `gorm:"size:512;not null" json:"filename"`

	// DocType is the declared document type (lease, paystub, ...).
	DocType string `gorm:"size:64;not null" json:"doc_type"`

	// Status tracks the ingestion lifecycle. Only the ingestion job manager
	// and the upload-completion handler mutate it.
	Status string `gorm:"size:32;not null;default:pending" json:"status"`

	// Pages is set only when ingestion succeeds.
	Pages *int `json:"pages"`

	// StoragePath is the object key under which the raw bytes live in S3.
	StoragePath string `gorm:"size:1024" json:"storage_path"`

	// ContentType is the declared MIME type from the upload request.
	ContentType string `gorm:"size:128" json:"content_type"`

	// SizeBytes is the byte size reported by storage at upload completion.
	SizeBytes int64 `json:"size_bytes"`

	// Etag is the storage integrity tag recorded at upload completion.
	Etag string `gorm:"size:128" json:"etag"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Chunks are cascade-deleted with the document.
	Chunks []DocumentChunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsValidDocType reports whether the declared type is one of the accepted values.
func IsValidDocType(t string) bool {
	for _, dt := range DocumentTypes {
		if dt == t {
			return true
		}
	}
	return false
}
