package models

import (
	"time"

	"gorm.io/datatypes"
)

// Form submission statuses.
const (
	SubmissionStatusDraft     = "draft"
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusApproved  = "approved"
)

// FormSubmission is a snapshot of the application form at a point in time.
// FormData holds the field values; FieldMeta holds the per-field suggestion
// metadata (citations, flags) attached by the suggestion engine.
type FormSubmission struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerID   string         `gorm:"type:uuid;not null;index" json:"owner_id"`
	FormData  datatypes.JSON `gorm:"not null" json:"form_data"`
	FieldMeta datatypes.JSON `json:"field_meta"`
	Status    string         `gorm:"size:32;not null;default:draft" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
