package models

import "time"

// Ingestion job statuses: queued -> running -> completed | error.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusError     = "error"
)

// IngestionJob is one durable extraction attempt for a document. At most
// one job may be running per document; the idempotency key keeps a
// duplicated upload-complete trigger from enqueueing a second concurrent job.
type IngestionJob struct {
	ID             string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DocumentID     string    `gorm:"type:uuid;not null;index" json:"document_id"`
	OwnerID        string    `gorm:"type:uuid;not null;index" json:"owner_id"`
	Status         string    `gorm:"size:32;not null;default:queued" json:"status"`
	IdempotencyKey string    `gorm:"size:128;not null;uniqueIndex" json:"idempotency_key"`
	RetryCount     int       `gorm:"not null;default:0" json:"retry_count"`
	ErrorMessage   string    `gorm:"size:2000" json:"error_message"`

	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
