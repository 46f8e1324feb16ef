package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditReport is a stored audit result linked to a form submission.
// Reports are point-in-time snapshots and are never updated after creation.
type AuditReport struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SubmissionID string         `gorm:"type:uuid;not null;index" json:"submission_id"`
	OwnerID      string         `gorm:"type:uuid;not null;index" json:"owner_id"`
	Flags        datatypes.JSON `gorm:"not null" json:"flags"`
	Blockers     int            `gorm:"not null;default:0" json:"blockers"`
	Warnings     int            `gorm:"not null;default:0" json:"warnings"`
	Infos        int            `gorm:"not null;default:0" json:"infos"`
	Risk         int            `gorm:"not null;default:0" json:"risk"`
	CoveragePct  int            `gorm:"not null;default:0" json:"coverage_pct"`
	CreatedAt    time.Time      `json:"created_at"`
}
