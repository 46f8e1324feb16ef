package services

import (
	"encoding/json"
	"fmt"
	"log"

	model "github.com/grantline/HousingCopilot/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateSubmission snapshots the form, runs the audit against it, and
// persists both records in one transaction. The stored report is the
// submission-time audit; later form edits do not touch it.
func (s *DocumentService) CreateSubmission(ownerID string, formData map[string]string, fieldMeta map[string]FieldAuditMeta) (*model.FormSubmission, *model.AuditReport, error) {
	readyDocs, err := s.CountReadyDocuments(ownerID)
	if err != nil {
		return nil, nil, err
	}
	audit := RunAudit(formData, fieldMeta, readyDocs)

	formJSON, err := json.Marshal(formData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal form data: %w", err)
	}
	metaJSON, err := json.Marshal(fieldMeta)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal field meta: %w", err)
	}
	flagsJSON, err := json.Marshal(audit.Flags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal audit flags: %w", err)
	}

	status := model.SubmissionStatusSubmitted
	if audit.Blockers > 0 {
		status = model.SubmissionStatusDraft
	}

	submission := model.FormSubmission{
		OwnerID:   ownerID,
		FormData:  datatypes.JSON(formJSON),
		FieldMeta: datatypes.JSON(metaJSON),
		Status:    status,
	}
	report := model.AuditReport{
		OwnerID:     ownerID,
		Flags:       datatypes.JSON(flagsJSON),
		Blockers:    audit.Blockers,
		Warnings:    audit.Warnings,
		Infos:       audit.Infos,
		Risk:        audit.Risk,
		CoveragePct: audit.CoveragePct,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&submission).Error; err != nil {
			return fmt.Errorf("failed to save submission: %w", err)
		}
		report.SubmissionID = submission.ID
		if err := tx.Create(&report).Error; err != nil {
			return fmt.Errorf("failed to save audit report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("Submission %s created for owner %s: status=%s risk=%d", submission.ID, ownerID, status, audit.Risk)
	return &submission, &report, nil
}

// ListSubmissions returns the owner's submissions, newest first.
func (s *DocumentService) ListSubmissions(ownerID string) ([]model.FormSubmission, error) {
	var submissions []model.FormSubmission
	err := s.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	return submissions, nil
}

// GetSubmission returns one submission with its audit report.
func (s *DocumentService) GetSubmission(ownerID, submissionID string) (*model.FormSubmission, *model.AuditReport, error) {
	var submission model.FormSubmission
	if err := s.db.Where("id = ? AND owner_id = ?", submissionID, ownerID).First(&submission).Error; err != nil {
		return nil, nil, fmt.Errorf("submission not found: %w", err)
	}

	var report model.AuditReport
	if err := s.db.Where("submission_id = ?", submission.ID).Order("created_at desc").First(&report).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &submission, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to fetch audit report: %w", err)
	}
	return &submission, &report, nil
}
