package services

import (
	"fmt"
	"io"
	"log"
	"time"

	model "github.com/grantline/HousingCopilot/models"

	"gorm.io/gorm"
)

const maxJobErrorLength = 2000

// RunIngestionJob drives one queued job through the pipeline: download,
// extract, chunk, embed, persist. It is the only writer of the
// processing/ready/error document statuses. A job or document that cannot
// be found (or belongs to another owner) is a silent no-op; a stale
// trigger must not flip state it does not own.
func (s *DocumentService) RunIngestionJob(jobID, documentID, ownerID string) error {
	var job model.IngestionJob
	if err := s.db.Where("id = ?", jobID).First(&job).Error; err != nil {
		log.Printf("RunIngestionJob: job %s not found, skipping: %v", jobID, err)
		return nil
	}
	var doc model.Document
	if err := s.db.Where("id = ? AND owner_id = ?", documentID, ownerID).First(&doc).Error; err != nil {
		log.Printf("RunIngestionJob: document %s not found for owner %s, skipping: %v", documentID, ownerID, err)
		return nil
	}

	// Persist the running state before any work so a crash mid-pipeline is
	// observable instead of leaving the job stuck at queued.
	now := time.Now()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	if err := s.db.Save(&job).Error; err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	doc.Status = model.DocumentStatusProcessing
	if err := s.db.Save(&doc).Error; err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}
	log.Printf("Ingestion started: job=%s document=%s", job.ID, doc.ID)

	pages, chunkTotal, err := s.ingestDocument(&doc)
	if err != nil {
		s.failIngestion(&job, &doc, err)
		return err
	}

	pageCount := pages
	doc.Status = model.DocumentStatusReady
	doc.Pages = &pageCount
	if err := s.db.Save(&doc).Error; err != nil {
		return fmt.Errorf("failed to mark document ready: %w", err)
	}

	finished := time.Now()
	job.Status = model.JobStatusCompleted
	job.ErrorMessage = ""
	job.FinishedAt = &finished
	if err := s.db.Save(&job).Error; err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	log.Printf("Ingestion completed: document=%s pages=%d chunks=%d", doc.ID, pages, chunkTotal)
	return nil
}

// ingestDocument does the pipeline work and returns (pages, chunks).
func (s *DocumentService) ingestDocument(doc *model.Document) (int, int, error) {
	fileBytes, err := s.fetchObjectBytes(doc.StoragePath)
	if err != nil {
		return 0, 0, err
	}
	if int64(len(fileBytes)) > s.maxIngestBytes {
		return 0, 0, fmt.Errorf("document %s exceeds ingestion size limit of %d bytes", doc.ID, s.maxIngestBytes)
	}

	pages, err := ExtractTextPages(fileBytes, doc.ContentType, doc.Filename)
	if err != nil {
		return 0, 0, fmt.Errorf("text extraction failed: %w", err)
	}
	if len(pages) == 0 {
		return 0, 0, fmt.Errorf("%w: no extractable text in %s", ErrContentEmpty, doc.Filename)
	}

	// Re-ingestion replaces the chunk set wholesale.
	if err := s.db.Where("document_id = ?", doc.ID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to clear existing chunks: %w", err)
	}

	total := 0
	for _, page := range pages {
		n, err := s.StoreDocumentChunks(doc.ID, page.Page, page.Text, total)
		if err != nil {
			return 0, 0, err
		}
		total += n
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("%w: extraction produced no chunks for %s", ErrContentEmpty, doc.Filename)
	}

	// Keyword index is best-effort and never sinks the job.
	s.indexDocumentChunks(doc)

	return len(pages), total, nil
}

// failIngestion records the failure on both the job and the document. The
// retry counter and the truncated message survive for the listing endpoint.
func (s *DocumentService) failIngestion(job *model.IngestionJob, doc *model.Document, cause error) {
	log.Printf("Ingestion failed: job=%s document=%s error=%v", job.ID, doc.ID, cause)

	finished := time.Now()
	job.Status = model.JobStatusError
	job.RetryCount++
	job.ErrorMessage = truncateError(cause.Error())
	job.FinishedAt = &finished
	if err := s.db.Save(job).Error; err != nil {
		log.Printf("Failed to persist job failure for %s: %v", job.ID, err)
	}

	doc.Status = model.DocumentStatusError
	if err := s.db.Save(doc).Error; err != nil {
		log.Printf("Failed to persist document failure for %s: %v", doc.ID, err)
	}
}

func truncateError(msg string) string {
	if len(msg) > maxJobErrorLength {
		return msg[:maxJobErrorLength]
	}
	return msg
}

// GetJob returns an owner-scoped ingestion job for status polling.
func (s *DocumentService) GetJob(ownerID, jobID string) (*model.IngestionJob, error) {
	var job model.IngestionJob
	if err := s.db.Where("id = ? AND owner_id = ?", jobID, ownerID).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("ingestion job not found")
		}
		return nil, fmt.Errorf("failed to fetch ingestion job: %w", err)
	}
	return &job, nil
}

// readAllLimited reads at most limit bytes, enough for the caller to tell
// an oversized object apart from one at the cap.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
