package services

import (
	"fmt"
	"log"
	"os"
	"time"

	model "github.com/grantline/HousingCopilot/models"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultMaxIngestBytes = 10 << 20 // 10 MiB cap on a single document

const uploadURLExpiry = 15 * time.Minute

// DocumentService owns the evidence-document lifecycle: presigned uploads,
// the ingestion pipeline, retrieval, suggestions, and audits.
type DocumentService struct {
	db             *gorm.DB
	s3Client       *s3.S3
	esClient       *elasticsearch.Client
	bucket         string
	hasVector      bool
	maxIngestBytes int64
}

// NewDocumentService initializes the service with an S3 client, an optional
// Elasticsearch client, and the pgvector capability flag.
func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	region := os.Getenv("S3_REGION")
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	bucket := os.Getenv("S3_BUCKET")

	if region == "" || endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("missing required S3 configuration environment variables")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(endpoint),
		DisableSSL:       aws.Bool(false),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	// Initialize Elasticsearch client (optional capability)
	esURL := os.Getenv("ELASTICSEARCH_URL")
	var esClient *elasticsearch.Client
	if esURL != "" {
		esConfig := elasticsearch.Config{
			Addresses: []string{esURL},
		}
		esClient, err = elasticsearch.NewClient(esConfig)
		if err != nil {
			log.Printf("Warning: Failed to create Elasticsearch client: %v", err)
			esClient = nil
		}
	}

	maxBytes := int64(defaultMaxIngestBytes)
	if v := os.Getenv("INGESTION_MAX_BYTES"); v != "" {
		var parsed int64
		if _, err := fmt.Sscan(v, &parsed); err == nil && parsed > 0 {
			maxBytes = parsed
		}
	}

	return &DocumentService{
		db:             db,
		s3Client:       s3.New(sess),
		esClient:       esClient,
		bucket:         bucket,
		hasVector:      ProbeVectorCapability(db),
		maxIngestBytes: maxBytes,
	}, nil
}

// UploadTicket is the response to an upload-url request: the created
// document record plus a presigned PUT the client uploads to directly.
type UploadTicket struct {
	DocumentID      string            `json:"document_id"`
	UploadURL       string            `json:"upload_url"`
	RequiredHeaders map[string]string `json:"required_headers"`
	ExpiresAt       time.Time         `json:"expires_at"`
}

// CreateUploadURL creates the pending document row and issues a presigned
// upload URL for it.
func (s *DocumentService) CreateUploadURL(ownerID, filename, docType, contentType string, sizeBytes int64) (*UploadTicket, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if !model.IsValidDocType(docType) {
		return nil, fmt.Errorf("unknown doc type %q", docType)
	}
	if sizeBytes > s.maxIngestBytes {
		return nil, fmt.Errorf("file exceeds ingestion size limit of %d bytes", s.maxIngestBytes)
	}

	objectKey := fmt.Sprintf("housing-docs/%s/%d-%s", ownerID, time.Now().Unix(), filename)

	doc := model.Document{
		OwnerID:     ownerID,
		Filename:    filename,
		DocType:     docType,
		Status:      model.DocumentStatusPending,
		StoragePath: objectKey,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
	}
	if err := s.db.Create(&doc).Error; err != nil {
		log.Printf("ERROR saving document to database: %v", err)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	req, _ := s.s3Client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	})
	uploadURL, err := req.Presign(uploadURLExpiry)
	if err != nil {
		log.Printf("ERROR generating presigned upload URL: %v", err)
		return nil, fmt.Errorf("failed generating upload URL: %w", err)
	}

	return &UploadTicket{
		DocumentID:      doc.ID,
		UploadURL:       uploadURL,
		RequiredHeaders: map[string]string{"Content-Type": contentType},
		ExpiresAt:       time.Now().Add(uploadURLExpiry),
	}, nil
}

// CompleteUpload verifies the uploaded object, marks the document uploaded,
// and enqueues the ingestion job. A duplicated completion call for the same
// document reuses the still-pending job instead of enqueueing a second one.
func (s *DocumentService) CompleteUpload(ownerID, documentID, etag string) (*model.Document, *model.IngestionJob, error) {
	var doc model.Document
	if err := s.db.Where("id = ? AND owner_id = ?", documentID, ownerID).First(&doc).Error; err != nil {
		return nil, nil, fmt.Errorf("document not found: %w", err)
	}

	head, err := s.s3Client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(doc.StoragePath),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed reading uploaded object metadata: %w", err)
	}
	if head.ContentLength != nil {
		doc.SizeBytes = *head.ContentLength
	}
	if doc.SizeBytes > s.maxIngestBytes {
		return nil, nil, fmt.Errorf("uploaded object exceeds ingestion size limit of %d bytes", s.maxIngestBytes)
	}
	if etag == "" && head.ETag != nil {
		etag = *head.ETag
	}

	doc.Etag = etag
	doc.Status = model.DocumentStatusUploaded
	doc.UpdatedAt = time.Now()
	if err := s.db.Save(&doc).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to update document: %w", err)
	}

	// Reuse a job that has not finished yet; a stale duplicate trigger must
	// not start concurrent processing of the same upload.
	var job model.IngestionJob
	err = s.db.Where("document_id = ? AND status IN ?", doc.ID,
		[]string{model.JobStatusQueued, model.JobStatusRunning}).First(&job).Error
	if err == nil {
		log.Printf("CompleteUpload: reusing pending job %s for document %s", job.ID, doc.ID)
		return &doc, &job, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, nil, fmt.Errorf("failed to look up ingestion job: %w", err)
	}

	job = model.IngestionJob{
		DocumentID:     doc.ID,
		OwnerID:        ownerID,
		Status:         model.JobStatusQueued,
		IdempotencyKey: fmt.Sprintf("%s-%s", doc.ID, uuid.NewString()),
	}
	if err := s.db.Create(&job).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create ingestion job: %w", err)
	}
	log.Printf("CompleteUpload: document %s uploaded, job %s queued", doc.ID, job.ID)
	return &doc, &job, nil
}

// DocumentSummary is a listing row: the document plus the latest job error
// for documents that failed ingestion.
type DocumentSummary struct {
	model.Document
	LastError string `json:"last_error,omitempty"`
}

// ListDocuments returns the owner's documents, newest first.
func (s *DocumentService) ListDocuments(ownerID string) ([]DocumentSummary, error) {
	var docs []model.Document
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&docs).Error; err != nil {
		log.Printf("ListDocuments: database query error: %v", err)
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}

	summaries := make([]DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		summary := DocumentSummary{Document: doc}
		if doc.Status == model.DocumentStatusError {
			var job model.IngestionJob
			if err := s.db.Where("document_id = ?", doc.ID).
				Order("created_at desc").First(&job).Error; err == nil {
				summary.LastError = job.ErrorMessage
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// DeleteDocument removes the document and its chunks. Storage and index
// cleanup failures are logged and swallowed: the data record always goes.
func (s *DocumentService) DeleteDocument(ownerID, documentID string) error {
	var doc model.Document
	if err := s.db.Where("id = ? AND owner_id = ?", documentID, ownerID).First(&doc).Error; err != nil {
		return fmt.Errorf("document not found: %w", err)
	}

	if err := s.db.Where("document_id = ?", doc.ID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	if err := s.db.Delete(&doc).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if doc.StoragePath != "" {
		_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(doc.StoragePath),
		})
		if err != nil {
			log.Printf("Object deletion failed for %s: %v", doc.StoragePath, err)
		}
	}
	s.removeChunksFromSearchIndex(doc.ID)

	log.Printf("Document %s deleted for owner %s", doc.ID, ownerID)
	return nil
}

// ResolveDocumentSet resolves the effective candidate set for retrieval:
// the owner's ready documents, intersected with the requested ids when any
// were supplied. An empty result is the caller's hard precondition failure.
func (s *DocumentService) ResolveDocumentSet(ownerID string, requestedIDs []string) ([]model.Document, error) {
	query := s.db.Where("owner_id = ? AND status = ?", ownerID, model.DocumentStatusReady)
	if len(requestedIDs) > 0 {
		query = query.Where("id IN ?", requestedIDs)
	}

	var docs []model.Document
	if err := query.Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve document set: %w", err)
	}
	return docs, nil
}

// CountReadyDocuments returns the number of ready documents for the owner.
func (s *DocumentService) CountReadyDocuments(ownerID string) (int, error) {
	var count int64
	err := s.db.Model(&model.Document{}).
		Where("owner_id = ? AND status = ?", ownerID, model.DocumentStatusReady).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count ready documents: %w", err)
	}
	return int(count), nil
}

// fetchObjectBytes downloads the raw document bytes from storage.
func (s *DocumentService) fetchObjectBytes(storagePath string) ([]byte, error) {
	result, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storagePath),
	})
	if err != nil {
		return nil, fmt.Errorf("failed downloading object %s: %w", storagePath, err)
	}
	defer result.Body.Close()

	body, err := readAllLimited(result.Body, s.maxIngestBytes+1)
	if err != nil {
		return nil, fmt.Errorf("failed reading object %s: %w", storagePath, err)
	}
	return body, nil
}
