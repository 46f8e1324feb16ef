package controller

import (
	"errors"
	"log"
	"net/http"

	"github.com/grantline/HousingCopilot/middleware"
	service "github.com/grantline/HousingCopilot/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DocumentController struct {
	service *service.DocumentService
}

// NewDocumentController initializes the controller with the service
func NewDocumentController(service *service.DocumentService) *DocumentController {
	return &DocumentController{service}
}

func ownerID(ctx *gin.Context) string {
	return ctx.GetString(middleware.OwnerKey)
}

type uploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	DocType     string `json:"doc_type" binding:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// CreateUploadURL issues a presigned upload for a new document.
func (dc *DocumentController) CreateUploadURL(ctx *gin.Context) {
	var req uploadURLRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	ticket, err := dc.service.CreateUploadURL(ownerID(ctx), req.Filename, req.DocType, req.ContentType, req.SizeBytes)
	if err != nil {
		log.Printf("CreateUploadURL failed: %v", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, ticket)
}

type completeUploadRequest struct {
	Etag string `json:"etag"`
}

// CompleteUpload marks the upload finished and kicks off ingestion.
func (dc *DocumentController) CompleteUpload(ctx *gin.Context) {
	documentID := ctx.Param("id")
	var req completeUploadRequest
	// Body is optional; the etag can come from storage instead.
	_ = ctx.ShouldBindJSON(&req)

	owner := ownerID(ctx)
	doc, job, err := dc.service.CompleteUpload(owner, documentID, req.Etag)
	if err != nil {
		log.Printf("CompleteUpload failed for document %s: %v", documentID, err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	// Ingestion runs asynchronously; the client polls the job status.
	go func() {
		if err := dc.service.RunIngestionJob(job.ID, doc.ID, owner); err != nil {
			log.Printf("Ingestion job %s failed: %v", job.ID, err)
		}
	}()

	ctx.JSON(http.StatusAccepted, gin.H{
		"document": doc,
		"job":      job,
	})
}

// GetJob returns ingestion job status for polling.
func (dc *DocumentController) GetJob(ctx *gin.Context) {
	job, err := dc.service.GetJob(ownerID(ctx), ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, job)
}

// ListDocuments returns the caller's documents.
func (dc *DocumentController) ListDocuments(ctx *gin.Context) {
	docs, err := dc.service.ListDocuments(ownerID(ctx))
	if err != nil {
		log.Printf("Error fetching documents: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve documents"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

// DeleteDocument removes a document, its chunks, and the stored object.
func (dc *DocumentController) DeleteDocument(ctx *gin.Context) {
	if err := dc.service.DeleteDocument(ownerID(ctx), ctx.Param("id")); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}

// SearchDocuments runs a keyword query over the caller's indexed chunks.
func (dc *DocumentController) SearchDocuments(ctx *gin.Context) {
	query := ctx.Query("q")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	results, err := dc.service.KeywordSearch(ownerID(ctx), query, 0)
	if err != nil {
		if err == service.ErrSearchUnavailable {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Keyword search is not configured"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Search completed successfully",
		"results": results,
	})
}
