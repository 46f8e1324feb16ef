package controller

import (
	"log"
	"net/http"

	service "github.com/grantline/HousingCopilot/service"

	"github.com/gin-gonic/gin"
)

type auditRequest struct {
	FormData  map[string]string                 `json:"form_data"`
	FieldMeta map[string]service.FieldAuditMeta `json:"field_meta"`
}

// PreviewAudit runs the deterministic audit without persisting anything.
func (dc *DocumentController) PreviewAudit(ctx *gin.Context) {
	var req auditRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	readyDocs, err := dc.service.CountReadyDocuments(ownerID(ctx))
	if err != nil {
		log.Printf("PreviewAudit: failed to count documents: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run audit"})
		return
	}

	result := service.RunAudit(req.FormData, req.FieldMeta, readyDocs)
	ctx.JSON(http.StatusOK, result)
}

// CreateSubmission snapshots the form with its audit report.
func (dc *DocumentController) CreateSubmission(ctx *gin.Context) {
	var req auditRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submission, report, err := dc.service.CreateSubmission(ownerID(ctx), req.FormData, req.FieldMeta)
	if err != nil {
		log.Printf("CreateSubmission failed: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save submission"})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"submission": submission,
		"audit":      report,
	})
}

// ListSubmissions returns the caller's submissions.
func (dc *DocumentController) ListSubmissions(ctx *gin.Context) {
	submissions, err := dc.service.ListSubmissions(ownerID(ctx))
	if err != nil {
		log.Printf("ListSubmissions failed: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve submissions"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"submissions": submissions,
		"total":       len(submissions),
	})
}

// GetSubmission returns one submission with its stored audit report.
func (dc *DocumentController) GetSubmission(ctx *gin.Context) {
	submission, report, err := dc.service.GetSubmission(ownerID(ctx), ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"submission": submission,
		"audit":      report,
	})
}
