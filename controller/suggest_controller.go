package controller

import (
	"errors"
	"log"
	"net/http"

	service "github.com/grantline/HousingCopilot/service"

	"github.com/gin-gonic/gin"
)

type suggestRequest struct {
	FieldID     string            `json:"field_id" binding:"required"`
	FormData    map[string]string `json:"form_data"`
	DocumentIDs []string          `json:"document_ids"`
}

type suggestAllRequest struct {
	FormData    map[string]string `json:"form_data"`
	DocumentIDs []string          `json:"document_ids"`
}

// Suggest produces a grounded value suggestion for one form field.
func (dc *DocumentController) Suggest(ctx *gin.Context) {
	var req suggestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	suggestion, err := dc.service.SuggestField(ownerID(ctx), req.FieldID, req.FormData, req.DocumentIDs)
	if err != nil {
		respondSuggestError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, suggestion)
}

// SuggestAll runs suggestions for every schema field. Individual field
// failures come back inside their outcomes; the endpoint itself only fails
// on shared preconditions.
func (dc *DocumentController) SuggestAll(ctx *gin.Context) {
	var req suggestAllRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcomes := dc.service.SuggestAllFields(ownerID(ctx), req.FormData, req.DocumentIDs)
	ctx.JSON(http.StatusOK, gin.H{
		"fields": outcomes,
		"total":  len(outcomes),
	})
}

// GetFormSchema returns the fixed application form schema.
func (dc *DocumentController) GetFormSchema(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"fields": service.FormSchema})
}

func respondSuggestError(ctx *gin.Context, err error) {
	log.Printf("Suggestion failed: %v", err)
	switch {
	case errors.Is(err, service.ErrFieldNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoReadyDocuments):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No ready documents to ground a suggestion on. Upload and ingest documents first."})
	case errors.Is(err, service.ErrLLMUnavailable):
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Suggestion provider is not available"})
	case errors.Is(err, service.ErrMalformedLLMOutput):
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "Suggestion provider returned an unusable response"})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
