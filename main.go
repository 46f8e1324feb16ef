package main

import (
	"log"
	"net/http"

	controller "github.com/grantline/HousingCopilot/controller"
	"github.com/grantline/HousingCopilot/initializers"
	middleware "github.com/grantline/HousingCopilot/middleware"
	service "github.com/grantline/HousingCopilot/service"

	"github.com/gin-gonic/gin"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Printf("No .env file loaded: %s", err)
	}
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
}

func main() {
	docService, err := service.NewDocumentService(initializers.DB)
	if err != nil {
		log.Fatalf("Failed to initialize document service: %s", err)
	}

	docController := controller.NewDocumentController(docService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.GlobalRateLimiter.Limit())

	// Healthcheck endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/form-schema", docController.GetFormSchema)

	// All data routes are owner-scoped
	api := router.Group("/", middleware.RequireOwner())

	api.POST("/documents/upload-url",
		middleware.UploadRateLimiter.Limit(),
		docController.CreateUploadURL)
	api.POST("/documents/:id/complete",
		middleware.UploadRateLimiter.Limit(),
		docController.CompleteUpload)
	api.GET("/documents", docController.ListDocuments)
	api.DELETE("/documents/:id", docController.DeleteDocument)
	api.GET("/jobs/:id", docController.GetJob)

	api.GET("/search", docController.SearchDocuments)

	// LLM-backed endpoints with stricter rate limiting
	api.POST("/suggest",
		middleware.SuggestRateLimiter.Limit(),
		docController.Suggest)
	api.POST("/suggest-all",
		middleware.SuggestRateLimiter.Limit(),
		docController.SuggestAll)

	api.POST("/preview-audit", docController.PreviewAudit)
	api.POST("/submissions", docController.CreateSubmission)
	api.GET("/submissions", docController.ListSubmissions)
	api.GET("/submissions/:id", docController.GetSubmission)

	router.Run(":8080")
}
