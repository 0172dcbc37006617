package api

import (
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"

	"github.com/File-Sharing-BondBridg/Upload-Service/cmd/middleware"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/api/handlers"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PATCH, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-Id")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler) {
	r.Use(gintrace.Middleware("upload-service"))
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		uploads := api.Group("/uploads", middleware.RequireClient())
		{
			uploads.POST("", h.CreateUpload)                 // create an upload record
			uploads.GET("", h.ListUploads)                   // list caller's uploads
			uploads.GET("/:id", h.GetUpload)                 // upload status (live when in flight)
			uploads.POST("/:id/content", h.ProcessUpload)    // stream content through the lifecycle
			uploads.POST("/:id/complete", h.CompleteUpload)  // confirm resumable transfer
			uploads.POST("/:id/cancel", h.CancelUpload)      // cancel an active upload
			uploads.GET("/:id/download", h.DownloadUpload)   // download stored content
			uploads.DELETE("/:id", h.DeleteUpload)           // delete record + object
		}
	}
}
