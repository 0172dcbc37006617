package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateUploadRequest is the creation payload.
type CreateUploadRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type" binding:"required"`
}

// CreateUpload allocates a new upload record in Pending state.
func (h *Handler) CreateUpload(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req CreateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	u, err := h.Svc.Create(c.Request.Context(), clientID, req.FileName, req.FileSize, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"upload": u})
}
