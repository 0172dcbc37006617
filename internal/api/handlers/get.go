package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUpload returns the upload's current state, preferring the live
// in-memory copy for in-flight uploads.
func (h *Handler) GetUpload(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id := c.Param("id")

	u, found, err := h.Svc.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found || u.ClientID != clientID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload": u})
}

// ListUploads returns every upload owned by the caller.
func (h *Handler) ListUploads(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	uploads, err := h.Svc.List(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploads": uploads})
}
