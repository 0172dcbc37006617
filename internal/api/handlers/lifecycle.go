package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CancelUpload cancels a non-terminal upload and best-effort removes
// any partially transferred object.
func (h *Handler) CancelUpload(c *gin.Context) {
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

	if err := h.Svc.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Upload cancelled", "upload_id": id})
}

// CompleteUpload confirms an upload whose bytes arrived through the
// resumable-transfer layer.
func (h *Handler) CompleteUpload(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id := c.Param("id")

	u, err := h.Svc.Complete(c.Request.Context(), id, clientID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload": u})
}

// DeleteUpload removes the upload's object and record. A missing or
// foreign record is a 404, never an error.
func (h *Handler) DeleteUpload(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id := c.Param("id")

	deleted, err := h.Svc.Delete(c.Request.Context(), id, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Upload deleted successfully", "upload_id": id})
}
