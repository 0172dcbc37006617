package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DownloadUpload streams the stored object back to the caller,
// transparently decompressed when the compression gate acted on it.
func (h *Handler) DownloadUpload(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id := c.Param("id")

	rc, u, err := h.Svc.Download(c.Request.Context(), id, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+u.FileName)
	c.Header("Content-Type", u.ContentType)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.Printf("warning: failed to stream upload %s: %v", id, err)
	}
}
