package handlers

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/api/handlers/util"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/models"
)

// ProcessUpload streams the upload's content through the orchestrator:
// compression when warranted, then transfer to object storage. Accepts
// either a multipart "file" part or a raw request body.
func (h *Handler) ProcessUpload(c *gin.Context) {
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

	stream, size, err := h.contentStream(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if size <= 0 {
		size = u.FileSize
	}

	// Sniff the first line without consuming the stream.
	br := bufio.NewReaderSize(stream, 64*1024)
	head, _ := br.Peek(4 * 1024)
	if err := h.Validator.ValidateFile(u.FileName, u.ContentType, size, bytes.NewReader(head)); err != nil {
		respondError(c, err)
		return
	}

	processed, err := h.Svc.Process(c.Request.Context(), id, br)
	if err != nil {
		respondError(c, err)
		return
	}

	h.publishCompleted(processed)
	if h.ClamAVURL != "" {
		go util.ScanUpload(h.Svc, h.Store, processed.ID, processed.StorageLocation, h.ClamAVURL)
	}

	c.JSON(http.StatusOK, gin.H{"upload": processed})
}

// contentStream picks the multipart "file" part when present, the raw
// body otherwise.
func (h *Handler) contentStream(c *gin.Context) (io.Reader, int64, error) {
	if fh, err := c.FormFile("file"); err == nil && fh != nil {
		f, err := fh.Open()
		if err != nil {
			return nil, 0, err
		}
		// The request ends before the handler returns; gin closes
		// multipart temp files with the request.
		return f, fh.Size, nil
	}
	return c.Request.Body, c.Request.ContentLength, nil
}

func (h *Handler) publishCompleted(u models.Upload) {
	if h.Events == nil {
		return
	}
	event := map[string]interface{}{
		"action":        "completed",
		"upload_id":     u.ID,
		"client_id":     u.ClientID,
		"file_name":     u.FileName,
		"size":          u.FileSize,
		"is_compressed": u.IsCompressed,
		"location":      u.StorageLocation,
		"completed_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Events.Publish("uploads.completed", event); err != nil {
		log.Printf("warning: failed to publish uploads.completed event: %v", err)
	}
}
