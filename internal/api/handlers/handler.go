package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/repository"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/storage"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/upload"
)

// EventPublisher publishes upload events to interested consumers.
// Implemented by the NATS client; nil-safe via the handler's checks.
type EventPublisher interface {
	Publish(subject string, payload interface{}) error
}

// Handler holds the orchestrator and its collaborators for the HTTP
// surface. Built once in main and passed to route registration.
type Handler struct {
	Svc       *upload.Service
	Store     storage.ObjectStorage
	Repo      repository.Repository
	Validator *upload.Validator
	Events    EventPublisher
	ClamAVURL string
}

func NewHandler(svc *upload.Service, store storage.ObjectStorage, repo repository.Repository, validator *upload.Validator, events EventPublisher, clamAVURL string) *Handler {
	return &Handler{
		Svc:       svc,
		Store:     store,
		Repo:      repo,
		Validator: validator,
		Events:    events,
		ClamAVURL: clamAVURL,
	}
}

// respondError maps orchestrator error kinds onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validationErr *upload.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.Is(err, upload.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func clientIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get("client_id")
	if !ok {
		return "", false
	}
	clientID, ok := v.(string)
	return clientID, ok && clientID != ""
}
