package handlers

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"
)

// TransferCompletedEvent is published by the resumable-transfer layer
// once all chunks of an upload have been assembled. TempPath points at
// the assembled artifact on shared local storage; the handler owns its
// removal after handoff.
type TransferCompletedEvent struct {
	UploadID    string `json:"upload_id"`
	ClientID    string `json:"client_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	TempPath    string `json:"temp_path"`
}

// HandleTransferCompleted moves the assembled chunk artifact into object
// storage and confirms completion through the orchestrator.
func (h *Handler) HandleTransferCompleted(msg *nats.Msg) {
	log.Println("[NATS] Received uploads.transfer.completed")

	var event TransferCompletedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("[NATS] uploads.transfer.completed: invalid payload: %v", err)
		return
	}
	if event.UploadID == "" || event.ClientID == "" || event.TempPath == "" {
		log.Printf("[NATS] uploads.transfer.completed: missing fields in payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	f, err := os.Open(event.TempPath)
	if err != nil {
		log.Printf("[NATS] failed to open assembled artifact %s: %v", event.TempPath, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Printf("[NATS] failed to stat assembled artifact %s: %v", event.TempPath, err)
		return
	}

	if _, err := h.Store.Upload(ctx, event.ClientID, event.UploadID, f, info.Size(), event.ContentType, nil); err != nil {
		log.Printf("[NATS] failed to upload assembled artifact for %s: %v", event.UploadID, err)
		return
	}

	u, err := h.Svc.Complete(ctx, event.UploadID, event.ClientID)
	if err != nil {
		log.Printf("[NATS] failed to complete upload %s: %v", event.UploadID, err)
		return
	}
	log.Printf("[NATS] upload %s completed via resumable transfer (status=%s)", u.ID, u.Status)

	// The chunk-reassembly artifact is ours to clean up after handoff.
	if err := os.Remove(event.TempPath); err != nil {
		log.Printf("[NATS] warning: failed to remove artifact %s: %v", event.TempPath, err)
	}

	h.publishCompleted(u)
}
