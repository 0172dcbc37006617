package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/api/handlers"
)

// Routes maps event subjects to their handlers, loaded once at startup.
func Routes(h *handlers.Handler) map[string]nats.MsgHandler {
	return map[string]nats.MsgHandler{
		// The resumable-transfer layer announces fully assembled uploads.
		"uploads.transfer.completed": h.HandleTransferCompleted,
	}
}
