package util

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	clamd "github.com/dutchcoders/go-clamd"

	"github.com/File-Sharing-BondBridg/Upload-Service/internal/storage"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/upload"
)

// ScanUpload downloads a completed upload's object and runs it through
// ClamAV. Infected uploads are quarantined: the object is deleted and
// the record marked failed with the signature name.
func ScanUpload(svc *upload.Service, store storage.ObjectStorage, uploadID, location, clamAVURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rc, err := store.Download(ctx, location)
	if err != nil {
		log.Println("Failed to download for scanning:", err)
		return
	}
	defer rc.Close()

	tempPath := filepath.Join(os.TempDir(), "scan-"+uploadID)
	f, err := os.Create(tempPath)
	if err != nil {
		log.Println("Failed to create scan temp file:", err)
		return
	}
	defer os.Remove(tempPath)

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		log.Println("Failed to write scan temp file:", err)
		return
	}
	f.Close()

	c := clamd.NewClamd(clamAVURL)
	response, err := c.ScanFile(tempPath)
	if err != nil {
		log.Println("Scan failed:", err)
		return
	}

	for res := range response {
		if res.Status == clamd.RES_FOUND {
			log.Printf("Virus detected in %s: %s", uploadID, res.Description)
			if err := svc.Quarantine(ctx, uploadID, "virus detected: "+res.Description); err != nil {
				log.Println("Failed to quarantine infected upload:", err)
			}
			return
		}
	}

	log.Printf("Scan finished for %s: clean", uploadID)
}
