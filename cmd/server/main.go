package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/File-Sharing-BondBridg/Upload-Service/cmd/middleware"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/api"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/configuration"
	natsclient "github.com/File-Sharing-BondBridg/Upload-Service/internal/nats"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/repository"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/storage"
	"github.com/File-Sharing-BondBridg/Upload-Service/internal/upload"
)

func main() {
	cfg := configuration.Load()

	tracer.Start(tracer.WithService("upload-service"))
	defer tracer.Stop()

	store, err := storage.NewMinioStorage(
		cfg.MinIO.Endpoint,
		cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey,
		cfg.MinIO.BucketName,
		cfg.MinIO.UseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	repo, err := buildRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}

	tracker := upload.NewTracker()
	compressor := upload.NewCompressor()
	svc := upload.NewService(store, repo, compressor, tracker,
		upload.WithRetryPolicy(cfg.Upload.MaxRetries, 500*time.Millisecond))

	if err := middleware.InitAuth(cfg.KeycloakUrl); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	var events handlers.EventPublisher
	nc, err := natsclient.NewClient(cfg.NATSURL)
	if err != nil {
		log.Printf("Warning: NATS unavailable, transfer events disabled: %v", err)
	} else {
		defer nc.Close()
		events = nc
	}

	h := handlers.NewHandler(svc, store, repo, upload.NewValidator(), events, cfg.CLAMAVURL)

	if nc != nil {
		if err := nc.SubscribeAll(natsclient.Routes(h)); err != nil {
			log.Fatalf("Failed to subscribe to NATS subjects: %v", err)
		}
	}

	startCleanupSweep(svc)
	setupGracefulShutdown()

	r := gin.Default()
	api.RegisterRoutes(r, h)

	log.Printf("Server starting on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildRepository(cfg *configuration.Config) (repository.Repository, error) {
	if cfg.Upload.RepositoryBackend == "postgres" {
		return repository.NewPostgresRepository(cfg.Database.ConnectionString())
	}
	return repository.NewCSVRepository(cfg.Upload.CSVPath)
}

// startCleanupSweep runs the expiry sweep hourly.
func startCleanupSweep(svc *upload.Service) {
	ticker := time.NewTicker(time.Hour)
	go func() {
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			if err := svc.CleanupExpired(ctx); err != nil {
				log.Printf("[CLEANUP] sweep failed: %v", err)
			}
			cancel()
		}
	}()
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down gracefully...")
		// Repository state is persisted on every operation, nothing to flush.
		os.Exit(0)
	}()
}
