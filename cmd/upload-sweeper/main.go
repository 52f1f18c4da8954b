package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/motorscan/carhealth/internal/config"
	"github.com/motorscan/carhealth/internal/storage/postgres"
)

// UploadSweeper retires upload authorizations that were issued but
// never used. A row whose presigned URL has expired and whose file
// never arrived is dead weight in every media listing.
//
// Bytes that reached storage but were never registered are out of
// scope: without a registration call there is no reliable link back to
// the row, so those objects are left for operators.
type UploadSweeper struct {
	storage  *postgres.Postgres
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewUploadSweeper(storage *postgres.Postgres, maxAge, interval time.Duration) *UploadSweeper {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &UploadSweeper{
		storage:  storage,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

func (us *UploadSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(us.interval)
	defer ticker.Stop()

	us.logger.Info("Upload sweeper started",
		"interval", us.interval.String(),
		"max_age", us.maxAge.String())

	// Run once immediately on startup
	us.sweepAbandonedUploads()

	for {
		select {
		case <-ctx.Done():
			us.logger.Info("Upload sweeper shutting down")
			return
		case <-ticker.C:
			us.sweepAbandonedUploads()
		}
	}
}

func (us *UploadSweeper) sweepAbandonedUploads() {
	startTime := time.Now()

	us.logger.Info("Starting abandoned upload cleanup")

	count, err := us.storage.DeleteAbandonedUploads(us.maxAge)
	if err != nil {
		us.logger.Error("Failed to sweep abandoned uploads",
			"error", err.Error(),
			"duration_ms", time.Since(startTime).Milliseconds())
		return
	}

	duration := time.Since(startTime)

	us.logger.Info("Completed abandoned upload cleanup",
		"uploads_deleted", count,
		"duration_ms", duration.Milliseconds(),
		"duration", duration.String())
}

func main() {
	// Load config
	cfg := config.MustLoad()

	// Initialize database connection
	storage, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	slog.Info("Connected to Postgres database")

	// Rows become sweepable once their presigned URL can no longer be
	// used, plus slack for transfers that started near expiry.
	maxAge := time.Duration(cfg.Media.PresignedURLTTL)*time.Second + 10*time.Minute

	sweeper := NewUploadSweeper(storage, maxAge, 5*time.Minute)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	// Start the sweeper
	sweeper.Start(ctx)

	slog.Info("Upload sweeper stopped")
}
