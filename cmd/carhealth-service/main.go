package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/motorscan/carhealth/internal/cache"
	"github.com/motorscan/carhealth/internal/config"
	"github.com/motorscan/carhealth/internal/events"
	"github.com/motorscan/carhealth/internal/http/handlers/cars"
	mediaHandlers "github.com/motorscan/carhealth/internal/http/handlers/media"
	wsHandler "github.com/motorscan/carhealth/internal/http/handlers/websocket"
	"github.com/motorscan/carhealth/internal/http/middleware"
	blobService "github.com/motorscan/carhealth/internal/services/media"
	"github.com/motorscan/carhealth/internal/storage/postgres"
	"github.com/motorscan/carhealth/internal/websocket"
)

func main() {
	// load config
	cfg := config.MustLoad()

	// database setup
	storage, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	slog.Info("Connected to Postgres database")

	// redis setup
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	slog.Info("Connected to Redis")

	// blob storage setup
	blobs, err := blobService.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize blob storage:", err)
	}
	slog.Info("Connected to MinIO", slog.String("bucket", cfg.MinIO.BucketName))

	// websocket hub for real-time pipeline events
	hub := websocket.NewHub()
	go hub.Run()
	publisher := events.NewEventPublisher(hub)

	validationCache := cache.NewValidationCache(storage, redisClient)

	carHandlers := cars.NewCarHandlers(storage, validationCache, publisher)
	mh := mediaHandlers.NewMediaHandlers(storage, blobs, validationCache, publisher, &cfg.Media)

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	rateLimits := middleware.NewRateLimitConfig(redisClient)

	// setup server
	router := http.NewServeMux()

	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	router.Handle("POST /cars", auth(carHandlers.Create()))
	router.Handle("GET /cars", auth(carHandlers.List()))
	router.Handle("GET /cars/{carId}", auth(carHandlers.Get()))
	router.Handle("PUT /cars/{carId}", auth(carHandlers.Update()))
	router.Handle("POST /cars/{carId}/submit", auth(carHandlers.Submit()))

	router.Handle("POST /cars/{carId}/media/upload-request",
		auth(rateLimits.RateLimitedHandler(middleware.ActionUploadRequest, mh.UploadRequest())))
	router.Handle("PUT /cars/{carId}/media/{mediaId}/register", auth(mh.Register()))
	router.Handle("POST /cars/{carId}/media/{mediaId}/upload",
		auth(rateLimits.RateLimitedHandler(middleware.ActionProxyUpload, mh.ProxyUpload())))
	router.Handle("GET /cars/{carId}/media", auth(mh.List()))
	router.Handle("GET /cars/{carId}/media/validate", auth(mh.Validate()))
	router.Handle("GET /cars/{carId}/media/checklist", auth(mh.Checklist()))
	router.Handle("DELETE /cars/{carId}/media/{mediaId}", auth(mh.Delete()))
	router.Handle("POST /cars/{carId}/media/{mediaId}/replace",
		auth(rateLimits.RateLimitedHandler(middleware.ActionUploadRequest, mh.Replace())))

	router.HandleFunc("GET /ws", wsHandler.WebSocketHandler(hub, cfg.JWTSecret))

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = server.Shutdown(ctx)
	if err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}
