package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/innkeep/innkeep-api/internal/config"
	"github.com/innkeep/innkeep-api/internal/domain/gallery"
	"github.com/innkeep/innkeep-api/internal/domain/media"
	"github.com/innkeep/innkeep-api/internal/middleware"
	"github.com/innkeep/innkeep-api/internal/pkg/database"
	"github.com/innkeep/innkeep-api/internal/pkg/imaging"
	"github.com/innkeep/innkeep-api/internal/pkg/jwt"
	"github.com/innkeep/innkeep-api/internal/pkg/logger"
	"github.com/innkeep/innkeep-api/internal/pkg/response"
	"github.com/innkeep/innkeep-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	store, err := buildStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage backend")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	processor := imaging.NewProcessor(imaging.DefaultConfig())

	mediaRepo := media.NewRepository(db)
	mediaCache := media.NewCache(rdb)
	mediaSvc := media.NewService(mediaRepo, store, processor, mediaCache, media.Config{
		MaxFileSize:        cfg.MaxFileSize,
		MaxFilesPerRequest: cfg.MaxFilesPerRequest,
		AllowedMimeTypes:   cfg.AllowedMimeTypes,
		CacheMaxAgeSeconds: cfg.CacheMaxAgeSeconds,
		Workers:            cfg.UploadWorkers,
		RemoteStorage:      cfg.RemoteStorageConfigured(),
	})
	mediaDelivery := media.NewDelivery(mediaSvc, store, processor, cfg.CacheMaxAgeSeconds)
	mediaHandler := media.NewHandler(mediaSvc, mediaDelivery)

	gallerySvc := gallery.NewService(gallery.NewRepository(db))
	galleryHandler := gallery.NewHandler(gallerySvc)

	auth := middleware.Auth(jwtService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "database": "ok", "redis": "disabled"}
		if err := db.PingContext(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = "down"
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["status"] = "degraded"
				status["redis"] = "down"
			}
		}
		response.OK(w, status)
	})

	r.Route("/api/v1", func(r chi.Router) {
		media.RegisterRoutes(r, mediaHandler, auth)
		gallery.RegisterRoutes(r, galleryHandler, auth)
	})

	// Local backend blobs are reachable directly by their public URLs
	if !cfg.RemoteStorageConfigured() {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaBasePath))))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server stopped")
}

// buildStorage selects the blob backend: R2 when full credentials are
// configured, the local filesystem otherwise.
func buildStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.RemoteStorageConfigured() {
		log.Info().Str("bucket", cfg.R2BucketName).Msg("Using R2 storage backend")
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
	}

	log.Info().Str("path", cfg.MediaBasePath).Msg("Using local storage backend")
	return storage.NewLocalStorage(cfg.MediaBasePath, cfg.MediaBaseURL)
}
