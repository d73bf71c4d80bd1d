package main

import (
	"context"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/innkeep/innkeep-api/internal/config"
	"github.com/innkeep/innkeep-api/internal/domain/media"
	"github.com/innkeep/innkeep-api/internal/pkg/database"
	"github.com/innkeep/innkeep-api/internal/pkg/logger"
	"github.com/innkeep/innkeep-api/internal/pkg/storage"
)

// listPageSize is how many objects one listing page requests.
const listPageSize = 500

// The sweeper reconciles blob storage against the metadata store: any blob
// whose record is gone and which is older than the grace period gets removed.
// It runs on an interval and also wakes immediately when the API publishes a
// deletion notification.
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

	sw := &sweeper{
		repo:  media.NewRepository(db),
		store: store,
		grace: cfg.OrphanGrace,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wake := make(chan struct{}, 1)
	if rdb != nil {
		sub := rdb.Subscribe(ctx, media.SweepChannel)
		defer sub.Close()
		go func() {
			for range sub.Channel() {
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}()
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.SweepInterval).
		Dur("grace", cfg.OrphanGrace).
		Msg("Starting media sweeper")

	sw.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
		case <-wake:
		}
		sw.sweep(ctx)
	}
}

type sweeper struct {
	repo  media.Repository
	store storage.Storage
	grace time.Duration
}

// sweep walks the whole bucket page by page and removes orphaned blobs.
// Lookup errors skip the object; a live record must never be swept on a
// transient database failure.
func (s *sweeper) sweep(ctx context.Context) {
	started := time.Now()
	var scanned, orphans int
	var toDelete []string

	cursor := ""
	for {
		page, err := s.store.List(ctx, "", cursor, listPageSize)
		if err != nil {
			log.Error().Err(err).Msg("Listing failed, aborting sweep")
			return
		}

		for _, obj := range page.Items {
			scanned++
			if time.Since(obj.LastModified) < s.grace {
				continue
			}

			id := imageIDFromKey(obj.Key)
			if id == "" {
				continue
			}

			img, err := s.repo.GetByID(ctx, id)
			if err != nil {
				log.Warn().Err(err).Str("key", obj.Key).Msg("Record lookup failed, skipping object")
				continue
			}
			if img == nil {
				toDelete = append(toDelete, obj.URL)
			}
		}

		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	if len(toDelete) > 0 {
		result := storage.DeleteBatch(ctx, s.store, toDelete)
		orphans = len(result.Successful)
		if len(result.Failed) > 0 {
			log.Warn().Int("failed", len(result.Failed)).Msg("Some orphans could not be removed")
		}
	}

	log.Info().
		Int("scanned", scanned).
		Int("removed", orphans).
		Dur("took", time.Since(started)).
		Msg("Sweep complete")
}

// imageIDFromKey extracts the owning image id from a blob key. Primary keys
// end in {id}{ext}, thumbnail keys in {id}_{w}x{h}{ext}; both start the
// filename with the record's UUID.
func imageIDFromKey(key string) string {
	base := path.Base(key)
	if len(base) < 36 {
		return ""
	}
	candidate := base[:36]
	if _, err := uuid.Parse(candidate); err != nil {
		return ""
	}
	return candidate
}

func buildStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.RemoteStorageConfigured() {
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
	}
	return storage.NewLocalStorage(cfg.MediaBasePath, cfg.MediaBaseURL)
}
