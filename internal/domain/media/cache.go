package media

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	cacheKeyPrefix = "media:image:"
	cacheTTL       = 5 * time.Minute

	// SweepChannel wakes the orphan sweeper after record deletions.
	SweepChannel = "media:deleted"
)

// Cache is a read-through Redis cache in front of the metadata store on the
// delivery path. All methods are nil-safe: with no Redis client every lookup
// is a miss and writes are no-ops.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a metadata cache. rdb may be nil.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get returns the cached record for an id, or nil on a miss.
func (c *Cache) Get(ctx context.Context, id string) *Image {
	if c == nil || c.rdb == nil {
		return nil
	}

	data, err := c.rdb.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err != nil {
		return nil
	}

	var img Image
	if err := json.Unmarshal(data, &img); err != nil {
		// Poisoned entry; drop it
		c.rdb.Del(ctx, cacheKeyPrefix+id)
		return nil
	}
	return &img
}

// Set stores a record for the cache TTL. Failures are logged, never surfaced.
func (c *Cache) Set(ctx context.Context, img *Image) {
	if c == nil || c.rdb == nil || img == nil {
		return
	}

	data, err := json.Marshal(img)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+img.ID, data, cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("image_id", img.ID).Msg("Failed to cache image metadata")
	}
}

// Invalidate drops a record from the cache.
func (c *Cache) Invalidate(ctx context.Context, id string) {
	if c == nil || c.rdb == nil {
		return
	}
	c.rdb.Del(ctx, cacheKeyPrefix+id)
}

// NotifySweeper publishes a wake-up for the orphan sweeper.
func (c *Cache) NotifySweeper(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Publish(ctx, SweepChannel, "1").Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to publish sweeper wake-up")
	}
}
