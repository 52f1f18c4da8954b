package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/motorscan/carhealth/internal/checklist"
	"github.com/motorscan/carhealth/internal/storage"
	"github.com/motorscan/carhealth/internal/types/media"
)

// ValidationCache wraps storage with a Redis-backed cache of the
// per-car required-media result. The validate endpoint is polled by
// clients while uploads are in flight, so the hot path avoids a media
// listing per poll.
type ValidationCache struct {
	storage storage.Storage
	redis   *redis.Client
}

func NewValidationCache(st storage.Storage, redisClient *redis.Client) *ValidationCache {
	return &ValidationCache{
		storage: st,
		redis:   redisClient,
	}
}

// Cache key patterns
const (
	validationKey = "media:validation:%s" // media:validation:carID
	mediaListKey  = "media:list:%s"       // media:list:carID
)

// Cache durations. Validation is deliberately short-lived: pollers
// tolerate staleness but not minutes of it.
const (
	validationCacheDuration = 45 * time.Second
	mediaListCacheDuration  = 30 * time.Second
)

// Validation returns the cached required-media result for a car, or
// recomputes it from the media listing.
func (c *ValidationCache) Validation(ctx context.Context, carID string) (media.ValidationResult, error) {
	key := fmt.Sprintf(validationKey, carID)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var result media.ValidationResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return result, nil
		}
	}

	assets, err := c.storage.ListMediaByCar(carID)
	if err != nil {
		return media.ValidationResult{}, err
	}

	result := checklist.Evaluate(assets).ToValidationResult()

	data, _ := json.Marshal(result)
	c.redis.Set(ctx, key, data, validationCacheDuration)

	return result, nil
}

// MediaList returns the cached media listing for a car, or fetches it
// from storage.
func (c *ValidationCache) MediaList(ctx context.Context, carID string) ([]media.Media, error) {
	key := fmt.Sprintf(mediaListKey, carID)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var assets []media.Media
		if err := json.Unmarshal([]byte(cached), &assets); err == nil {
			return assets, nil
		}
	}

	assets, err := c.storage.ListMediaByCar(carID)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(assets)
	c.redis.Set(ctx, key, data, mediaListCacheDuration)

	return assets, nil
}

// InvalidateCar clears the cached entries for a car. Called whenever
// its media set changes: registration, proxy upload, deletion.
func (c *ValidationCache) InvalidateCar(ctx context.Context, carID string) {
	c.redis.Del(ctx,
		fmt.Sprintf(validationKey, carID),
		fmt.Sprintf(mediaListKey, carID),
	)
}
