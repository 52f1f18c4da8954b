package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/motorscan/carhealth/internal/storage"
	"github.com/motorscan/carhealth/internal/types/media"
)

// fakeStorage serves a canned media list and counts how often it is
// consulted, so tests can tell cache hits from misses.
type fakeStorage struct {
	storage.Storage

	assets    []media.Media
	listCalls int
}

func (f *fakeStorage) ListMediaByCar(carID string) ([]media.Media, error) {
	f.listCalls++
	return f.assets, nil
}

func setupCache(t *testing.T, st storage.Storage) (*ValidationCache, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		t.Fatalf("Failed to connect to test Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}

	return NewValidationCache(st, redisClient), mr, cleanup
}

func uploadedPhoto(pt media.PhotoType) media.Media {
	return media.Media{Type: media.TypePhoto, PhotoType: pt, IsUploaded: true}
}

func TestValidation_CachesResult(t *testing.T) {
	st := &fakeStorage{assets: []media.Media{uploadedPhoto(media.PhotoFront)}}
	c, _, cleanup := setupCache(t, st)
	defer cleanup()

	ctx := context.Background()

	first, err := c.Validation(ctx, "car-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !first.CanSubmit || first.IsValid {
		t.Fatalf("Unexpected result: %+v", first)
	}

	second, err := c.Validation(ctx, "car-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second.CompletionPercentage != first.CompletionPercentage {
		t.Fatal("Cached result differs from computed result")
	}

	if st.listCalls != 1 {
		t.Fatalf("Expected one storage hit, got %d", st.listCalls)
	}
}

func TestValidation_ExpiresAndRecomputes(t *testing.T) {
	st := &fakeStorage{}
	c, mr, cleanup := setupCache(t, st)
	defer cleanup()

	ctx := context.Background()

	if _, err := c.Validation(ctx, "car-1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// The media set grows while the cache entry is alive: the stale
	// result keeps being served until the TTL lapses.
	st.assets = []media.Media{uploadedPhoto(media.PhotoFront)}

	result, _ := c.Validation(ctx, "car-1")
	if result.CanSubmit {
		t.Fatal("Expected stale cached result before TTL expiry")
	}

	mr.FastForward(46 * time.Second)

	result, err := c.Validation(ctx, "car-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.CanSubmit {
		t.Fatal("Expected recomputed result after TTL expiry")
	}
	if st.listCalls != 2 {
		t.Fatalf("Expected two storage hits, got %d", st.listCalls)
	}
}

func TestInvalidateCar(t *testing.T) {
	st := &fakeStorage{}
	c, _, cleanup := setupCache(t, st)
	defer cleanup()

	ctx := context.Background()

	if _, err := c.Validation(ctx, "car-1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := c.MediaList(ctx, "car-1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	st.assets = []media.Media{uploadedPhoto(media.PhotoRear)}
	c.InvalidateCar(ctx, "car-1")

	result, err := c.Validation(ctx, "car-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.CanSubmit {
		t.Fatal("Expected fresh result after invalidation")
	}

	assets, err := c.MediaList(ctx, "car-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("Expected fresh media list after invalidation, got %d assets", len(assets))
	}
}

func TestMediaList_CachesResult(t *testing.T) {
	st := &fakeStorage{assets: []media.Media{uploadedPhoto(media.PhotoLeft)}}
	c, _, cleanup := setupCache(t, st)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assets, err := c.MediaList(ctx, "car-1")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(assets) != 1 {
			t.Fatalf("Expected one asset, got %d", len(assets))
		}
	}

	if st.listCalls != 1 {
		t.Fatalf("Expected one storage hit, got %d", st.listCalls)
	}
}
