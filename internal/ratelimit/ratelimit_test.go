package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates an in-memory Redis server for testing
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		DB:   0,
	})

	// Test connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		t.Fatalf("Failed to connect to test Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}

	return redisClient, cleanup
}

func TestTokenBucket_Allow(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	// Create token bucket with 5 tokens, refill 5 per minute
	bucket := NewTokenBucket(redisClient, 5, 5)

	ctx := context.Background()
	userID := "test_user"
	action := "upload-request"

	// Test that we can consume tokens up to the limit
	for i := 0; i < 5; i++ {
		allowed, err := bucket.Allow(ctx, userID, action)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}

	// Test that the 6th request is denied
	allowed, err := bucket.Allow(ctx, userID, action)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if allowed {
		t.Fatal("Expected request to be denied after limit reached")
	}

	// Test remaining tokens
	remaining, err := bucket.GetRemaining(ctx, userID, action)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("Expected 0 remaining tokens, got %d", remaining)
	}
}

func TestTokenBucket_PerUserIsolation(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	bucket := NewTokenBucket(redisClient, 1, 1)
	ctx := context.Background()

	allowed, err := bucket.Allow(ctx, "user_a", "proxy-upload")
	if err != nil || !allowed {
		t.Fatalf("Expected first request for user_a to be allowed, got allowed=%t err=%v", allowed, err)
	}

	// user_a is out of tokens; user_b is untouched
	allowed, _ = bucket.Allow(ctx, "user_a", "proxy-upload")
	if allowed {
		t.Fatal("Expected user_a to be rate limited")
	}

	allowed, err = bucket.Allow(ctx, "user_b", "proxy-upload")
	if err != nil || !allowed {
		t.Fatalf("Expected user_b to be unaffected, got allowed=%t err=%v", allowed, err)
	}
}

func TestTokenBucket_PerActionIsolation(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	bucket := NewTokenBucket(redisClient, 1, 1)
	ctx := context.Background()

	if allowed, _ := bucket.Allow(ctx, "user", "upload-request"); !allowed {
		t.Fatal("Expected first upload-request to be allowed")
	}
	if allowed, _ := bucket.Allow(ctx, "user", "upload-request"); allowed {
		t.Fatal("Expected second upload-request to be denied")
	}

	// A different action has its own bucket
	if allowed, _ := bucket.Allow(ctx, "user", "proxy-upload"); !allowed {
		t.Fatal("Expected proxy-upload to have its own bucket")
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	bucket := NewTokenBucket(redisClient, 1, 1)
	ctx := context.Background()

	bucket.Allow(ctx, "user", "upload-request")
	if allowed, _ := bucket.Allow(ctx, "user", "upload-request"); allowed {
		t.Fatal("Expected request to be denied before reset")
	}

	if err := bucket.Reset(ctx, "user", "upload-request"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if allowed, _ := bucket.Allow(ctx, "user", "upload-request"); !allowed {
		t.Fatal("Expected request to be allowed after reset")
	}
}
