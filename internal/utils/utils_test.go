package utils

import (
	"context"
	"testing"
	"time"
)

func TestCache_NilClientIsEmpty(t *testing.T) {
	ctx := context.Background()
	if err := SetCache(ctx, nil, CatalogCacheKey, []string{"a"}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var dest []string
	found, err := GetCache(ctx, nil, CatalogCacheKey, &dest)
	if err != nil || found {
		t.Fatalf("expected a miss without Redis, got %v %v", found, err)
	}
	if err := DeleteCache(ctx, nil, CatalogCacheKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoginLimiter_BlocksAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	limiter := NewLoginLimiter(nil, 3, 5*time.Minute)

	for i := 0; i < 2; i++ {
		limiter.RecordFailure(ctx, "bob")
	}
	if limiter.Blocked(ctx, "bob") {
		t.Fatalf("two failures must not block")
	}
	limiter.RecordFailure(ctx, "bob")
	if !limiter.Blocked(ctx, "bob") {
		t.Fatalf("three failures must block")
	}
	if limiter.Blocked(ctx, "alice") {
		t.Fatalf("other users must not be affected")
	}
	limiter.Reset(ctx, "bob")
	if limiter.Blocked(ctx, "bob") {
		t.Fatalf("reset must clear the count")
	}
}

func TestLoginLimiter_WindowExpires(t *testing.T) {
	ctx := context.Background()
	limiter := NewLoginLimiter(nil, 3, 5*time.Minute)
	counter := limiter.counter.(*memoryCounter)
	now := time.Now()
	counter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		limiter.RecordFailure(ctx, "bob")
	}
	if !limiter.Blocked(ctx, "bob") {
		t.Fatalf("expected bob to be blocked")
	}
	now = now.Add(5*time.Minute + time.Second)
	if limiter.Blocked(ctx, "bob") {
		t.Fatalf("expected the window to lapse")
	}
}

func TestLoginLimiter_NilNeverBlocks(t *testing.T) {
	var none *LoginLimiter
	none.RecordFailure(context.Background(), "bob")
	if none.Blocked(context.Background(), "bob") {
		t.Fatalf("a nil limiter must not block")
	}
}
