package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap/zaptest"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t), 0)
	defer c.Stop()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	labels := []string{"L1"}
	if err := c.Set(ctx, &core.CacheEntry{Key: "k", LabelIDs: labels}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	labels[0] = "mutated"

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.LabelIDs) != 1 || got.LabelIDs[0] != "L1" {
		t.Fatalf("Get() = %v, stored entry should not alias the caller's slice", got.LabelIDs)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatal("entry should be gone after Delete")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t), 0)
	defer c.Stop()
	ctx := context.Background()

	now := time.Unix(1_000_000, 0)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, &core.CacheEntry{Key: "live", ExpiresAt: now.Add(time.Minute).Unix()})
	_ = c.Set(ctx, &core.CacheEntry{Key: "dead", ExpiresAt: now.Add(-time.Minute).Unix()})
	_ = c.Set(ctx, &core.CacheEntry{Key: "forever"})

	if _, err := c.Get(ctx, "dead"); !errors.Is(err, ErrNotFound) {
		t.Fatal("expired entry should read as not found")
	}
	if err := c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d after cleanup, want 2", c.Len())
	}
	if _, err := c.Get(ctx, "forever"); err != nil {
		t.Fatal("entry without expiry should stay live")
	}
}

func TestMemoryCacheStopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t), time.Millisecond)
	c.Stop()
	c.Stop()
}
