package reformulate

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

func TestMemoryCache_GetPut(t *testing.T) {
	c := NewMemoryCache(0, DefaultTTL)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "clavo"); ok {
		t.Fatal("expected miss on empty cache")
	}
	e := Entry{Attributes: domain.QueryAttributes{Normalized: "clavo"}, CreatedAt: time.Now()}
	c.Put(ctx, "clavo", e)

	got, ok := c.Get(ctx, "clavo")
	if !ok || got != e {
		t.Errorf("got %+v ok=%v, want %+v", got, ok, e)
	}
}

func TestMemoryCache_EvictsOldestWhenFull(t *testing.T) {
	c := NewMemoryCache(2, DefaultTTL)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base.Add(time.Hour) }
	ctx := context.Background()

	c.Put(ctx, "a", Entry{CreatedAt: base})
	c.Put(ctx, "b", Entry{CreatedAt: base.Add(time.Minute)})
	c.Put(ctx, "c", Entry{CreatedAt: base.Add(2 * time.Minute)})

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("oldest entry should be evicted")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("new entry missing")
	}
}

func TestMemoryCache_DropsExpiredFirst(t *testing.T) {
	c := NewMemoryCache(3, time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	ctx := context.Background()

	c.Put(ctx, "old1", Entry{CreatedAt: base})
	c.Put(ctx, "old2", Entry{CreatedAt: base})
	c.Put(ctx, "fresh", Entry{CreatedAt: base.Add(90 * time.Minute)})
	c.Put(ctx, "new", Entry{CreatedAt: base.Add(2 * time.Hour)})

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "fresh"); !ok {
		t.Error("unexpired entry evicted")
	}
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	c := NewMemoryCache(1, DefaultTTL)
	ctx := context.Background()

	c.Put(ctx, "a", Entry{CreatedAt: time.Now()})
	c.Put(ctx, "a", Entry{CreatedAt: time.Now()})
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
