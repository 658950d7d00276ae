package cache_test

import (
	"testing"
	"time"

	"github.com/propiq/propiq/internal/cache"
	"github.com/propiq/propiq/internal/domain"
)

func TestCache_HitWithinTTL(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	c := cache.NewWithClock(30*time.Second, func() time.Time { return now })

	c.Put(domain.KindOwner, []string{"o1"})

	now = now.Add(29 * time.Second)
	v, ok := c.Get(domain.KindOwner)
	if !ok {
		t.Fatal("expected hit within TTL")
	}
	if got := v.([]string); len(got) != 1 || got[0] != "o1" {
		t.Errorf("got %v", got)
	}
}

func TestCache_ExpiresAtTTL(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	c := cache.NewWithClock(30*time.Second, func() time.Time { return now })

	c.Put(domain.KindOwner, []string{"o1"})

	now = now.Add(30 * time.Second)
	if _, ok := c.Get(domain.KindOwner); ok {
		t.Error("expected miss at TTL boundary")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := cache.New(time.Minute)

	c.Put(domain.KindTenant, []string{"t1"})
	c.Put(domain.KindProperty, []string{"p1"})

	c.Invalidate(domain.KindTenant)

	if _, ok := c.Get(domain.KindTenant); ok {
		t.Error("invalidated kind still cached")
	}
	if _, ok := c.Get(domain.KindProperty); !ok {
		t.Error("unrelated kind was dropped")
	}
}

func TestCache_Reset(t *testing.T) {
	c := cache.New(time.Minute)

	c.Put(domain.KindTenant, []string{"t1"})
	c.Put(domain.KindProperty, []string{"p1"})

	c.Reset()

	if _, ok := c.Get(domain.KindTenant); ok {
		t.Error("tenant survived reset")
	}
	if _, ok := c.Get(domain.KindProperty); ok {
		t.Error("property survived reset")
	}
}
