package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"bank-sync-backend/internal/aggregator"
)

func TestMemoryCache_MissThenHit(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	if _, err := c.GetInstitutions(ctx, "gb"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	want := []aggregator.Institution{{ID: "MONZO_MONZGB2L", Name: "Monzo"}}
	if err := c.SetInstitutions(ctx, "gb", want, time.Hour); err != nil {
		t.Fatalf("SetInstitutions failed: %v", err)
	}

	got, err := c.GetInstitutions(ctx, " GB ")
	if err != nil {
		t.Fatalf("GetInstitutions failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != want[0].ID {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	_ = c.SetInstitutions(ctx, "DE", []aggregator.Institution{{ID: "N26_NTSBDEB1"}}, InstitutionTTL)

	now = now.Add(InstitutionTTL - time.Second)
	if _, err := c.GetInstitutions(ctx, "DE"); err != nil {
		t.Fatalf("entry expired early: %v", err)
	}

	now = now.Add(time.Second)
	if _, err := c.GetInstitutions(ctx, "DE"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after ttl, got %v", err)
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()
	list := []aggregator.Institution{{ID: "A"}}
	_ = c.SetInstitutions(ctx, "FR", list, time.Hour)
	list[0].ID = "mutated"

	got, _ := c.GetInstitutions(ctx, "FR")
	got[0].ID = "mutated again"

	again, _ := c.GetInstitutions(ctx, "FR")
	if again[0].ID != "A" {
		t.Errorf("cached entry was mutated: %q", again[0].ID)
	}
}

func TestRedisCache_RoundTrip(t *testing.T) {
	config := DefaultRedisConfig()
	config.KeyPrefix = "test:bank-sync:"
	config.DialTimeout = time.Second

	r, err := NewRedisCache(config)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	want := []aggregator.Institution{{ID: "REVOLUT_REVOGB21", Name: "Revolut", Countries: []string{"GB"}}}
	if err := r.SetInstitutions(ctx, "GB", want, time.Minute); err != nil {
		t.Fatalf("SetInstitutions failed: %v", err)
	}
	got, err := r.GetInstitutions(ctx, "gb")
	if err != nil {
		t.Fatalf("GetInstitutions failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Revolut" {
		t.Errorf("got %+v", got)
	}
	if _, err := r.GetInstitutions(ctx, "zz"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestNewRedisCache_RequiresAddress(t *testing.T) {
	if _, err := NewRedisCache(RedisConfig{}); err == nil {
		t.Fatal("expected error without address")
	}
}
