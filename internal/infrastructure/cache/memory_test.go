package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/listproxy/backend/internal/domain"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	cache := NewMemoryCache(time.Minute)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		value   []byte
		ttl     time.Duration
		wantErr bool
	}{
		{
			name:    "store and retrieve listing json",
			key:     "listing:primary_api:keyword=bag:30",
			value:   []byte(`[{"title":"Bag","price":"1,000円","image":"","link":"/proxy?path=%2Fitem%2Fm1"}]`),
			ttl:     1 * time.Minute,
			wantErr: false,
		},
		{
			name:    "store and retrieve empty value",
			key:     "test-key-2",
			value:   []byte{},
			ttl:     1 * time.Minute,
			wantErr: false,
		},
		{
			name:    "store with short TTL",
			key:     "test-key-3",
			value:   []byte("expires-soon"),
			ttl:     1 * time.Millisecond,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Set value
			err := cache.Set(ctx, tt.key, tt.value, tt.ttl)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			// For short TTL test, wait for expiration
			if tt.ttl < 10*time.Millisecond {
				time.Sleep(10 * time.Millisecond)
				_, err := cache.Get(ctx, tt.key)
				if err != domain.ErrCacheMiss {
					t.Errorf("Expected cache miss after expiration, got error = %v", err)
				}
				return
			}

			got, err := cache.Get(ctx, tt.key)
			if err != nil {
				t.Errorf("Get() error = %v", err)
				return
			}
			if !bytes.Equal(got, tt.value) {
				t.Errorf("Get() = %s, want %s", got, tt.value)
			}
		})
	}
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	value := []byte("original")
	if err := cache.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'X'

	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "original" {
		t.Errorf("Get() = %s, want original after mutating the stored slice", got)
	}

	got[0] = 'Y'
	again, _ := cache.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("Get() = %s, want original after mutating a returned slice", again)
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "non-existent-key")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	// Set a value
	key := "delete-test"
	err := cache.Set(ctx, key, []byte("value"), 1*time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Verify it exists
	_, err = cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() before delete error = %v", err)
	}

	// Delete it
	err = cache.Delete(ctx, key)
	if err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	// Verify it's gone
	_, err = cache.Get(ctx, key)
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	key := "exists-test"

	exists, err := cache.Exists(ctx, key)
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if exists {
		t.Errorf("Exists() = true, want false for non-existent key")
	}

	err = cache.Set(ctx, key, []byte("value"), 1*time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	exists, err = cache.Exists(ctx, key)
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if !exists {
		t.Errorf("Exists() = false, want true after setting value")
	}

	// Set with very short TTL
	shortKey := "short-ttl"
	err = cache.Set(ctx, shortKey, []byte("value"), 1*time.Millisecond)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	exists, err = cache.Exists(ctx, shortKey)
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if exists {
		t.Errorf("Exists() = true, want false after expiration")
	}
}

func TestMemoryCache_SizeAndClear(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 for empty cache", size)
	}

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		if err := cache.Set(ctx, key, []byte{byte(i)}, 1*time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if size := cache.Size(); size != 5 {
		t.Errorf("Size() = %d, want 5", size)
	}

	if err := cache.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if size := cache.Size(); size != 4 {
		t.Errorf("Size() = %d, want 4 after delete", size)
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}
	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		if _, err := cache.Get(ctx, key); err != domain.ErrCacheMiss {
			t.Errorf("Get(%s) after clear error = %v, want %v", key, err, domain.ErrCacheMiss)
		}
	}
}

func TestMemoryCache_CleanupRemovesExpired(t *testing.T) {
	cache := NewMemoryCache(5 * time.Millisecond)
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "gone", []byte("x"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "kept", []byte("y"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for cache.Size() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if size := cache.Size(); size != 1 {
		t.Errorf("Size() = %d, want 1 once the sweeper ran", size)
	}
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache(time.Minute)

	if err := cache.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := newTestMemoryCache(t)
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := string(rune('a' + id))
			err := cache.Set(ctx, key, []byte{byte(id)}, 1*time.Minute)
			if err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			_, err = cache.Get(ctx, key)
			if err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
