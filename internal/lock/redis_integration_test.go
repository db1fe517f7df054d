//go:build integration

package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// dialTestRedis connects to REDIS_ADDR (default localhost:6379).
func dialTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := Dial(ctx, addr, "", 0, time.Second)
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedis_MutualExclusion(t *testing.T) {
	r := dialTestRedis(t)
	ctx := context.Background()
	key := "test:" + t.Name()

	var inside, violations int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := r.Lock(ctx, key)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if violations != 0 {
		t.Errorf("%d overlapping holders", violations)
	}
}

func TestRedis_ExpiresAfterTTL(t *testing.T) {
	r := dialTestRedis(t)
	key := "test:" + t.Name()

	if _, err := r.Lock(context.Background(), key); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	unlock, err := r.Lock(ctx, key)
	if err != nil {
		t.Fatalf("Lock after TTL: %v", err)
	}
	unlock()
}

func TestRedis_ContextCancelled(t *testing.T) {
	r := dialTestRedis(t)
	key := "test:" + t.Name()

	held, err := r.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Lock(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock err = %v, want deadline exceeded", err)
	}
}
