package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBookingKey(t *testing.T) {
	if got := BookingKey(15); got != "booking:15" {
		t.Errorf("BookingKey(15) = %q, want booking:15", got)
	}
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "booking:1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max holders = %d, want 1", maxInside)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d after all unlocks, want 0", l.Len())
	}
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := l.Lock(ctx, "booking:1")
	if err != nil {
		t.Fatalf("Lock a: %v", err)
	}
	defer a()

	b, err := l.Lock(ctx, "booking:2")
	if err != nil {
		t.Fatalf("Lock b should not wait on a: %v", err)
	}
	b()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	held, err := l.Lock(context.Background(), "booking:7")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "booking:7")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock err = %v, want deadline exceeded", err)
	}

	held()
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after release and abandoned wait", l.Len())
	}
}

func TestLocal_UnlockTwice(t *testing.T) {
	l := &Local{}
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()
	unlock()

	again, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock after double unlock: %v", err)
	}
	again()
}
