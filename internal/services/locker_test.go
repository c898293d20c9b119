package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

func testLocker(t *testing.T, locker Locker) {
	t.Helper()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "customer:a")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(blocked, "customer:a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Lock = %v, want deadline exceeded", err)
	}

	other, err := locker.Lock(ctx, "customer:b")
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	other()

	unlock()
	again, err := locker.Lock(ctx, "customer:a")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()
	testLocker(t, k)

	k.mu.Lock()
	left := len(k.locks)
	k.mu.Unlock()
	if left != 0 {
		t.Errorf("%d lock entries leaked", left)
	}
}

func TestKeyedMutexSerializes(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, "customer:same")
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("%d holders at once", maxSeen)
	}
}

func TestKeyedMutexUnlockIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()
	unlock, _ := k.Lock(context.Background(), "x")
	unlock()
	unlock()

	second, err := k.Lock(context.Background(), "x")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	third, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(third, "x"); err == nil {
		t.Fatal("double unlock released a later holder")
	}
	second()
}

func newTestRedisLocker(t *testing.T) *RedisLocker {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	locker, err := NewRedisLocker(context.Background(), url, "")
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	t.Cleanup(func() { locker.Close() })
	locker.prefix = "test-lock:" + time.Now().Format("150405.000000") + ":"
	return locker
}

func TestRedisLocker(t *testing.T) {
	testLocker(t, newTestRedisLocker(t))
}

func TestRedisLockerRenewsLease(t *testing.T) {
	locker := newTestRedisLocker(t)
	locker.ttl = 300 * time.Millisecond
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "customer:slow")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// hold well past the ttl, as a slow turn would
	time.Sleep(4 * locker.ttl)

	blocked, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(blocked, "customer:slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock while held = %v, want deadline exceeded", err)
	}

	unlock()
	unlock()
	again, err := locker.Lock(ctx, "customer:slow")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}
