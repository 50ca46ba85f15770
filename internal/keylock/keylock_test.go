package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	var l Locker
	var active, peak int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "clip.mp4")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			defer release()
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected one holder at a time, saw %d", peak)
	}
	if l.held("clip.mp4") != 0 {
		t.Fatalf("expected key to be released, refs=%d", l.held("clip.mp4"))
	}
}

func TestLockDifferentKeysIndependent(t *testing.T) {
	var l Locker
	releaseA, err := l.Lock(context.Background(), "a.mp4")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.Lock(ctx, "b.mp4")
	if err != nil {
		t.Fatalf("lock b should not wait on a: %v", err)
	}
	releaseB()
}

func TestLockHonoursContext(t *testing.T) {
	var l Locker
	release, err := l.Lock(context.Background(), "a.mp4")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "a.mp4"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if l.held("a.mp4") != 1 {
		t.Fatalf("waiter should have dropped its reference, refs=%d", l.held("a.mp4"))
	}
	release()
	release()
	if l.held("a.mp4") != 0 {
		t.Fatal("double release must be harmless")
	}
}
