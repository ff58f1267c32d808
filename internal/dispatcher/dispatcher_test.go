package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithCritical_SerializesConcurrentCallers(t *testing.T) {
	d := New()
	var active atomic.Int32
	var maxActive atomic.Int32
	var wg sync.WaitGroup

	run := func() {
		defer wg.Done()
		_ = d.WithCritical(context.Background(), func(ctx context.Context) error {
			n := active.Add(1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return nil
		})
	}

	wg.Add(3)
	go run()
	go run()
	go run()
	wg.Wait()

	if got := maxActive.Load(); got != 1 {
		t.Fatalf("expected at most 1 concurrent CRITICAL holder, saw %d", got)
	}
}

func TestWithHigh_DoesNotBlockHigh(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	started := make(chan struct{}, 2)

	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_ = d.WithHigh(context.Background(), func(ctx context.Context) error {
				started <- struct{}{}
				time.Sleep(30 * time.Millisecond)
				return nil
			})
		}()
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first HIGH never started")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second HIGH never started concurrently with the first")
	}
	wg.Wait()
}

func TestShouldYield_ReflectsActiveForegroundWork(t *testing.T) {
	d := New()
	if d.ShouldYield() {
		t.Fatal("expected ShouldYield false with no active work")
	}

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = d.WithHigh(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
		close(done)
	}()

	for !d.ShouldYield() {
		time.Sleep(time.Millisecond)
	}
	close(release)
	<-done

	if d.ShouldYield() {
		t.Fatal("expected ShouldYield false after HIGH completed")
	}
}

func TestAwaitLowPriorityClear_BlocksUntilForegroundCompletes(t *testing.T) {
	d := New()
	release := make(chan struct{})
	foregroundDone := make(chan struct{})

	go func() {
		_ = d.WithCritical(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
		close(foregroundDone)
	}()

	for !d.ShouldYield() {
		time.Sleep(time.Millisecond)
	}

	awaitReturned := make(chan struct{})
	go func() {
		_ = d.AwaitLowPriorityClear(context.Background())
		close(awaitReturned)
	}()

	select {
	case <-awaitReturned:
		t.Fatal("AwaitLowPriorityClear returned before the foreground acquisition completed")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-foregroundDone

	select {
	case <-awaitReturned:
	case <-time.After(time.Second):
		t.Fatal("AwaitLowPriorityClear never returned after foreground work cleared")
	}
}

func TestAwaitLowPriorityClear_HonorsContextCancellation(t *testing.T) {
	d := New()
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = d.WithHigh(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
	}()
	for !d.ShouldYield() {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.AwaitLowPriorityClear(ctx)
	if err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}
