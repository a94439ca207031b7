package sched

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if err := l.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("post: %v", err)
		}
	}
	if err := l.Exec(ctx, func() error { return nil }); err != nil {
		t.Fatalf("exec: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d got %d", i, v)
		}
	}
	if len(got) != 100 {
		t.Fatalf("ran %d functions", len(got))
	}
}

func TestConcurrentPostersSerialized(t *testing.T) {
	l, _ := startLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var final int
	if err := l.Exec(ctx, func() error {
		final = counter
		return nil
	}); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if final != 1600 {
		t.Fatalf("counter = %d", final)
	}
}

func TestPostFromLoop(t *testing.T) {
	l, _ := startLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	_ = l.Post(func() {
		_ = l.Post(func() { close(done) })
	})
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("nested post never ran")
	}
}

func TestStop(t *testing.T) {
	l := New()
	go func() { _ = l.Run(context.Background()) }()
	l.Stop()
	<-l.Done()
	if err := l.Post(func() {}); err != ErrStopped {
		t.Fatalf("post after stop: %v", err)
	}
	if err := l.Exec(context.Background(), func() error { return nil }); err != ErrStopped {
		t.Fatalf("exec after stop: %v", err)
	}
}
