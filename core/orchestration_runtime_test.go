package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRuntimeRunsTasksInEnqueueOrder(t *testing.T) {
	r := newRuntime(context.Background())
	r.start()
	defer func() {
		r.end()
		r.waitUntilEnded()
	}()

	var mu sync.Mutex
	order := []int{}
	for i := range 50 {
		r.enqueue("append", func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	waitForCondition(t, time.Second, "all tasks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 50
	})

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("expected task %d at position %d, got %d", i, i, got)
		}
	}
}

func TestRuntimeTasksMayEnqueueFromInsideTasks(t *testing.T) {
	r := newRuntime(context.Background())
	r.start()
	defer func() {
		r.end()
		r.waitUntilEnded()
	}()

	err := r.call(context.Background(), "outer", func(context.Context) error {
		for range 1000 {
			r.enqueue("inner", func(context.Context) {})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected call to succeed, got %v", err)
	}

	if err := r.call(context.Background(), "drain", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected queued tasks to drain, got %v", err)
	}
}

func TestRuntimeCallReturnsTaskError(t *testing.T) {
	r := newRuntime(context.Background())
	r.start()
	defer func() {
		r.end()
		r.waitUntilEnded()
	}()

	expected := errors.New("task failed")
	if err := r.call(context.Background(), "failing", func(context.Context) error { return expected }); !errors.Is(err, expected) {
		t.Fatalf("expected task error, got %v", err)
	}
}

func TestRuntimeSurvivesPanickingTask(t *testing.T) {
	r := newRuntime(context.Background())
	r.start()
	defer func() {
		r.end()
		r.waitUntilEnded()
	}()

	r.enqueue("panics", func(context.Context) { panic("boom") })

	if err := r.call(context.Background(), "after panic", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected runtime to keep processing, got %v", err)
	}
}

func TestRuntimeRejectsWorkAfterEnd(t *testing.T) {
	r := newRuntime(context.Background())
	r.start()
	r.end()
	r.waitUntilEnded()

	if r.enqueue("late", func(context.Context) {}) {
		t.Fatalf("expected enqueue to fail after end")
	}
	if err := r.call(context.Background(), "late", func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if r.start() {
		t.Fatalf("expected closed runtime not to restart")
	}
}

func TestRuntimeCallHonorsContext(t *testing.T) {
	r := newRuntime(context.Background())
	r.start()
	defer func() {
		r.end()
		r.waitUntilEnded()
	}()

	block := make(chan struct{})
	r.enqueue("blocking", func(context.Context) { <-block })
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.call(ctx, "waiting", func(context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
