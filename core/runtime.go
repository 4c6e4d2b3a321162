package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type runtimeTask struct {
	name     string
	run      func(context.Context)
	queuedAt time.Time
}

// runtime is the single serialization point of an orchestrator. Every state
// change runs as a task on its goroutine, in enqueue order. The queue is
// unbounded so collaborators may call back synchronously from inside a task.
type runtime struct {
	baseContext context.Context

	mu     sync.Mutex
	queue  []runtimeTask
	signal chan struct{}

	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newRuntime(ctx context.Context) *runtime {
	return &runtime{
		baseContext: ctx,
		signal:      make(chan struct{}, 1),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (r *runtime) start() (started bool) {
	if r.isClosed() {
		return false
	}

	r.startOnce.Do(func() {
		started = true
		r.started.Store(true)
		go func() {
			defer close(r.done)

			for {
				select {
				case <-r.closeCh:
					return
				case <-r.signal:
				}

				for {
					task, ok := r.pop()
					if !ok {
						break
					}
					if r.isClosed() {
						return
					}
					r.process(task)
				}
			}
		}()
	})

	return started
}

func (r *runtime) end() {
	r.endOnce.Do(func() {
		close(r.closeCh)
	})
}

func (r *runtime) waitUntilEnded() {
	if r.started.Load() {
		<-r.done
	}
}

func (r *runtime) isClosed() bool {
	select {
	case <-r.closeCh:
		return true
	default:
		return false
	}
}

// enqueue schedules fn without waiting for it.
func (r *runtime) enqueue(name string, fn func(context.Context)) bool {
	if r.isClosed() {
		return false
	}

	r.mu.Lock()
	r.queue = append(r.queue, runtimeTask{name: name, run: fn, queuedAt: time.Now()})
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
	return true
}

// call schedules fn and waits for its result. It must not be used from a
// task, the runtime would wait on itself.
func (r *runtime) call(ctx context.Context, name string, fn func(context.Context) error) error {
	result := make(chan error, 1)
	if !r.enqueue(name, func(ctx context.Context) { result <- fn(ctx) }) {
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-r.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *runtime) pop() (runtimeTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return runtimeTask{}, false
	}
	task := r.queue[0]
	r.queue[0] = runtimeTask{}
	r.queue = r.queue[1:]
	return task, true
}

func (r *runtime) queuedTaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *runtime) process(task runtimeTask) {
	ctx, span := tracer.Start(r.baseContext, "process "+task.name)
	defer span.End()

	queuedTime := time.Since(task.queuedAt).Seconds()
	span.AddEvent("taken out of queue", trace.WithAttributes(attribute.Float64("task.queued_time", queuedTime)))
	span.SetAttributes(
		attribute.String("task.name", task.name),
		attribute.Float64("task.queued_time", queuedTime),
		attribute.Int("task.queued_tasks", r.queuedTaskCount()),
	)

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("%s task panicked: %v", task.name, recovered)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("runtime task panicked", "task", task.name, "error", err)
		}
	}()

	task.run(ctx)
}
