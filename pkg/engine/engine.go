// Package engine runs file uploads through a fixed pool of workers, which
// take tasks from a FIFO queue and report progress and results to a sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	// Packages
	intray "github.com/mutablelogic/go-intray"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	task "github.com/mutablelogic/go-intray/pkg/task"
	transfer "github.com/mutablelogic/go-intray/pkg/transfer"
	attribute "go.opentelemetry.io/otel/attribute"
	metric "go.opentelemetry.io/otel/metric"
	errgroup "golang.org/x/sync/errgroup"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Engine owns the task queue and the worker pool
type Engine struct {
	opts
	client *transfer.Client
	queue  *task.Queue
	nextId atomic.Uint64

	// Metrics
	tasks    metric.Int64Counter
	duration metric.Float64Histogram

	// Pool state
	mu          sync.Mutex
	cancel      context.CancelFunc
	group       *errgroup.Group
	stopped     bool
	outstanding int
	idle        chan struct{}
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns an engine which uploads files through transport. Workers are
// not started until Start or Run is called, but tasks may be submitted before.
func New(transport intray.Transport, opt ...Opt) (*Engine, error) {
	self := new(Engine)
	self.queue = task.NewQueue()
	self.idle = make(chan struct{})
	close(self.idle)

	// Apply options
	if o, err := applyOpts(opt); err != nil {
		return nil, err
	} else {
		self.opts = o
	}

	// Create the transfer client
	if client, err := transfer.New(transport, self.opts.transfer...); err != nil {
		return nil, err
	} else {
		self.client = client
	}

	// Metrics
	if counter, err := self.meter.Int64Counter(schema.SchemaName+".tasks",
		metric.WithDescription("Number of tasks which reached a terminal state"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, err
	} else {
		self.tasks = counter
	}
	if histogram, err := self.meter.Float64Histogram(schema.SchemaName+".task.duration",
		metric.WithDescription("Time taken to upload a file"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	} else {
		self.duration = histogram
	}

	// Return success
	return self, nil
}

// Start the workers. Workers run until Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return intray.ErrStopped
	} else if e.group != nil {
		return errors.New("engine already started")
	}

	// Spawn the workers
	child, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.group, child = errgroup.WithContext(child)
	for i := 0; i < e.workers; i++ {
		e.group.Go(func() error {
			return e.worker(child, i)
		})
	}

	// Once the workers exit, no more tasks are accepted
	go func() {
		<-child.Done()
		e.mu.Lock()
		defer e.mu.Unlock()
		e.stopped = true
	}()

	// Return success
	e.logger.DebugContext(ctx, "engine started", "workers", e.workers, "chunk_size", e.client.ChunkSize(), "retry_limit", e.client.RetryLimit())
	return nil
}

// Stop accepting tasks and wait for in-flight uploads to complete. Tasks
// still pending remain in the queue, and can be retrieved with Drain. The
// engine is also stopped when the context passed to Start is done.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopped = true
	cancel, group := e.cancel, e.group
	e.mu.Unlock()

	// Workers were never started
	if group == nil {
		return nil
	}

	cancel()
	return group.Wait()
}

// Run starts the workers, blocks until ctx is done, and then stops
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Stop()
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Submit enqueues a pending task. The caller assigns the task id; use Add to
// have the engine assign one.
func (e *Engine) Submit(t *task.Task) error {
	if t == nil || t.File() == nil {
		return intray.InvalidConfig("missing task or file")
	} else if t.State() != schema.Pending {
		return fmt.Errorf("task %d is %v, not pending", t.ID(), t.State())
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return intray.ErrStopped
	}
	if e.outstanding == 0 {
		e.idle = make(chan struct{})
	}
	e.outstanding++
	e.mu.Unlock()

	e.queue.Enqueue(t)
	return nil
}

// Add creates a task for file with the next id, and enqueues it
func (e *Engine) Add(file intray.File, opts ...task.Opt) (*task.Task, error) {
	t := task.New(e.nextId.Add(1), file, opts...)
	if err := e.Submit(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Wait blocks until every submitted task has reached a terminal state, or ctx
// is done. Tasks left in the queue by Stop are never waited for.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of tasks waiting for a worker
func (e *Engine) Len() int {
	return e.queue.Len()
}

// Drain removes pending tasks from the queue and returns them in order. They
// no longer count towards Wait.
func (e *Engine) Drain() []*task.Task {
	tasks := e.queue.Drain()
	for range tasks {
		e.release()
	}
	return tasks
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e *Engine) worker(ctx context.Context, n int) error {
	for {
		// Do not take new work once stopping
		if ctx.Err() != nil {
			return nil
		}
		if t, ok := e.queue.Dequeue(); ok {
			e.run(ctx, n, t)
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-e.queue.Ready():
		}
	}
}

// run uploads a single task, and reports the outcome. In-flight transfers
// are not cancelled when the engine stops.
func (e *Engine) run(ctx context.Context, n int, t *task.Task) {
	ctx = context.WithoutCancel(ctx)
	defer e.release()

	// A panic in the transport fails the task, not the worker
	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, t, fmt.Errorf("panic: %v", r))
		}
	}()

	if !t.Begin() {
		e.logger.WarnContext(ctx, "skipping task", "id", t.ID(), "state", t.State())
		return
	}
	e.logger.DebugContext(ctx, "task", "id", t.ID(), "worker", n, "file", t.File().Name(), "state", schema.InProgress)

	elapsed, err := e.client.Upload(ctx, t.File(), func(index, count int) {
		e.sink.OnProgress(t.ID(), t.Advance(index, count))
	})
	if err != nil {
		e.fail(ctx, t, err)
		return
	}

	// Success
	if t.Complete(elapsed) {
		e.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String("state", schema.Done.String())))
		e.duration.Record(ctx, elapsed.Seconds())
		e.logger.InfoContext(ctx, "task", "id", t.ID(), "file", t.File().Name(), "state", schema.Done, "elapsed", elapsed.Truncate(time.Millisecond))
		e.sink.OnDone(t.ID(), elapsed)
	}
}

func (e *Engine) fail(ctx context.Context, t *task.Task, err error) {
	if !t.Fail(err) {
		return
	}
	e.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String("state", schema.Failed.String())))
	e.logger.ErrorContext(ctx, "task", "id", t.ID(), "file", t.File().Name(), "state", schema.Failed, "error", err)
	e.sink.OnFailed(t.ID(), err)
}

// release marks one submitted task as no longer outstanding
func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outstanding > 0 {
		e.outstanding--
		if e.outstanding == 0 {
			close(e.idle)
		}
	}
}
