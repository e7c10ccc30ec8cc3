// Package task implements the lifecycle record of a single file upload and
// the FIFO queue which holds tasks until a worker picks them up.
package task

import (
	"sync"
	"time"

	// Packages
	intray "github.com/mutablelogic/go-intray"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Task is one file upload. Accessors may be called from any goroutine, but
// state transitions are made only by the owner of the task: the caller while
// pending, then the worker which dequeued it.
type Task struct {
	mu       sync.RWMutex
	id       uint64
	file     intray.File
	state    schema.State
	progress float64
	elapsed  time.Duration
	err      error
	handler  func(float64)
}

// Opt is a functional option for a task
type Opt func(*Task)

// Status is a snapshot of a task
type Status struct {
	ID       uint64        `json:"id"`
	Name     string        `json:"name"`
	Size     int64         `json:"size"`
	State    schema.State  `json:"state"`
	Progress float64       `json:"progress"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
	Error    string        `json:"error,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a pending task for file
func New(id uint64, file intray.File, opts ...Opt) *Task {
	self := &Task{id: id, file: file, state: schema.Pending}
	for _, opt := range opts {
		opt(self)
	}
	return self
}

// WithProgress sets a handler which is called with the fraction of the file
// transferred, after each chunk
func WithProgress(fn func(float64)) Opt {
	return func(t *Task) {
		t.handler = fn
	}
}

////////////////////////////////////////////////////////////////////////////////
// PROPERTIES

func (t *Task) ID() uint64 {
	return t.id
}

func (t *Task) File() intray.File {
	return t.file
}

func (t *Task) State() schema.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Progress returns the fraction of the file transferred, in [0,1]
func (t *Task) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// Elapsed returns the upload time of a completed task
func (t *Task) Elapsed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.elapsed
}

// Err returns the reason a failed task failed
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Status returns a snapshot of the task
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status := Status{
		ID:       t.id,
		State:    t.state,
		Progress: t.progress,
		Elapsed:  t.elapsed,
	}
	if t.file != nil {
		status.Name = t.file.Name()
		status.Size = t.file.Size()
	}
	if t.err != nil {
		status.Error = t.err.Error()
	}
	return status
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Begin moves a pending task to in-progress, and returns false if the task
// was not pending
func (t *Task) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != schema.Pending {
		return false
	}
	t.state = schema.InProgress
	return true
}

// Advance records that chunk index of count has been transferred, calls the
// progress handler and returns the new fraction. Progress never decreases.
func (t *Task) Advance(index, count int) float64 {
	t.mu.Lock()
	if count > 0 {
		if fraction := float64(index+1) / float64(count); fraction > t.progress {
			t.progress = min(fraction, 1)
		}
	}
	fraction, handler := t.progress, t.handler
	t.mu.Unlock()

	if handler != nil {
		handler(fraction)
	}
	return fraction
}

// Complete marks an in-progress task as done
func (t *Task) Complete(elapsed time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != schema.InProgress {
		return false
	}
	t.state = schema.Done
	t.progress = 1
	t.elapsed = elapsed
	return true
}

// Fail marks a task which is not yet terminal as failed. Progress is kept so
// it shows how far the upload got.
func (t *Task) Fail(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	t.state = schema.Failed
	t.err = err
	return true
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (t *Task) String() string {
	return types.Stringify(t.Status())
}

func (s Status) String() string {
	return types.Stringify(s)
}
