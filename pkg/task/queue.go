package task

import (
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Queue is a concurrency-safe FIFO of pending tasks
type Queue struct {
	mu    sync.Mutex
	tasks []*Task
	ready chan struct{}
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Enqueue appends a task to the tail of the queue
func (q *Queue) Enqueue(t *Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
	q.signal()
}

// Dequeue removes the task at the head of the queue without blocking, and
// returns false if the queue is empty
func (q *Queue) Dequeue() (*Task, bool) {
	q.mu.Lock()
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	more := len(q.tasks) > 0
	q.mu.Unlock()

	// Pass the wake-up on to another waiting worker
	if more {
		q.signal()
	}
	return t, true
}

// Len returns the number of pending tasks
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Ready returns a channel which receives a value when tasks may be available.
// A receiver should call Dequeue until it returns false.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns all pending tasks, in order
func (q *Queue) Drain() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.tasks
	q.tasks = nil
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
