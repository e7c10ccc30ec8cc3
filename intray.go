package intray

import (
	"context"
	"io"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-intray/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// File is a named, sized source of bytes which supports reading an arbitrary
// contiguous range without loading the whole file into memory.
type File interface {
	io.ReaderAt

	// Name returns the file name sent to the remote in the start phase
	Name() string

	// Size returns the length of the file in bytes
	Size() int64
}

// Transport is the three-verb remote service a file is uploaded to.
//
// A semantic rejection by the remote ({"ok":false}) is returned as an error
// which matches ErrRejected, and a network or protocol failure as an error
// which matches ErrTransport.
type Transport interface {
	// Start an upload session and return the opaque file token
	Start(context.Context, schema.StartRequest) (string, error)

	// Chunk uploads size bytes read from r as chunk index of the session
	Chunk(ctx context.Context, token string, index int, r io.Reader, size int64) error

	// Finish the upload session
	Finish(ctx context.Context, token string) error
}

// OneshotTransport is implemented by a Transport which can also accept a
// whole file in a single request, without a session.
type OneshotTransport interface {
	Transport

	// Full uploads size bytes read from r as a file called name, and returns
	// the number of bytes the remote has written
	Full(ctx context.Context, name string, r io.Reader, size int64) (int64, error)
}

// Sink receives progress and terminal results for tasks. Methods are called
// from worker goroutines, so implementations which update shared state must
// serialize access themselves.
type Sink interface {
	// OnProgress is called after each chunk of task id has been transferred
	OnProgress(id uint64, fraction float64)

	// OnDone is called once when task id completes
	OnDone(id uint64, elapsed time.Duration)

	// OnFailed is called once when task id fails
	OnFailed(id uint64, err error)
}

////////////////////////////////////////////////////////////////////////////////
// TYPES

// SinkFuncs adapts a set of optional functions to the Sink interface. A nil
// function is skipped.
type SinkFuncs struct {
	Progress func(id uint64, fraction float64)
	Done     func(id uint64, elapsed time.Duration)
	Failed   func(id uint64, err error)
}

var _ Sink = SinkFuncs{}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (s SinkFuncs) OnProgress(id uint64, fraction float64) {
	if s.Progress != nil {
		s.Progress(id, fraction)
	}
}

func (s SinkFuncs) OnDone(id uint64, elapsed time.Duration) {
	if s.Done != nil {
		s.Done(id, elapsed)
	}
}

func (s SinkFuncs) OnFailed(id uint64, err error) {
	if s.Failed != nil {
		s.Failed(id, err)
	}
}
